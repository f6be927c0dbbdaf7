package accounts

import (
	"fmt"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// PasswordPolicyKind names the two interchangeable password policies
type PasswordPolicyKind string

const (
	// PasswordPolicyLength only checks a minimum length
	PasswordPolicyLength PasswordPolicyKind = "length"
	// PasswordPolicyStrength scores the password against a preset
	PasswordPolicyStrength PasswordPolicyKind = "strength"
)

const (
	// WeakPasswordMinLength is the minimum length under the length policy
	WeakPasswordMinLength = 6
	// DefaultStrengthPreset is used when strong passwords are forced
	DefaultStrengthPreset = "normal"
)

// PasswordPolicy describes how passwords are checked
type PasswordPolicy struct {
	Kind   PasswordPolicyKind `json:"kind"`
	Min    int                `json:"min,omitempty"`
	Preset string             `json:"preset,omitempty"`
}

// PasswordRule picks the policy for the force strong password flag
func PasswordRule(forceStrong bool) PasswordPolicy {
	if forceStrong {
		return PasswordPolicy{Kind: PasswordPolicyStrength, Preset: DefaultStrengthPreset}
	}
	return PasswordPolicy{Kind: PasswordPolicyLength, Min: WeakPasswordMinLength}
}

// StrengthPreset lists the minimum character class counts
type StrengthPreset struct {
	Min      int
	Upper    int
	Lower    int
	Digit    int
	Special  int
	HasUser  bool
	HasEmail bool
}

// StrengthPresets are the presets known to the strength policy
var StrengthPresets = map[string]StrengthPreset{
	"simple": {Min: 6, Lower: 1, Digit: 1},
	"normal": {Min: 8, Upper: 1, Lower: 1, Digit: 1, HasUser: true, HasEmail: true},
	"fair":   {Min: 10, Upper: 1, Lower: 1, Digit: 1, Special: 1, HasUser: true, HasEmail: true},
	"medium": {Min: 10, Upper: 1, Lower: 1, Digit: 2, Special: 1, HasUser: true, HasEmail: true},
	"strong": {Min: 12, Upper: 2, Lower: 2, Digit: 2, Special: 2, HasUser: true, HasEmail: true},
}

// Check returns the messages for every requirement password misses
func (p PasswordPolicy) Check(password, username, email string) []string {
	switch p.Kind {
	case PasswordPolicyStrength:
		preset, ok := StrengthPresets[p.Preset]
		if !ok {
			preset = StrengthPresets[DefaultStrengthPreset]
		}
		return checkStrength(preset, password, username, email)
	default:
		min := p.Min
		if min == 0 {
			min = WeakPasswordMinLength
		}
		if err := validation.Validate(password, validation.Length(min, 0)); err != nil {
			return []string{fieldLabel(FieldPassword) + " " + err.Error()}
		}
		return nil
	}
}

func checkStrength(preset StrengthPreset, password, username, email string) []string {
	var upper, lower, digit, special int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digit++
		default:
			special++
		}
	}

	var msgs []string
	label := fieldLabel(FieldPassword)

	if n := len([]rune(password)); n < preset.Min {
		msgs = append(msgs, fmt.Sprintf("%s should contain at least %d characters (%d given)", label, preset.Min, n))
	}
	if upper < preset.Upper {
		msgs = append(msgs, fmt.Sprintf("%s should contain at least %d upper case characters (%d given)", label, preset.Upper, upper))
	}
	if lower < preset.Lower {
		msgs = append(msgs, fmt.Sprintf("%s should contain at least %d lower case characters (%d given)", label, preset.Lower, lower))
	}
	if digit < preset.Digit {
		msgs = append(msgs, fmt.Sprintf("%s should contain at least %d numeric characters (%d given)", label, preset.Digit, digit))
	}
	if special < preset.Special {
		msgs = append(msgs, fmt.Sprintf("%s should contain at least %d special characters (%d given)", label, preset.Special, special))
	}

	lowered := strings.ToLower(password)
	if preset.HasUser && username != "" && strings.Contains(lowered, strings.ToLower(username)) {
		msgs = append(msgs, fmt.Sprintf("%s cannot contain the username", label))
	}
	if preset.HasEmail && email != "" && strings.Contains(lowered, strings.ToLower(email)) {
		msgs = append(msgs, fmt.Sprintf("%s cannot contain the email address", label))
	}

	return msgs
}
