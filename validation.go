package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// Scenario selects which rules apply to a candidate
type Scenario string

const (
	// ScenarioDefault is used for updates
	ScenarioDefault Scenario = "default"
	// ScenarioCreate requires a password
	ScenarioCreate Scenario = "create"
)

const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldStatus   = "status"
)

var fieldLabels = map[string]string{
	FieldUsername: "Username",
	FieldEmail:    "Email",
	FieldPassword: "Password",
	FieldStatus:   "Status",
}

// Candidate is the record under validation
type Candidate struct {
	ID       uuid.UUID
	Scenario Scenario
	Username string
	Email    string
	Password string
	Status   Status
}

// FieldError is a validation message bound to a form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is an ordered list of validation messages. It is returned
// as an error by command handlers so controllers can re-render forms.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.Field+": "+fe.Message)
	}
	return strings.Join(msgs, "; ")
}

// Has checks whether field has at least one error
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Map returns the first message per field, the shape views expect
func (e FieldErrors) Map() map[string]string {
	out := make(map[string]string, len(e))
	for _, fe := range e {
		if _, ok := out[fe.Field]; !ok {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Rule validates a candidate. The error return is reserved for
// infrastructure failures, validation problems go in FieldErrors.
type Rule interface {
	Apply(ctx context.Context, c *Candidate) (FieldErrors, error)
}

// RuleFunc adapts a function to Rule
type RuleFunc func(ctx context.Context, c *Candidate) (FieldErrors, error)

// Apply implements Rule
func (f RuleFunc) Apply(ctx context.Context, c *Candidate) (FieldErrors, error) {
	return f(ctx, c)
}

// RuleSet applies rules in order. Once a field fails, messages from
// later rules for the same field are dropped.
type RuleSet []Rule

// Validate runs every rule and returns the collected field errors
func (rs RuleSet) Validate(ctx context.Context, c *Candidate) (FieldErrors, error) {
	var errs FieldErrors
	for _, rule := range rs {
		if rule == nil {
			continue
		}

		found, err := rule.Apply(ctx, c)
		if err != nil {
			return nil, err
		}

		failed := errs
		for _, fe := range found {
			if failed.Has(fe.Field) {
				continue
			}
			errs = append(errs, fe)
		}
	}
	return errs, nil
}

// UniquenessChecker answers whether a value is already used by another account
type UniquenessChecker interface {
	UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error)
	EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
}

const (
	// MessageUsernameTaken is shown when the username is in use
	MessageUsernameTaken = "This username has already been taken."
	// MessageEmailTaken is shown when the email is in use
	MessageEmailTaken = "This email address has already been taken."
	// MessageIncorrectLogin hides which of login or password was wrong
	MessageIncorrectLogin = "Incorrect username or password."
)

// AccountRules builds the account rule set. forceStrong picks the
// password policy, see PasswordRule.
func AccountRules(forceStrong bool, unique UniquenessChecker) RuleSet {
	return RuleSet{
		TrimRule(),
		fieldRule(FieldUsername, func(c *Candidate) any { return c.Username }, validation.Required),
		fieldRule(FieldEmail, func(c *Candidate) any { return c.Email }, validation.Required),
		fieldRule(FieldStatus, func(c *Candidate) any { return c.Status },
			validation.In(StatusActive, StatusNotActive, StatusDeleted).Error("is invalid"),
		),
		fieldRule(FieldEmail, func(c *Candidate) any { return c.Email }, is.Email),
		fieldRule(FieldUsername, func(c *Candidate) any { return c.Username }, validation.Length(2, 255)),
		PasswordRequiredOn(ScenarioCreate),
		PasswordPolicyRule(PasswordRule(forceStrong)),
		UniqueUsernameRule(unique),
		UniqueEmailRule(unique),
	}
}

// TrimRule strips surrounding whitespace from username and email
func TrimRule() Rule {
	return RuleFunc(func(ctx context.Context, c *Candidate) (FieldErrors, error) {
		c.Username = strings.TrimSpace(c.Username)
		c.Email = strings.TrimSpace(c.Email)
		return nil, nil
	})
}

// PasswordRequiredOn requires a password for the given scenario only
func PasswordRequiredOn(scenario Scenario) Rule {
	required := fieldRule(FieldPassword, func(c *Candidate) any { return c.Password }, validation.Required)
	return RuleFunc(func(ctx context.Context, c *Candidate) (FieldErrors, error) {
		if c.Scenario != scenario {
			return nil, nil
		}
		return required.Apply(ctx, c)
	})
}

// PasswordPolicyRule checks a non empty password against policy
func PasswordPolicyRule(policy PasswordPolicy) Rule {
	return RuleFunc(func(ctx context.Context, c *Candidate) (FieldErrors, error) {
		if c.Password == "" {
			return nil, nil
		}
		var errs FieldErrors
		for _, msg := range policy.Check(c.Password, c.Username, c.Email) {
			errs = append(errs, FieldError{Field: FieldPassword, Message: msg})
		}
		return errs, nil
	})
}

// UniqueUsernameRule rejects usernames held by another account
func UniqueUsernameRule(unique UniquenessChecker) Rule {
	return RuleFunc(func(ctx context.Context, c *Candidate) (FieldErrors, error) {
		if unique == nil || c.Username == "" {
			return nil, nil
		}
		taken, err := unique.UsernameTaken(ctx, c.Username, c.ID)
		if err != nil || !taken {
			return nil, err
		}
		return FieldErrors{{Field: FieldUsername, Message: MessageUsernameTaken}}, nil
	})
}

// UniqueEmailRule rejects emails held by another account
func UniqueEmailRule(unique UniquenessChecker) Rule {
	return RuleFunc(func(ctx context.Context, c *Candidate) (FieldErrors, error) {
		if unique == nil || c.Email == "" {
			return nil, nil
		}
		taken, err := unique.EmailTaken(ctx, c.Email, c.ID)
		if err != nil || !taken {
			return nil, err
		}
		return FieldErrors{{Field: FieldEmail, Message: MessageEmailTaken}}, nil
	})
}

func fieldRule(field string, value func(*Candidate) any, rules ...validation.Rule) Rule {
	return RuleFunc(func(ctx context.Context, c *Candidate) (FieldErrors, error) {
		if err := validation.Validate(value(c), rules...); err != nil {
			return FieldErrors{{Field: field, Message: fieldLabel(field) + " " + err.Error()}}, nil
		}
		return nil, nil
	})
}

func fieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}
