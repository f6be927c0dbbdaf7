package accounts

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

const (
	// TokenSeparator joins the random part and the creation timestamp
	TokenSeparator = "_"
	// TokenRandomLength is the length of the random part of a token
	TokenRandomLength = 32
	// AuthKeyLength is the length of the remember-me key
	AuthKeyLength = 32
)

// RandomStringGenerator produces random strings for tokens and keys
type RandomStringGenerator interface {
	RandomString(length int) (string, error)
}

// RandomStringFunc adapts a function to RandomStringGenerator
type RandomStringFunc func(length int) (string, error)

// RandomString implements RandomStringGenerator
func (f RandomStringFunc) RandomString(length int) (string, error) {
	return f(length)
}

// SecureRandom reads from crypto/rand and encodes with the URL safe
// base64 alphabet, so results may contain "_" and "-".
type SecureRandom struct{}

// RandomString implements RandomStringGenerator
func (SecureRandom) RandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length], nil
}

// GenerateToken returns "<random>_<unix seconds>"
func GenerateToken(rnd RandomStringGenerator, now time.Time) (string, error) {
	random, err := rnd.RandomString(TokenRandomLength)
	if err != nil {
		return "", err
	}
	return random + TokenSeparator + strconv.FormatInt(now.Unix(), 10), nil
}

// TokenTimestamp returns the creation time encoded in token. Only the
// segment after the last separator is used. A segment that is not an
// integer yields 0.
func TokenTimestamp(token string) int64 {
	segment := token
	if i := strings.LastIndex(token, TokenSeparator); i >= 0 {
		segment = token[i+len(TokenSeparator):]
	}

	ts, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// IsTokenValid reports whether token was created within ttl of now.
// Empty tokens are never valid, malformed ones are always expired.
func IsTokenValid(token string, ttl time.Duration, now time.Time) bool {
	if token == "" {
		return false
	}
	return TokenTimestamp(token)+int64(ttl/time.Second) >= now.Unix()
}

// GeneratePasswordResetToken sets a new password reset token
func (a *Account) GeneratePasswordResetToken(rnd RandomStringGenerator, now time.Time) error {
	token, err := GenerateToken(rnd, now)
	if err != nil {
		return err
	}
	a.PasswordResetToken = token
	return nil
}

// RemovePasswordResetToken clears the password reset token
func (a *Account) RemovePasswordResetToken() {
	a.PasswordResetToken = ""
}

// GenerateAccountActivationToken sets a new account activation token
func (a *Account) GenerateAccountActivationToken(rnd RandomStringGenerator, now time.Time) error {
	token, err := GenerateToken(rnd, now)
	if err != nil {
		return err
	}
	a.AccountActivationToken = token
	return nil
}

// RemoveAccountActivationToken clears the account activation token
func (a *Account) RemoveAccountActivationToken() {
	a.AccountActivationToken = ""
}
