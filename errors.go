package accounts

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidToken is used for unknown, expired, or malformed tokens
	TextCodeInvalidToken = "INVALID_TOKEN"
	// TextCodeAccountNotFound is used when no account matches
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be empty")

// ErrMismatchedHashAndPassword is returned when credentials don't match
var ErrMismatchedHashAndPassword = errors.New("password and hash do not match")

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrRoleNotFound is returned when an account has no role assignment
var ErrRoleNotFound = errors.New("role not found")

// ErrInvalidToken covers missing, expired and malformed tokens alike
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotFound is returned by administrative commands
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// IsInvalidToken checks for ErrInvalidToken
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

// ErrInvalidRole is returned when assigning an unknown role
var ErrInvalidRole = goerrors.New("invalid role", goerrors.CategoryBadInput).
	WithTextCode("INVALID_ROLE")

// ErrAccountInactive is returned when a non active account tries to log in
var ErrAccountInactive = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode("ACCOUNT_INACTIVE")
