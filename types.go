package accounts

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Authenticatable is implemented by records that can back a login session
type Authenticatable interface {
	GetID() string
	GetAuthKey() string
	ValidateAuthKey(key string) bool
}

// Config holds account options
type Config interface {
	// GetPasswordResetTokenExpire is the reset token TTL in seconds
	GetPasswordResetTokenExpire() int
	// GetForceStrongPassword selects the strength password policy
	GetForceStrongPassword() bool
	GetDefaultRole() string
	GetAppName() string
	GetBaseURL() string
	GetBcryptCost() int
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, login, password string) (Authenticatable, error)
	FindIdentity(ctx context.Context, id string) (Authenticatable, error)
}

// Options is a plain Config implementation
type Options struct {
	PasswordResetTokenExpire int    `json:"password_reset_token_expire" mapstructure:"password_reset_token_expire"`
	ForceStrongPassword      bool   `json:"force_strong_password" mapstructure:"force_strong_password"`
	DefaultRole              string `json:"default_role" mapstructure:"default_role"`
	AppName                  string `json:"app_name" mapstructure:"app_name"`
	BaseURL                  string `json:"base_url" mapstructure:"base_url"`
	BcryptCost               int    `json:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

// DefaultOptions mirrors the stock application parameters
func DefaultOptions() Options {
	return Options{
		PasswordResetTokenExpire: 3600,
		ForceStrongPassword:      false,
		DefaultRole:              string(RoleMember),
		AppName:                  "go-accounts",
		BaseURL:                  "http://localhost:8572",
	}
}

func (o Options) GetPasswordResetTokenExpire() int { return o.PasswordResetTokenExpire }
func (o Options) GetForceStrongPassword() bool     { return o.ForceStrongPassword }
func (o Options) GetDefaultRole() string           { return o.DefaultRole }
func (o Options) GetAppName() string               { return o.AppName }
func (o Options) GetBaseURL() string               { return o.BaseURL }
func (o Options) GetBcryptCost() int               { return o.BcryptCost }

var _ Config = Options{}

func resetTokenTTL(cfg Config) time.Duration {
	return time.Duration(cfg.GetPasswordResetTokenExpire()) * time.Second
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
