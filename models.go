package accounts

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status is the persisted account status
type Status int

const (
	// StatusDeleted is a soft deleted account
	StatusDeleted Status = 0
	// StatusNotActive is an account waiting for activation
	StatusNotActive Status = 1
	// StatusActive is an active account
	StatusActive Status = 10
)

// Account is the account model
type Account struct {
	bun.BaseModel          `bun:"table:accounts,alias:acc"`
	ID                     uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username               string    `bun:"username,notnull,unique" json:"username,omitempty"`
	Email                  string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash           string    `bun:"password_hash,notnull" json:"-"`
	Status                 Status    `bun:"status,notnull" json:"status"`
	AuthKey                string    `bun:"auth_key,notnull" json:"-"`
	PasswordResetToken     string    `bun:"password_reset_token,nullzero" json:"-"`
	AccountActivationToken string    `bun:"account_activation_token,nullzero" json:"-"`
	CreatedAt              int64     `bun:"created_at,notnull" json:"created_at,omitempty"`
	UpdatedAt              int64     `bun:"updated_at,notnull" json:"updated_at,omitempty"`

	// RoleName is filled by callers that load the role explicitly,
	// see Roles.FindRoleForAccount.
	RoleName RoleName `bun:"-" json:"role,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Account)(nil)

// nowFunc is the clock used by model hooks
var nowFunc = time.Now

// BeforeAppendModel keeps created_at and updated_at in unix seconds
func (a *Account) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	ts := nowFunc().Unix()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.CreatedAt == 0 {
			a.CreatedAt = ts
		}
		a.UpdatedAt = ts
	case *bun.UpdateQuery:
		a.UpdatedAt = ts
	}
	return nil
}

// StatusName returns the label for the account's status
func (a *Account) StatusName() string {
	return StatusName(a.Status)
}

// IsActive checks the account can log in
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// GetID implements Authenticatable
func (a *Account) GetID() string {
	return a.ID.String()
}

// GetAuthKey implements Authenticatable
func (a *Account) GetAuthKey() string {
	return a.AuthKey
}

// ValidateAuthKey implements Authenticatable
func (a *Account) ValidateAuthKey(key string) bool {
	if a.AuthKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.AuthKey), []byte(key)) == 1
}

// ValidatePassword checks the given cleartext password against the hash
func (a *Account) ValidatePassword(password string) bool {
	return ComparePasswordAndHash(password, a.PasswordHash) == nil
}

// SetPassword hashes password and stores the hash
func (a *Account) SetPassword(hasher PasswordHasher, password string) error {
	hash, err := hasher.HashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

// GenerateAuthKey sets a new remember-me key
func (a *Account) GenerateAuthKey(rnd RandomStringGenerator) error {
	key, err := rnd.RandomString(AuthKeyLength)
	if err != nil {
		return err
	}
	a.AuthKey = key
	return nil
}

// Role is the RBAC assignment of an account, one per account
type Role struct {
	bun.BaseModel `bun:"table:auth_assignment,alias:aa"`
	ItemName      RoleName  `bun:"item_name,notnull" json:"item_name"`
	UserID        uuid.UUID `bun:"user_id,pk,type:uuid" json:"user_id"`
	CreatedAt     int64     `bun:"created_at,notnull" json:"created_at,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Role)(nil)

// BeforeAppendModel stamps created_at on insert
func (r *Role) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && r.CreatedAt == 0 {
		r.CreatedAt = nowFunc().Unix()
	}
	return nil
}
