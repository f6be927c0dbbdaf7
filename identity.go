package accounts

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// IdentityCookieName holds "<account id>:<auth key>" for logged in clients
	IdentityCookieName = "_identity"
	// CurrentAccountKey is the locals key of the logged in *Account
	CurrentAccountKey = "current_account"
)

// ErrForbidden is returned when the current account may not act on
// another account.
var ErrForbidden = goerrors.New("you are not allowed to perform this action", goerrors.CategoryAuth).
	WithTextCode("FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// IdentityCookieValue returns the identity cookie payload
func IdentityCookieValue(identity Authenticatable) string {
	return identity.GetID() + ":" + identity.GetAuthKey()
}

// ParseIdentityCookie splits an identity cookie into id and auth key
func ParseIdentityCookie(value string) (id, authKey string, ok bool) {
	id, authKey, ok = strings.Cut(value, ":")
	if !ok || id == "" || authKey == "" {
		return "", "", false
	}
	return id, authKey, true
}

// ResolveIdentity loads the active account behind an identity cookie and
// checks its auth key. Rotating the stored auth key logs out every client.
func ResolveIdentity(ctx context.Context, provider IdentityProvider, value string) (*Account, error) {
	id, authKey, ok := ParseIdentityCookie(value)
	if !ok {
		return nil, ErrIdentityNotFound
	}

	identity, err := provider.FindIdentity(ctx, id)
	if err != nil {
		return nil, err
	}

	account, ok := identity.(*Account)
	if !ok || !account.ValidateAuthKey(authKey) {
		return nil, ErrIdentityNotFound
	}
	return account, nil
}

// CanEdit reports whether actor may update the account with targetID.
// Accounts can edit themselves, admins can edit anyone.
func CanEdit(actor *Account, targetID uuid.UUID) bool {
	if actor == nil || targetID == uuid.Nil {
		return false
	}
	if actor.ID == targetID {
		return true
	}
	return actor.RoleName.CanManageAccounts()
}
