package accounts

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AccountFinder is the store the provider reads from
type AccountFinder interface {
	FindByLogin(ctx context.Context, login string) (*Account, error)
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*Account, error)
}

// AccountProvider resolves identities from stored accounts
type AccountProvider struct {
	store  AccountFinder
	logger Logger
}

var _ IdentityProvider = (*AccountProvider)(nil)

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountFinder) *AccountProvider {
	return &AccountProvider{
		store:  store,
		logger: defLogger{},
	}
}

func (u *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity finds the account by username or email and checks the
// password. Only active accounts can log in.
func (u AccountProvider) VerifyIdentity(ctx context.Context, login, password string) (Authenticatable, error) {
	account, err := u.store.FindByLogin(ctx, login)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		u.logger.Debug("password mismatch for %s", login)
		return nil, ErrMismatchedHashAndPassword
	}

	if !account.IsActive() {
		return nil, ErrAccountInactive
	}

	return account, nil
}

// FindIdentity loads an active account by id
func (u AccountProvider) FindIdentity(ctx context.Context, id string) (Authenticatable, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrIdentityNotFound
	}

	account, err := u.store.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if !account.IsActive() {
		return nil, ErrIdentityNotFound
	}

	return account, nil
}

// IsAuthError checks for credential errors that should be shown as a
// generic login failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrMismatchedHashAndPassword) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrIdentityNotFound)
}
