package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Roles interface {
	FindRoleForAccount(ctx context.Context, accountID uuid.UUID) (*Role, error)
	FindRoleForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Role, error)
	Assign(ctx context.Context, accountID uuid.UUID, name RoleName) (*Role, error)
	AssignTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, name RoleName) (*Role, error)
	RevokeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (r *roles) FindRoleForAccount(ctx context.Context, accountID uuid.UUID) (*Role, error) {
	return r.FindRoleForAccountTx(ctx, r.db, accountID)
}

// FindRoleForAccountTx returns ErrRoleNotFound when the account has no
// assignment.
func (r *roles) FindRoleForAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", accountID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return record, nil
}

func (r *roles) Assign(ctx context.Context, accountID uuid.UUID, name RoleName) (*Role, error) {
	return r.AssignTx(ctx, r.db, accountID, name)
}

// AssignTx replaces any previous assignment of the account
func (r *roles) AssignTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, name RoleName) (*Role, error) {
	if !name.IsValid() {
		return nil, ErrInvalidRole
	}

	record := &Role{
		ItemName: name,
		UserID:   accountID,
	}

	_, err := tx.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("item_name = EXCLUDED.item_name").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *roles) RevokeTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Role)(nil)).
		Where("user_id = ?", accountID).
		Exec(ctx)
	return err
}

// LoadRoleName fills account.RoleName, leaving it empty when no role
// is assigned.
func LoadRoleName(ctx context.Context, repo Roles, account *Account) error {
	if account == nil || repo == nil {
		return nil
	}

	role, err := repo.FindRoleForAccount(ctx, account.ID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			account.RoleName = ""
			return nil
		}
		return err
	}
	account.RoleName = role.ItemName
	return nil
}
