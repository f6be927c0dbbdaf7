package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

type Accounts interface {
	repository.Repository[*Account]
	UniquenessChecker

	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByLogin(ctx context.Context, login string) (*Account, error)
	FindActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByPasswordResetToken(ctx context.Context, token string, ttl time.Duration, now time.Time) (*Account, error)
	FindByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string, ttl time.Duration, now time.Time) (*Account, error)
	FindByAccountActivationToken(ctx context.Context, token string) (*Account, error)
	FindByAccountActivationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	Save(ctx context.Context, account *Account) (*Account, error)
	SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status Status) (*Account, error)
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return a.findOne(ctx, a.db, "username", username, nil)
}

func (a *accountsRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.findOne(ctx, a.db, "email", email, nil)
}

func (a *accountsRepo) FindActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	status := StatusActive
	return a.findOne(ctx, tx, "email", email, &status)
}

// FindByLogin resolves an email or a username
func (a *accountsRepo) FindByLogin(ctx context.Context, login string) (*Account, error) {
	login = strings.TrimSpace(login)
	if isEmail(login) {
		if record, err := a.FindByEmail(ctx, login); err == nil || !repository.IsRecordNotFound(err) {
			return record, err
		}
	}
	return a.FindByUsername(ctx, login)
}

func (a *accountsRepo) FindByPasswordResetToken(ctx context.Context, token string, ttl time.Duration, now time.Time) (*Account, error) {
	return a.FindByPasswordResetTokenTx(ctx, a.db, token, ttl, now)
}

// FindByPasswordResetTokenTx only returns active accounts holding a token
// that has not expired. Expired and unknown tokens look the same, an
// expired token is removed from its account.
func (a *accountsRepo) FindByPasswordResetTokenTx(ctx context.Context, tx bun.IDB, token string, ttl time.Duration, now time.Time) (*Account, error) {
	if !IsTokenValid(token, ttl, now) {
		if token != "" {
			if err := a.clearPasswordResetToken(ctx, tx, token); err != nil {
				return nil, err
			}
		}
		return nil, notFound("password_reset_token", token)
	}
	status := StatusActive
	return a.findOne(ctx, tx, "password_reset_token", token, &status)
}

func (a *accountsRepo) clearPasswordResetToken(ctx context.Context, tx bun.IDB, token string) error {
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_reset_token = NULL").
		Where("password_reset_token = ?", token).
		Exec(ctx)
	return err
}

func (a *accountsRepo) FindByAccountActivationToken(ctx context.Context, token string) (*Account, error) {
	return a.FindByAccountActivationTokenTx(ctx, a.db, token)
}

// FindByAccountActivationTokenTx only returns accounts waiting for activation
func (a *accountsRepo) FindByAccountActivationTokenTx(ctx context.Context, tx bun.IDB, token string) (*Account, error) {
	if token == "" {
		return nil, notFound("account_activation_token", token)
	}
	status := StatusNotActive
	return a.findOne(ctx, tx, "account_activation_token", token, &status)
}

func (a *accountsRepo) UsernameTaken(ctx context.Context, username string, exclude uuid.UUID) (bool, error) {
	return a.taken(ctx, "username", username, exclude)
}

func (a *accountsRepo) EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	return a.taken(ctx, "email", email, exclude)
}

func (a *accountsRepo) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

// RegisterTx inserts account. Unique index violations come back as
// FieldErrors so a lost race reads the same as a failed pre-check.
func (a *accountsRepo) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)

	if _, err := tx.NewInsert().Model(account).Exec(ctx); err != nil {
		return nil, uniqueViolationToFieldErrors(err)
	}
	return account, nil
}

func (a *accountsRepo) Save(ctx context.Context, account *Account) (*Account, error) {
	return a.SaveTx(ctx, a.db, account)
}

// SaveTx writes every column of account, nullzero tokens become NULL
func (a *accountsRepo) SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	res, err := tx.NewUpdate().
		Model(account).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, uniqueViolationToFieldErrors(err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, notFound("id", account.ID.String())
	}
	return account, nil
}

func (a *accountsRepo) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status Status) (*Account, error) {
	record := &Account{}
	if err := tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("id", id.String())
		}
		return nil, err
	}

	record.Status = status
	if status == StatusActive {
		record.RemoveAccountActivationToken()
	}
	return a.SaveTx(ctx, tx, record)
}

func (a *accountsRepo) findOne(ctx context.Context, tx bun.IDB, column string, value any, status *Status) (*Account, error) {
	record := &Account{}
	q := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value)

	if status != nil {
		q.Where("?TableAlias.status = ?", *status)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(column, value)
		}
		return nil, err
	}
	return record, nil
}

func (a *accountsRepo) taken(ctx context.Context, column, value string, exclude uuid.UUID) (bool, error) {
	q := a.db.NewSelect().
		Model((*Account)(nil)).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value)

	if exclude != uuid.Nil {
		q.Where("?TableAlias.id != ?", exclude)
	}

	return q.Exists(ctx)
}

func notFound(lookup string, value any) error {
	return repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"lookup": lookup,
			"value":  value,
		})
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if !record.Status.IsValid() {
		record.Status = StatusNotActive
	}
}

// uniqueViolationToFieldErrors maps unique index violations on username
// or email to field errors and returns any other error untouched.
func uniqueViolationToFieldErrors(err error) error {
	field, ok := uniqueViolationField(err)
	if !ok {
		return err
	}

	switch field {
	case FieldUsername:
		return FieldErrors{{Field: FieldUsername, Message: MessageUsernameTaken}}
	case FieldEmail:
		return FieldErrors{{Field: FieldEmail, Message: MessageEmailTaken}}
	}
	return err
}

func uniqueViolationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return constraintField(pgErr.ConstraintName + " " + pgErr.Detail)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "duplicate key") {
		return constraintField(msg)
	}
	return "", false
}

func constraintField(s string) (string, bool) {
	switch {
	case strings.Contains(s, "username"):
		return FieldUsername, true
	case strings.Contains(s, "email"):
		return FieldEmail, true
	default:
		return "", false
	}
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}
