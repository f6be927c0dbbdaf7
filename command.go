package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

const commandTimeout = time.Second * 10

// Dependencies are shared by the account command handlers. Zero values
// are replaced with defaults by NewDependencies.
type Dependencies struct {
	Repo     RepositoryManager
	Config   Config
	Hasher   PasswordHasher
	Random   RandomStringGenerator
	Mailer   Mailer
	Activity ActivitySink
	Logger   Logger
	Now      func() time.Time
}

// NewDependencies fills in defaults for anything left unset
func NewDependencies(repo RepositoryManager, cfg Config, opts ...func(*Dependencies)) Dependencies {
	d := Dependencies{Repo: repo, Config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}

	if d.Config == nil {
		d.Config = DefaultOptions()
	}
	if d.Hasher == nil {
		d.Hasher = NewBcryptHasher(d.Config.GetBcryptCost())
	}
	if d.Random == nil {
		d.Random = SecureRandom{}
	}
	if d.Logger == nil {
		d.Logger = defLogger{}
	}
	if d.Mailer == nil {
		d.Mailer = NewLogMailer(d.Logger)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Activity = normalizeActivitySink(d.Activity)
	return d
}

func WithHasher(h PasswordHasher) func(*Dependencies) {
	return func(d *Dependencies) { d.Hasher = h }
}

func WithRandom(r RandomStringGenerator) func(*Dependencies) {
	return func(d *Dependencies) { d.Random = r }
}

func WithMailer(m Mailer) func(*Dependencies) {
	return func(d *Dependencies) { d.Mailer = m }
}

func WithActivity(s ActivitySink) func(*Dependencies) {
	return func(d *Dependencies) { d.Activity = s }
}

func WithLogger(l Logger) func(*Dependencies) {
	return func(d *Dependencies) { d.Logger = l }
}

func WithClock(now func() time.Time) func(*Dependencies) {
	return func(d *Dependencies) { d.Now = now }
}

func (d Dependencies) rules() RuleSet {
	return AccountRules(d.Config.GetForceStrongPassword(), d.Repo.Accounts())
}

func (d Dependencies) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.Now().UTC()
	}
	recordActivity(ctx, d.Activity, d.Logger, event)
}

func cancelled(ctx context.Context, operation string) error {
	return goerrors.Wrap(
		ctx.Err(),
		goerrors.CategoryOperation,
		"context cancelled during "+operation,
	)
}

// commandError keeps field errors and rich errors intact, anything else
// is wrapped as an internal failure.
func commandError(err error, message string) error {
	if err == nil {
		return nil
	}

	var fieldErrs FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}

func (d Dependencies) loadAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := d.Repo.Accounts().GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}
	return account, nil
}
