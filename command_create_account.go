package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CreateAccountMessage is the administrative create, no activation
// email is sent.
type CreateAccountMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Status left at its zero value creates an inactive account, soft
	// deleting is done with ChangeStatus.
	Status     Status                 `json:"status"`
	Role       RoleName               `json:"role"`
	Actor      ActorRef               `json:"-"`
	OnResponse func(account *Account) `json:"-"`
}

func (e CreateAccountMessage) Type() string { return "account.create" }

type CreateAccountHandler struct {
	deps Dependencies
}

func NewCreateAccountHandler(deps Dependencies) *CreateAccountHandler {
	return &CreateAccountHandler{deps: deps}
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account creation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAccountHandler) execute(ctx context.Context, event CreateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	role := event.Role
	if role == "" {
		role = RoleName(h.deps.Config.GetDefaultRole())
	}
	if !role.IsValid() {
		return ErrInvalidRole
	}

	status := event.Status
	if status == StatusDeleted {
		status = StatusNotActive
	}

	candidate := &Candidate{
		Scenario: ScenarioCreate,
		Username: event.Username,
		Email:    event.Email,
		Password: event.Password,
		Status:   status,
	}

	fieldErrs, err := h.deps.rules().Validate(ctx, candidate)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate account")
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}

	account := &Account{
		Username: candidate.Username,
		Email:    candidate.Email,
		Status:   candidate.Status,
	}

	if err := account.SetPassword(h.deps.Hasher, candidate.Password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	if err := account.GenerateAuthKey(h.deps.Random); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate auth key")
	}

	if account.Status == StatusNotActive {
		if err := account.GenerateAccountActivationToken(h.deps.Random, h.deps.Now()); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation token")
		}
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.deps.Repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return err
		}

		if _, err := h.deps.Repo.Roles().AssignTx(ctx, tx, account.ID, role); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not assign role")
		}
		return nil
	})
	if err != nil {
		return commandError(err, "account creation transaction failed")
	}
	account.RoleName = role

	h.deps.record(ctx, ActivityEvent{
		EventType: ActivityEventCreated,
		Actor:     event.Actor,
		AccountID: account.GetID(),
		ToStatus:  account.Status,
		Metadata: map[string]any{
			"username": account.Username,
			"role":     string(role),
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
