package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type UpdateAccountMessage struct {
	ID          uuid.UUID              `json:"id"`
	Username    string                 `json:"username" form:"username"`
	Email       string                 `json:"email" form:"email"`
	NewPassword string                 `json:"new_password" form:"newPassword"`
	Actor       ActorRef               `json:"-"`
	OnResponse  func(account *Account) `json:"-"`
}

func (e UpdateAccountMessage) Type() string { return "account.update" }

// UpdateAccountHandler changes username, email and optionally the
// password. An empty NewPassword keeps the current one.
type UpdateAccountHandler struct {
	deps Dependencies
}

func NewUpdateAccountHandler(deps Dependencies) *UpdateAccountHandler {
	return &UpdateAccountHandler{deps: deps}
}

func (h *UpdateAccountHandler) Execute(ctx context.Context, event UpdateAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateAccountHandler) execute(ctx context.Context, event UpdateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	account, err := h.deps.loadAccount(ctx, event.ID)
	if err != nil {
		return err
	}

	candidate := &Candidate{
		ID:       account.ID,
		Scenario: ScenarioDefault,
		Username: event.Username,
		Email:    event.Email,
		Password: event.NewPassword,
		Status:   account.Status,
	}

	fieldErrs, err := h.deps.rules().Validate(ctx, candidate)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate account update")
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}

	changes := map[string]any{}
	if account.Username != candidate.Username {
		changes["username"] = candidate.Username
	}
	if account.Email != candidate.Email {
		changes["email"] = candidate.Email
	}

	account.Username = candidate.Username
	account.Email = candidate.Email

	if candidate.Password != "" {
		if err := account.SetPassword(h.deps.Hasher, candidate.Password); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}
		changes["password"] = true
	}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.deps.Repo.Accounts().SaveTx(ctx, tx, account)
		return err
	})
	if err != nil {
		return commandError(err, "account update transaction failed")
	}

	actor := event.Actor
	if actor.ID == "" {
		actor = ActorSelf(account.GetID())
	}

	h.deps.record(ctx, ActivityEvent{
		EventType:  ActivityEventUpdated,
		Actor:      actor,
		AccountID:  account.GetID(),
		FromStatus: account.Status,
		ToStatus:   account.Status,
		Metadata:   changes,
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
