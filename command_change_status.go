package accounts

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChangeStatusMessage sets an account status. StatusDeleted is a soft
// delete, the row stays.
type ChangeStatusMessage struct {
	ID         uuid.UUID              `json:"id"`
	Status     Status                 `json:"status"`
	Reason     string                 `json:"reason,omitempty"`
	Actor      ActorRef               `json:"-"`
	OnResponse func(account *Account) `json:"-"`
}

func (e ChangeStatusMessage) Type() string { return "account.status.change" }

type ChangeStatusHandler struct {
	deps Dependencies
}

func NewChangeStatusHandler(deps Dependencies) *ChangeStatusHandler {
	return &ChangeStatusHandler{deps: deps}
}

func (h *ChangeStatusHandler) Execute(ctx context.Context, event ChangeStatusMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account status change")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangeStatusHandler) execute(ctx context.Context, event ChangeStatusMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if !event.Status.IsValid() {
		return FieldErrors{{Field: FieldStatus, Message: fieldLabel(FieldStatus) + " is invalid"}}
	}

	current, err := h.deps.loadAccount(ctx, event.ID)
	if err != nil {
		return err
	}

	if current.Status == event.Status {
		if event.OnResponse != nil {
			event.OnResponse(current)
		}
		return nil
	}

	var updated *Account
	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		updated, err = h.deps.Repo.Accounts().UpdateStatusTx(ctx, tx, event.ID, event.Status)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account status")
		}
		return h.syncRole(ctx, tx, current.Status, updated)
	})
	if err != nil {
		return commandError(err, "account status transaction failed")
	}

	h.deps.Logger.Info("account %s status %s -> %s", updated.Username, current.Status, updated.Status)

	metadata := map[string]any{}
	if event.Reason != "" {
		metadata["reason"] = event.Reason
	}

	h.deps.record(ctx, ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      event.Actor,
		AccountID:  updated.GetID(),
		FromStatus: current.Status,
		ToStatus:   updated.Status,
		Metadata:   metadata,
	})

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

// syncRole drops the role of deleted accounts and gives restored
// accounts the default role back.
func (h *ChangeStatusHandler) syncRole(ctx context.Context, tx bun.IDB, from Status, account *Account) error {
	roles := h.deps.Repo.Roles()

	if account.Status == StatusDeleted {
		if err := roles.RevokeTx(ctx, tx, account.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke account role")
		}
		account.RoleName = ""
		return nil
	}

	if from != StatusDeleted {
		return nil
	}

	role, err := roles.FindRoleForAccountTx(ctx, tx, account.ID)
	if err == nil {
		account.RoleName = role.ItemName
		return nil
	}
	if !errors.Is(err, ErrRoleNotFound) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account role")
	}

	name := RoleName(h.deps.Config.GetDefaultRole())
	if _, err := roles.AssignTx(ctx, tx, account.ID, name); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to restore account role")
	}
	account.RoleName = name
	return nil
}
