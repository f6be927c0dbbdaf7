package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	Token      string `json:"token" query:"token"`
	OnResponse func(account *Account)
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

type ActivateAccountHandler struct {
	deps Dependencies
}

func NewActivateAccountHandler(deps Dependencies) *ActivateAccountHandler {
	return &ActivateAccountHandler{deps: deps}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var account *Account

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.deps.Repo.Accounts().FindByAccountActivationTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for activation")
		}

		account.Status = StatusActive
		account.RemoveAccountActivationToken()

		if _, err := h.deps.Repo.Accounts().SaveTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}
		return nil
	})
	if err != nil {
		return commandError(err, "account activation transaction failed")
	}

	h.deps.Logger.Info("account %s activated", account.Username)

	h.deps.record(ctx, ActivityEvent{
		EventType:  ActivityEventActivated,
		Actor:      ActorSelf(account.GetID()),
		AccountID:  account.GetID(),
		FromStatus: StatusNotActive,
		ToStatus:   StatusActive,
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
