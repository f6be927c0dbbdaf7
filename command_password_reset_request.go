package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type RequestPasswordResetMessage struct {
	Email      string `json:"email" form:"email"`
	OnResponse func(resp *RequestPasswordResetResponse)
}

func (e RequestPasswordResetMessage) Type() string { return "account.password_reset.request" }

type RequestPasswordResetResponse struct {
	// Account is nil when no active account uses the email
	Account *Account
	Sent    bool
}

// RequestPasswordResetHandler stores a reset token and mails the link.
// Unknown emails and failed deliveries succeed without sending anything.
type RequestPasswordResetHandler struct {
	deps Dependencies
}

func NewRequestPasswordResetHandler(deps Dependencies) *RequestPasswordResetHandler {
	return &RequestPasswordResetHandler{deps: deps}
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	email := strings.TrimSpace(event.Email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return FieldErrors{{Field: FieldEmail, Message: fieldLabel(FieldEmail) + " " + err.Error()}}
	}

	resp := &RequestPasswordResetResponse{}
	now := h.deps.Now()
	ttl := resetTokenTTL(h.deps.Config)

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.deps.Repo.Accounts().FindActiveByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		if !IsTokenValid(account.PasswordResetToken, ttl, now) {
			if err := account.GeneratePasswordResetToken(h.deps.Random, now); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password reset token")
			}
		}

		if _, err := h.deps.Repo.Accounts().SaveTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset token")
		}

		resp.Account = account
		return nil
	})
	if err != nil {
		return commandError(err, "failed to request password reset")
	}

	if resp.Account == nil {
		h.deps.Logger.Debug("password reset requested for unknown email %s", email)
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	msg, err := PasswordResetMessage(h.deps.Config.GetAppName(), h.deps.Config.GetBaseURL(), resp.Account, h.deps.Config.GetPasswordResetTokenExpire())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render password reset email")
	}

	if err := h.deps.Mailer.Send(ctx, msg); err != nil {
		// answer like an unknown email, callers must not learn which addresses exist
		h.deps.Logger.Error("password reset email to %s not sent: %v", resp.Account.Email, err)
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}
	resp.Sent = true

	h.deps.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor:     ActorSelf(resp.Account.GetID()),
		AccountID: resp.Account.GetID(),
		ToStatus:  resp.Account.Status,
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
