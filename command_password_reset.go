package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type ResetPasswordMessage struct {
	Token    string `json:"token" query:"token"`
	Password string `json:"password" form:"password"`
}

func (e ResetPasswordMessage) Type() string { return "account.password_reset" }

type ResetPasswordHandler struct {
	deps Dependencies
}

func NewResetPasswordHandler(deps Dependencies) *ResetPasswordHandler {
	return &ResetPasswordHandler{deps: deps}
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "password reset")
	default:
		return h.execute(ctx, event)
	}
}

// CheckToken reports ErrInvalidToken when token can not be used. The
// reset form calls it before rendering.
func (h *ResetPasswordHandler) CheckToken(ctx context.Context, token string) (*Account, error) {
	account, err := h.deps.Repo.Accounts().FindByPasswordResetToken(ctx, token, resetTokenTTL(h.deps.Config), h.deps.Now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check password reset token")
	}
	return account, nil
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var account *Account
	var invalid bool
	now := h.deps.Now()

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.deps.Repo.Accounts().FindByPasswordResetTokenTx(ctx, tx, event.Token, resetTokenTTL(h.deps.Config), now)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// commit so an expired token stays cleared
				invalid = true
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		candidate := &Candidate{
			ID:       account.ID,
			Scenario: ScenarioCreate,
			Username: account.Username,
			Email:    account.Email,
			Password: event.Password,
			Status:   account.Status,
		}

		rules := RuleSet{
			PasswordRequiredOn(ScenarioCreate),
			PasswordPolicyRule(PasswordRule(h.deps.Config.GetForceStrongPassword())),
		}

		fieldErrs, err := rules.Validate(ctx, candidate)
		if err != nil {
			return err
		}
		if len(fieldErrs) > 0 {
			return fieldErrs
		}

		if err := account.SetPassword(h.deps.Hasher, event.Password); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}
		account.RemovePasswordResetToken()

		if _, err := h.deps.Repo.Accounts().SaveTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
		}
		return nil
	})
	if err != nil {
		return commandError(err, "password reset transaction failed")
	}
	if invalid {
		return ErrInvalidToken
	}

	h.deps.record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		Actor:      ActorSelf(account.GetID()),
		AccountID:  account.GetID(),
		FromStatus: account.Status,
		ToStatus:   account.Status,
	})

	return nil
}
