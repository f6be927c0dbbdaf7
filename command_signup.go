package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type SignupMessage struct {
	Username  string `json:"username" form:"username"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	UseHashid bool   `json:"-" form:"-"`
	// OnResponse receives the created account
	OnResponse func(account *Account) `json:"-" form:"-"`
}

func (e SignupMessage) Type() string { return "account.signup" }

// SignupHandler registers a new inactive account and mails the
// activation link.
type SignupHandler struct {
	deps Dependencies
}

func NewSignupHandler(deps Dependencies) *SignupHandler {
	return &SignupHandler{deps: deps}
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return cancelled(ctx, "account signup")
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	candidate := &Candidate{
		Scenario: ScenarioCreate,
		Username: event.Username,
		Email:    event.Email,
		Password: event.Password,
		Status:   StatusNotActive,
	}

	fieldErrs, err := h.deps.rules().Validate(ctx, candidate)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate signup")
	}
	if len(fieldErrs) > 0 {
		return fieldErrs
	}

	now := h.deps.Now()
	account := &Account{
		Username: candidate.Username,
		Email:    candidate.Email,
		Status:   StatusNotActive,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(account.Email); err == nil {
			account.ID = id
		}
	}

	if err := account.SetPassword(h.deps.Hasher, candidate.Password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	if err := account.GenerateAuthKey(h.deps.Random); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate auth key")
	}

	if err := account.GenerateAccountActivationToken(h.deps.Random, now); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate activation token")
	}

	role, ok := ParseRole(h.deps.Config.GetDefaultRole())
	if !ok {
		role = RoleMember
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
		return commandError(err, "account signup transaction failed")
	}
	account.RoleName = role

	msg, err := AccountActivationMessage(h.deps.Config.GetAppName(), h.deps.Config.GetBaseURL(), account)
	if err != nil {
		h.deps.Logger.Error("failed to render activation email for %s: %v", account.Email, err)
	} else if err := h.deps.Mailer.Send(ctx, msg); err != nil {
		h.deps.Logger.Error("failed to send activation email to %s: %v", account.Email, err)
	}

	h.deps.record(ctx, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     ActorSelf(account.GetID()),
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
