package accounts_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAccountKeepsPasswordWhenEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	err := accounts.NewUpdateAccountHandler(env.deps).Execute(ctx, accounts.UpdateAccountMessage{
		ID:       account.ID,
		Username: "renamed",
		Email:    "renamed@example.com",
	})
	require.NoError(t, err)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed@example.com", stored.Email)
	assert.True(t, stored.ValidatePassword("secret"))

	require.Len(t, env.sink.events, 1)
	assert.Equal(t, accounts.ActivityEventUpdated, env.sink.events[0].EventType)
	assert.Equal(t, map[string]any{
		"username": "renamed",
		"email":    "renamed@example.com",
	}, env.sink.events[0].Metadata)
}

func TestUpdateAccountChangesPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	handler := accounts.NewUpdateAccountHandler(env.deps)

	err := handler.Execute(ctx, accounts.UpdateAccountMessage{
		ID:          account.ID,
		Username:    "tester",
		Email:       "tester@example.com",
		NewPassword: "123",
	})
	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.True(t, fieldErrs.Has(accounts.FieldPassword))

	err = handler.Execute(ctx, accounts.UpdateAccountMessage{
		ID:          account.ID,
		Username:    "tester",
		Email:       "tester@example.com",
		NewPassword: "changed1",
	})
	require.NoError(t, err)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "tester")
	require.NoError(t, err)
	assert.True(t, stored.ValidatePassword("changed1"))
}

func TestUpdateAccountUniqueness(t *testing.T) {
	env := newTestEnv(t)
	env.insertAccount(t, "first", "first@example.com", accounts.StatusActive)
	second := env.insertAccount(t, "second", "second@example.com", accounts.StatusActive)

	err := accounts.NewUpdateAccountHandler(env.deps).Execute(context.Background(), accounts.UpdateAccountMessage{
		ID:       second.ID,
		Username: "first",
		Email:    "second@example.com",
	})

	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, map[string]string{accounts.FieldUsername: accounts.MessageUsernameTaken}, fieldErrs.Map())
}

func TestUpdateAccountNotFound(t *testing.T) {
	env := newTestEnv(t)

	err := accounts.NewUpdateAccountHandler(env.deps).Execute(context.Background(), accounts.UpdateAccountMessage{
		ID:       uuid.New(),
		Username: "ghost",
		Email:    "ghost@example.com",
	})
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var created *accounts.Account
	err := accounts.NewCreateAccountHandler(env.deps).Execute(ctx, accounts.CreateAccountMessage{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "secret1",
		Status:   accounts.StatusActive,
		Role:     accounts.RoleAdmin,
		Actor:    accounts.ActorRef{ID: "cli", Type: "system"},
		OnResponse: func(a *accounts.Account) {
			created = a
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Empty(t, created.AccountActivationToken)

	role, err := env.repo.Roles().FindRoleForAccount(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleAdmin, role.ItemName)
	assert.True(t, role.ItemName.CanManageAccounts())

	_, ok := env.mailer.Last()
	assert.False(t, ok)
}

func TestCreateAccountDefaultsToInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var created *accounts.Account
	err := accounts.NewCreateAccountHandler(env.deps).Execute(ctx, accounts.CreateAccountMessage{
		Username: "unset",
		Email:    "unset@example.com",
		Password: "secret1",
		OnResponse: func(a *accounts.Account) {
			created = a
		},
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, accounts.StatusNotActive, created.Status)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "unset")
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusNotActive, stored.Status)
}

func TestCreateAccountRejectsUnknownRoleAndStatus(t *testing.T) {
	env := newTestEnv(t)
	handler := accounts.NewCreateAccountHandler(env.deps)

	err := handler.Execute(context.Background(), accounts.CreateAccountMessage{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "secret1",
		Status:   accounts.StatusActive,
		Role:     "ghost",
	})
	assert.ErrorIs(t, err, accounts.ErrInvalidRole)

	err = handler.Execute(context.Background(), accounts.CreateAccountMessage{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "secret1",
		Status:   accounts.Status(5),
	})
	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.True(t, fieldErrs.Has(accounts.FieldStatus))
}

func TestChangeStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := signupAccount(t, env, "pending")

	handler := accounts.NewChangeStatusHandler(env.deps)

	var updated *accounts.Account
	err := handler.Execute(ctx, accounts.ChangeStatusMessage{
		ID:     pending.ID,
		Status: accounts.StatusActive,
		Actor:  accounts.ActorRef{ID: "admin", Type: "account"},
		OnResponse: func(a *accounts.Account) {
			updated = a
		},
	})
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusActive, updated.Status)
	assert.Empty(t, updated.AccountActivationToken)

	err = handler.Execute(ctx, accounts.ChangeStatusMessage{
		ID:     pending.ID,
		Status: accounts.StatusDeleted,
		Reason: "spam",
	})
	require.NoError(t, err)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, accounts.StatusDeleted, stored.Status)
	assert.Equal(t, "Deleted", stored.StatusName())

	last := env.sink.events[len(env.sink.events)-1]
	assert.Equal(t, accounts.ActivityEventStatusChanged, last.EventType)
	assert.Equal(t, accounts.StatusActive, last.FromStatus)
	assert.Equal(t, accounts.StatusDeleted, last.ToStatus)
	assert.Equal(t, "spam", last.Metadata["reason"])
}

func TestChangeStatusRevokesAndRestoresRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := signupAccount(t, env, "member")
	handler := accounts.NewChangeStatusHandler(env.deps)

	_, err := env.repo.Roles().FindRoleForAccount(ctx, account.ID)
	require.NoError(t, err)

	var updated *accounts.Account
	err = handler.Execute(ctx, accounts.ChangeStatusMessage{
		ID:     account.ID,
		Status: accounts.StatusDeleted,
		OnResponse: func(a *accounts.Account) {
			updated = a
		},
	})
	require.NoError(t, err)
	assert.Empty(t, updated.RoleName)

	_, err = env.repo.Roles().FindRoleForAccount(ctx, account.ID)
	assert.ErrorIs(t, err, accounts.ErrRoleNotFound)

	err = handler.Execute(ctx, accounts.ChangeStatusMessage{
		ID:     account.ID,
		Status: accounts.StatusActive,
		OnResponse: func(a *accounts.Account) {
			updated = a
		},
	})
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleName(accounts.DefaultOptions().DefaultRole), updated.RoleName)

	role, err := env.repo.Roles().FindRoleForAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleName(accounts.DefaultOptions().DefaultRole), role.ItemName)
}

func TestChangeStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	handler := accounts.NewChangeStatusHandler(env.deps)

	err := handler.Execute(context.Background(), accounts.ChangeStatusMessage{ID: uuid.New(), Status: 7})
	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)

	err = handler.Execute(context.Background(), accounts.ChangeStatusMessage{ID: uuid.New(), Status: accounts.StatusActive})
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}
