package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestReset(t *testing.T, env *testEnv, email string) *accounts.RequestPasswordResetResponse {
	t.Helper()

	var resp *accounts.RequestPasswordResetResponse
	err := accounts.NewRequestPasswordResetHandler(env.deps).Execute(context.Background(), accounts.RequestPasswordResetMessage{
		Email: email,
		OnResponse: func(r *accounts.RequestPasswordResetResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestRequestPasswordResetSendsLink(t *testing.T) {
	env := newTestEnv(t)
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	resp := requestReset(t, env, " tester@example.com ")
	require.NotNil(t, resp.Account)
	assert.True(t, resp.Sent)

	stored, err := env.repo.Accounts().FindByUsername(context.Background(), "tester")
	require.NoError(t, err)
	require.NotEmpty(t, stored.PasswordResetToken)
	assert.Equal(t, env.clock.Now().Unix(), accounts.TokenTimestamp(stored.PasswordResetToken))

	msg, ok := env.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "tester@example.com", msg.To)
	assert.Contains(t, msg.HTML, "/site/reset-password?token="+stored.PasswordResetToken)
	assert.Contains(t, msg.HTML, "60 minutes")
}

func TestRequestPasswordResetReusesValidToken(t *testing.T) {
	env := newTestEnv(t)
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	first := requestReset(t, env, "tester@example.com").Account.PasswordResetToken

	env.clock.Advance(30 * time.Minute)
	second := requestReset(t, env, "tester@example.com").Account.PasswordResetToken
	assert.Equal(t, first, second)

	env.clock.Advance(31 * time.Minute)
	third := requestReset(t, env, "tester@example.com").Account.PasswordResetToken
	assert.NotEqual(t, first, third)
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	env.insertAccount(t, "inactive", "inactive@example.com", accounts.StatusNotActive)

	for _, email := range []string{"nobody@example.com", "inactive@example.com"} {
		resp := requestReset(t, env, email)
		assert.Nil(t, resp.Account)
		assert.False(t, resp.Sent)
	}

	_, ok := env.mailer.Last()
	assert.False(t, ok)
}

func TestRequestPasswordResetInvalidEmail(t *testing.T) {
	env := newTestEnv(t)

	err := accounts.NewRequestPasswordResetHandler(env.deps).Execute(context.Background(), accounts.RequestPasswordResetMessage{
		Email: "not-an-email",
	})

	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.True(t, fieldErrs.Has(accounts.FieldEmail))
}

func TestRequestPasswordResetMailerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)
	env.mailer.err = errors.New("smtp down")

	resp := requestReset(t, env, "tester@example.com")
	assert.False(t, resp.Sent)
	assert.NotContains(t, env.sink.Types(), accounts.ActivityEventPasswordResetRequested)

	unknown := requestReset(t, env, "nobody@example.com")
	assert.Equal(t, unknown.Sent, resp.Sent)
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	token := requestReset(t, env, "tester@example.com").Account.PasswordResetToken
	handler := accounts.NewResetPasswordHandler(env.deps)

	_, err := handler.CheckToken(ctx, token)
	require.NoError(t, err)

	err = handler.Execute(ctx, accounts.ResetPasswordMessage{Token: token, Password: "brand-new"})
	require.NoError(t, err)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "tester")
	require.NoError(t, err)
	assert.True(t, stored.ValidatePassword("brand-new"))
	assert.False(t, stored.ValidatePassword("secret"))
	assert.Empty(t, stored.PasswordResetToken)

	err = handler.Execute(ctx, accounts.ResetPasswordMessage{Token: token, Password: "another1"})
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)

	assert.Contains(t, env.sink.Types(), accounts.ActivityEventPasswordReset)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	token := requestReset(t, env, "tester@example.com").Account.PasswordResetToken
	handler := accounts.NewResetPasswordHandler(env.deps)

	env.clock.Advance(3599 * time.Second)
	_, err := handler.CheckToken(ctx, token)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Second)
	_, err = handler.CheckToken(ctx, token)
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)

	err = handler.Execute(ctx, accounts.ResetPasswordMessage{Token: token, Password: "brand-new"})
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "tester")
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.True(t, stored.ValidatePassword("secret"))
}

func TestResetPasswordClearsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	token := requestReset(t, env, "tester@example.com").Account.PasswordResetToken
	env.clock.Advance(2 * time.Hour)

	err := accounts.NewResetPasswordHandler(env.deps).Execute(ctx, accounts.ResetPasswordMessage{Token: token, Password: "brand-new"})
	assert.ErrorIs(t, err, accounts.ErrInvalidToken)

	stored, err := env.repo.Accounts().FindByUsername(ctx, "tester")
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
}

func TestResetPasswordMalformedToken(t *testing.T) {
	env := newTestEnv(t)
	handler := accounts.NewResetPasswordHandler(env.deps)

	for _, token := range []string{"", "abc_notanumber", "abc"} {
		err := handler.Execute(context.Background(), accounts.ResetPasswordMessage{Token: token, Password: "brand-new"})
		assert.ErrorIs(t, err, accounts.ErrInvalidToken, "token %q", token)
	}
}

func TestResetPasswordAppliesPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	token := requestReset(t, env, "tester@example.com").Account.PasswordResetToken

	err := accounts.NewResetPasswordHandler(env.deps).Execute(ctx, accounts.ResetPasswordMessage{Token: token, Password: "12345"})

	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.True(t, fieldErrs.Has(accounts.FieldPassword))

	stored, err := env.repo.Accounts().FindByUsername(ctx, "tester")
	require.NoError(t, err)
	assert.Equal(t, token, stored.PasswordResetToken)
}
