package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	applied, err := accounts.Migrate(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestAccountsRegisterAndFind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.NotZero(t, created.CreatedAt)
	assert.NotZero(t, created.UpdatedAt)

	byName, err := env.repo.Accounts().FindByUsername(ctx, "tester")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, accounts.StatusActive, byName.Status)
	assert.Empty(t, byName.PasswordResetToken)

	byEmail, err := env.repo.Accounts().FindByEmail(ctx, "tester@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byLogin, err := env.repo.Accounts().FindByLogin(ctx, "tester@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byLogin.ID)

	byLogin, err = env.repo.Accounts().FindByLogin(ctx, " tester ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byLogin.ID)

	_, err = env.repo.Accounts().FindByUsername(ctx, "missing")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestAccountsRejectDuplicatesAtStorageLayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	dupUsername := &accounts.Account{
		Username:     "tester",
		Email:        "other@example.com",
		PasswordHash: "hash",
		AuthKey:      "key",
		Status:       accounts.StatusActive,
	}
	_, err := env.repo.Accounts().Register(ctx, dupUsername)
	require.Error(t, err)

	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, map[string]string{accounts.FieldUsername: accounts.MessageUsernameTaken}, fieldErrs.Map())

	dupEmail := &accounts.Account{
		Username:     "other",
		Email:        "tester@example.com",
		PasswordHash: "hash",
		AuthKey:      "key",
		Status:       accounts.StatusActive,
	}
	_, err = env.repo.Accounts().Register(ctx, dupEmail)
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, map[string]string{accounts.FieldEmail: accounts.MessageEmailTaken}, fieldErrs.Map())
}

func TestAccountsSaveRejectsDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.insertAccount(t, "first", "first@example.com", accounts.StatusActive)
	second := env.insertAccount(t, "second", "second@example.com", accounts.StatusActive)

	second.Username = "first"
	_, err := env.repo.Accounts().Save(ctx, second)

	var fieldErrs accounts.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.True(t, fieldErrs.Has(accounts.FieldUsername))
}

func TestAccountsUniquenessChecker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	taken, err := env.repo.Accounts().UsernameTaken(ctx, "tester", uuid.Nil)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = env.repo.Accounts().UsernameTaken(ctx, "tester", created.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	taken, err = env.repo.Accounts().EmailTaken(ctx, "nobody@example.com", uuid.Nil)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestFindByPasswordResetToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ttl := time.Hour
	issued := time.Unix(1_700_000_000, 0)

	active := env.insertAccount(t, "active", "active@example.com", accounts.StatusActive)
	require.NoError(t, active.GeneratePasswordResetToken(&sequenceRandom{}, issued))
	_, err := env.repo.Accounts().Save(ctx, active)
	require.NoError(t, err)

	found, err := env.repo.Accounts().FindByPasswordResetToken(ctx, active.PasswordResetToken, ttl, issued.Add(3599*time.Second))
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	_, err = env.repo.Accounts().FindByPasswordResetToken(ctx, active.PasswordResetToken, ttl, issued.Add(3601*time.Second))
	assert.True(t, repository.IsRecordNotFound(err))

	expired, err := env.repo.Accounts().FindByUsername(ctx, "active")
	require.NoError(t, err)
	assert.Empty(t, expired.PasswordResetToken)

	_, err = env.repo.Accounts().FindByPasswordResetToken(ctx, "unknown_1700000000", ttl, issued)
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = env.repo.Accounts().FindByPasswordResetToken(ctx, "", ttl, issued)
	assert.True(t, repository.IsRecordNotFound(err))

	inactive := env.insertAccount(t, "inactive", "inactive@example.com", accounts.StatusNotActive)
	require.NoError(t, inactive.GeneratePasswordResetToken(&sequenceRandom{n: 100}, issued))
	_, err = env.repo.Accounts().Save(ctx, inactive)
	require.NoError(t, err)

	_, err = env.repo.Accounts().FindByPasswordResetToken(ctx, inactive.PasswordResetToken, ttl, issued)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestFindByAccountActivationToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	issued := time.Unix(1_000, 0)

	pending := env.insertAccount(t, "pending", "pending@example.com", accounts.StatusNotActive)
	require.NoError(t, pending.GenerateAccountActivationToken(&sequenceRandom{}, issued))
	_, err := env.repo.Accounts().Save(ctx, pending)
	require.NoError(t, err)

	found, err := env.repo.Accounts().FindByAccountActivationToken(ctx, pending.AccountActivationToken)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, found.ID)

	_, err = env.repo.Accounts().FindByAccountActivationToken(ctx, "")
	assert.True(t, repository.IsRecordNotFound(err))

	pending.Status = accounts.StatusActive
	_, err = env.repo.Accounts().Save(ctx, pending)
	require.NoError(t, err)

	_, err = env.repo.Accounts().FindByAccountActivationToken(ctx, pending.AccountActivationToken)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestSaveClearsTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)
	require.NoError(t, account.GeneratePasswordResetToken(&sequenceRandom{}, time.Now()))
	_, err := env.repo.Accounts().Save(ctx, account)
	require.NoError(t, err)

	account.RemovePasswordResetToken()
	_, err = env.repo.Accounts().Save(ctx, account)
	require.NoError(t, err)

	var count int
	count, err = env.db.NewSelect().
		Model((*accounts.Account)(nil)).
		Where("password_reset_token IS NULL").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRolesAssignAndFind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	account := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	_, err := env.repo.Roles().FindRoleForAccount(ctx, account.ID)
	assert.ErrorIs(t, err, accounts.ErrRoleNotFound)

	_, err = env.repo.Roles().Assign(ctx, account.ID, accounts.RoleMember)
	require.NoError(t, err)

	role, err := env.repo.Roles().FindRoleForAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleMember, role.ItemName)
	assert.Equal(t, account.ID, role.UserID)

	_, err = env.repo.Roles().Assign(ctx, account.ID, accounts.RoleAdmin)
	require.NoError(t, err)

	role, err = env.repo.Roles().FindRoleForAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleAdmin, role.ItemName)

	count, err := env.db.NewSelect().Model((*accounts.Role)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, accounts.LoadRoleName(ctx, env.repo.Roles(), account))
	assert.Equal(t, accounts.RoleAdmin, account.RoleName)

	_, err = env.repo.Roles().Assign(ctx, account.ID, accounts.RoleName("ghost"))
	assert.ErrorIs(t, err, accounts.ErrInvalidRole)
}

func TestLoadRoleNameWithoutAssignment(t *testing.T) {
	env := newTestEnv(t)
	account := env.insertAccount(t, "tester", "tester@example.com", accounts.StatusActive)

	require.NoError(t, accounts.LoadRoleName(context.Background(), env.repo.Roles(), account))
	assert.Empty(t, account.RoleName)
}
