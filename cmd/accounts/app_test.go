package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestOpenDBSqlite(t *testing.T) {
	sqldb, dialect, err := openDB(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:?cache=shared"})
	require.NoError(t, err)

	db := bun.NewDB(sqldb, dialect)
	defer db.Close()

	require.NoError(t, db.PingContext(context.Background()))
	_, err = accounts.Migrate(context.Background(), db)
	require.NoError(t, err)
}

func TestOpenDBUnknownDriver(t *testing.T) {
	_, _, err := openDB(config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestPersistenceMigrations(t *testing.T) {
	ctx := context.Background()
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	client, err := newPersistence(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}, logger)
	require.NoError(t, err)
	defer client.DB().Close()

	applied, err := migrateUp(ctx, client)
	require.NoError(t, err)
	assert.NotEmpty(t, applied)

	repo := accounts.NewRepositoryManager(client.DB())
	_, err = repo.Accounts().FindByUsername(ctx, "nobody")
	assert.Error(t, err)
	taken, err := repo.Accounts().UsernameTaken(ctx, "nobody", uuid.Nil)
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestSlogLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.With("component", "test").Info("signup for %s", "newbie")
	assert.Contains(t, buf.String(), `msg="signup for newbie"`)
	assert.Contains(t, buf.String(), "component=test")
}

func TestDescribeError(t *testing.T) {
	err := describeError(accounts.FieldErrors{{Field: accounts.FieldUsername, Message: accounts.MessageUsernameTaken}})
	assert.ErrorContains(t, err, "invalid input")

	plain := errors.New("boom")
	assert.Equal(t, plain, describeError(plain))
}
