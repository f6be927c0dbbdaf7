package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitysink"
	"github.com/goliatone/go-accounts/internal/config"
	"github.com/goliatone/go-persistence-bun"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/migrate"
	"github.com/uptrace/bun/schema"
)

// App holds the wired services shared by every command
type App struct {
	cfg    *config.Config
	logger *SlogLogger
	client *persistence.Client
	db     *bun.DB
	repo   accounts.RepositoryManager
	deps   accounts.Dependencies
	close  []func() error
}

func newApp(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:    cfg,
		logger: newLogger(cfg.Server.Log),
	}

	client, err := newPersistence(cfg.Database, app.logger)
	if err != nil {
		return nil, err
	}
	app.client = client
	app.db = client.DB()
	app.close = append(app.close, app.db.Close)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.GetPingTimeout())
	defer cancel()
	if err := app.db.PingContext(pingCtx); err != nil {
		app.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Database.Driver, err)
	}

	app.repo = accounts.NewRepositoryManager(app.db)

	opts := []func(*accounts.Dependencies){
		accounts.WithLogger(app.logger.With("component", "accounts")),
		accounts.WithMailer(app.mailer()),
	}

	if cfg.Redis.Addr != "" {
		rdb := activitysink.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		app.close = append(app.close, rdb.Close)
		opts = append(opts, accounts.WithActivity(activitysink.NewRedis(rdb, cfg.Redis.Channel)))
		app.logger.Info("publishing account activity to redis %s", cfg.Redis.Addr)
	}

	app.deps = accounts.NewDependencies(app.repo, cfg.Accounts, opts...)

	return app, nil
}

func (a *App) mailer() accounts.Mailer {
	if a.cfg.SMTP.Host == "" {
		return accounts.NewLogMailer(a.logger.With("component", "mailer"))
	}
	return accounts.NewSMTPMailer(a.cfg.SMTP)
}

func (a *App) Close() {
	for i := len(a.close) - 1; i >= 0; i-- {
		if err := a.close[i](); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
}

func init() {
	persistence.RegisterModel((*accounts.Account)(nil))
	persistence.RegisterModel((*accounts.Role)(nil))
}

// newPersistence opens the database and registers the embedded migrations
func newPersistence(cfg config.DatabaseConfig, logger *SlogLogger) (*persistence.Client, error) {
	sqldb, dialect, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("persistence: %w", err)
	}
	client.SetLogger(logger.With("component", "persistence"))

	client.RegisterDialectMigrations(
		accounts.GetMigrationsFS(),
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	return client, nil
}

// migrateUp applies pending migrations and returns their names
func migrateUp(ctx context.Context, client *persistence.Client) ([]string, error) {
	if err := client.ValidateDialects(ctx); err != nil {
		return nil, fmt.Errorf("validate migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}
	return reportedMigrations(client.Report()), nil
}

// migrateDown rolls back the last migration group
func migrateDown(ctx context.Context, client *persistence.Client) ([]string, error) {
	if err := client.Rollback(ctx); err != nil {
		return nil, err
	}
	return reportedMigrations(client.Report()), nil
}

func reportedMigrations(report *migrate.MigrationGroup) []string {
	if report == nil || report.IsZero() {
		return nil
	}
	names := make([]string, 0, len(report.Migrations))
	for _, m := range report.Migrations {
		names = append(names, m.Name)
	}
	return names
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, schema.Dialect, error) {
	switch cfg.Driver {
	case "postgres", "pg":
		sqldb, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sqldb, pgdialect.New(), nil
	case "sqlite", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		sqldb.SetMaxOpenConns(1)
		return sqldb, sqlitedialect.New(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
