package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/internal/ratelimit"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the account web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		applied, err := migrateUp(ctx, app.client)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		for _, name := range applied {
			app.logger.Info("applied migration %s", name)
		}

		srv := newHTTPServer(app)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(fmt.Sprintf(":%d", app.cfg.Server.Port))
		}()
		app.logger.Info("listening on :%d", app.cfg.Server.Port)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func newHTTPServer(app *App) router.Server[*fiber.App] {
	engine := django.NewFileSystem(http.FS(accounts.GetViewsFS()), ".html")
	engine.Reload(app.cfg.Server.Debug)
	engine.AddFuncMap(accounts.TemplateHelpers())

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			StrictRouting:     false,
			PassLocalsToViews: true,
			Views:             engine,
		}))
	})

	srv.Router().Use(mflash.New(mflash.ConfigDefault))

	opts := []accounts.AccountControllerOption{
		accounts.WithControllerDependencies(app.deps),
		accounts.WithControllerLogger(app.logger.With("component", "http")),
		accounts.WithControllerDebug(app.cfg.Server.Debug),
		accounts.WithControllerIdentityProvider(
			accounts.NewAccountProvider(app.repo.Accounts()).WithLogger(app.logger.With("component", "identity")),
		),
	}

	if rl := app.cfg.RateLimit; rl.Enabled {
		opts = append(opts, accounts.WithFormMiddleware(ratelimit.New(ratelimit.Config{
			Every: time.Duration(rl.EverySeconds) * time.Second,
			Burst: rl.Burst,
		})))
	}

	accounts.RegisterAccountRoutes(srv.Router(), opts...)

	return srv
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
