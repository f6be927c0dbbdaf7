package main

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var cliActor = accounts.ActorRef{ID: "cli", Type: "system"}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateFlags struct {
	username string
	email    string
	password string
	status   string
	role     string
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account without email activation",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, ok := accounts.ParseStatus(userCreateFlags.status)
		if !ok {
			return fmt.Errorf("unknown status %q", userCreateFlags.status)
		}
		if status == accounts.StatusDeleted {
			return fmt.Errorf("accounts can not be created deleted, use \"user status\" instead")
		}

		app, err := newApp(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		var created *accounts.Account
		err = accounts.NewCreateAccountHandler(app.deps).Execute(cmd.Context(), accounts.CreateAccountMessage{
			Username: userCreateFlags.username,
			Email:    userCreateFlags.email,
			Password: userCreateFlags.password,
			Status:   status,
			Role:     accounts.RoleName(userCreateFlags.role),
			Actor:    cliActor,
			OnResponse: func(a *accounts.Account) {
				created = a
			},
		})
		if err != nil {
			return describeError(err)
		}

		cmd.Printf("created %s (%s) id=%s status=%s role=%s\n",
			created.Username, created.Email, created.ID, created.StatusName(), created.RoleName)
		return nil
	},
}

var userStatusReason string

var userStatusCmd = &cobra.Command{
	Use:   "status <id> <active|inactive|deleted>",
	Short: "Change the status of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id %q", args[0])
		}

		status, ok := accounts.ParseStatus(args[1])
		if !ok {
			return fmt.Errorf("unknown status %q", args[1])
		}

		app, err := newApp(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer app.Close()

		var updated *accounts.Account
		err = accounts.NewChangeStatusHandler(app.deps).Execute(cmd.Context(), accounts.ChangeStatusMessage{
			ID:     id,
			Status: status,
			Reason: userStatusReason,
			Actor:  cliActor,
			OnResponse: func(a *accounts.Account) {
				updated = a
			},
		})
		if err != nil {
			return describeError(err)
		}

		if err := accounts.LoadRoleName(cmd.Context(), app.repo.Roles(), updated); err != nil {
			return err
		}

		role := string(updated.RoleName)
		if role == "" {
			role = "none"
		}
		cmd.Printf("%s is now %s role=%s\n", updated.Username, updated.StatusName(), role)
		return nil
	},
}

// describeError flattens field errors into one readable line
func describeError(err error) error {
	var fieldErrs accounts.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid input: %s", fieldErrs.Error())
	}
	return err
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userStatusCmd)

	f := userCreateCmd.Flags()
	f.StringVar(&userCreateFlags.username, "username", "", "account username")
	f.StringVar(&userCreateFlags.email, "email", "", "account email")
	f.StringVar(&userCreateFlags.password, "password", "", "account password")
	f.StringVar(&userCreateFlags.status, "status", "active", "initial status")
	f.StringVar(&userCreateFlags.role, "role", "", "role, defaults to the configured default role")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")

	userStatusCmd.Flags().StringVar(&userStatusReason, "reason", "", "reason recorded with the change")
}
