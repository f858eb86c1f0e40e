package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/entrypoint"
)

// CreateAdminCommand creates a confirmed admin account directly in the
// database. It is how the first administrator gets in.
type CreateAdminCommand struct {
	cfg          *config.Config
	env          *Env
	Name         string
	Email        string
	DatabasePath string
}

func NewCreateAdminCommand(cfg *config.Config, env *Env) *CreateAdminCommand {
	return &CreateAdminCommand{cfg: cfg, env: env}
}

func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	fs.StringVar(&cmd.Name, "name", "Administrator", "Display name")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.DatabasePath, "db", cmd.cfg.Database.Path, "Path to the database file")
	fs.Usage = usage(fs, "create-admin -email EMAIL [options]", "Create an administrator account in the local database.")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Email == "" {
		fs.Usage()
		return fmt.Errorf("email is required")
	}
	return nil
}

func (cmd *CreateAdminCommand) Run(ctx context.Context) error {
	password, confirm, err := cmd.env.newPassword()
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	cfg := *cmd.cfg
	cfg.Database.Path = cmd.DatabasePath
	cfg.Tasks.Enabled = false

	services, err := entrypoint.Open(&cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	user, err := services.Backend.CreateAdmin(ctx, cmd.Name, cmd.Email, password)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	cmd.env.printf("Created admin %s <%s> (%s)\n", user.Name, cmd.Email, user.ID)
	return nil
}
