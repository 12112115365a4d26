// Package cli is the alforge command line: the HTTP server plus the operator jobs that talk to
// the stores directly.
package cli

import (
	"context"
	"fmt"

	"alforge/app"
	"alforge/config"
	"alforge/db"
	"alforge/store"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Config  config.Config

	load func() (config.Config, error)
}

// NewRootCommand creates the root command for the alforge CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(config.Load)
}

func newRootCommand(load func() (config.Config, error)) *cobra.Command {
	opts := &RootOptions{load: load}

	cmd := &cobra.Command{
		Use:   "alforge",
		Short: "Alforge - equipment lending",
		Long:  "Inventory, requisitions and passkey accounts for a scout group's equipment store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				config.LoadEnv(opts.EnvFile)
			} else {
				config.LoadEnv()
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load (default .env)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewBootstrapCommand(opts))

	return cmd
}

// stores opens the account repo and the lending store without Redis or WebAuthn.
type stores struct {
	repo    *db.Repo
	lending store.LendingStore
	close   func()
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	conn, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	repo := db.NewRepo(conn)
	lending, closeLending, err := app.OpenLending(ctx, cfg, repo)
	if err != nil {
		closeDB()
		return nil, err
	}
	return &stores{
		repo:    repo,
		lending: lending,
		close: func() {
			closeLending()
			closeDB()
		},
	}, nil
}
