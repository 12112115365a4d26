package cli

import (
	"errors"
	"fmt"
	"strings"

	"alforge/app"

	"github.com/spf13/cobra"
)

func NewBootstrapCommand(rootOpts *RootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first ADMIN invite when no admin exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if email != "" {
				cfg.BootstrapEmail = strings.ToLower(strings.TrimSpace(email))
			}
			if cfg.BootstrapEmail == "" {
				return errors.New("set BOOTSTRAP_EMAIL or --email")
			}

			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			link, err := app.BootstrapFirstAdmin(cmd.Context(), cfg, st.repo)
			if err != nil {
				return err
			}
			if link == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "an admin already exists, nothing to do")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin e-mail (overrides BOOTSTRAP_EMAIL)")
	return cmd
}
