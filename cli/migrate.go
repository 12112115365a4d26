package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand migrates the SQL schema and, with STORE_DRIVER=mongo, creates the
// collection indexes.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer st.close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrated (%s, store=%s)\n", rootOpts.Config.Database.Driver, rootOpts.Config.StoreDriver)
			return nil
		},
	}
}
