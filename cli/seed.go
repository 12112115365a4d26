package cli

import (
	"fmt"

	"alforge/seed"
	"alforge/services"

	"github.com/spf13/cobra"
)

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Load categories (and optional equipment) from YAML",
		Long: `Load the category taxonomy and an optional starting inventory.

Without a file the built-in taxonomy is loaded. Equipment whose code
already exists is skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			f, err := seed.Load(path)
			if err != nil {
				return err
			}

			st, err := openStores(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer st.close()

			catalog := &services.CatalogService{Categories: st.repo, Settings: st.repo}
			eq := &services.EquipmentService{
				Store: st.lending,
				Codes: &services.CodeGenerator{Codes: st.lending},
				Audit: st.repo,
			}
			res, err := seed.Apply(cmd.Context(), f, catalog, eq)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "categories: %d, equipment created: %d, skipped: %d\n", res.Categories, res.Created, res.Skipped)
			return nil
		},
	}
}
