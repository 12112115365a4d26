package cli

import (
	"log"

	"alforge/app"
	"alforge/routes"

	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if port != "" {
				cfg.Port = port
			}
			ctx := cmd.Context()

			application, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			if _, err := app.BootstrapFirstAdmin(ctx, cfg, application.Repo); err != nil {
				log.Printf("bootstrap: %v", err)
			}
			routes.RegisterRoutes(application.Router, application)

			log.Printf("listening on :%s (store=%s)", cfg.Port, cfg.StoreDriver)
			return application.Router.Run(":" + cfg.Port)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}
