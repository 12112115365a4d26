package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"alforge/access"
	"alforge/services"

	"github.com/spf13/cobra"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <requisitions|equipment>.<csv|xlsx>",
		Short: "Export requisitions or the equipment registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(cmd.Context(), rootOpts.Config)
			if err != nil {
				return err
			}
			defer st.close()

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				bw := bufio.NewWriter(f)
				defer bw.Flush()
				w = bw
			}

			svc := &services.ExportService{Store: st.lending}
			if _, err := svc.Export(cmd.Context(), access.System(), args[0], w); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
