package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aptgraph/aptgraph/sdk"
)

func newROCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roc <output.csv>",
		Short: "Compute ROC curve points for the session's last apt-search ranking and write them as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := sdk.Dial(cmd.Context(), "stdio", serverCmd, serverArgs)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.ExportROC(cmd.Context(), sessionID, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d points to %s\n", len(out.Points), out.Path)
			return nil
		},
	}
}
