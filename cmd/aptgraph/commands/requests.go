package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aptgraph/aptgraph/sdk"
)

func newRequestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests <domain>",
		Short: "Show the recorded requests for a domain from the session's last analyze",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := sdk.Dial(cmd.Context(), "stdio", serverCmd, serverArgs)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.GetRequests(cmd.Context(), sessionID, args[0])
			if err != nil {
				return err
			}
			for _, r := range out.Requests {
				ts := time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339)
				fmt.Printf("%s  %-6s %-40s %3d  in=%-8d out=%-8d %s\n",
					ts, r.Method, r.Target, r.Status, r.BytesIn, r.BytesOut, r.Client)
			}
			return nil
		},
	}
}
