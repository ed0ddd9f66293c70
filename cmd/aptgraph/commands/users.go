package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aptgraph/aptgraph/sdk"
)

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List every known user and subnet identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := sdk.Dial(cmd.Context(), "stdio", serverCmd, serverArgs)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.GetUsers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("subnets:")
			for _, s := range out.Subnets {
				fmt.Printf("  %s\n", s)
			}
			fmt.Println("users:")
			for _, u := range out.Users {
				fmt.Printf("  %s\n", u)
			}
			return nil
		},
	}
}
