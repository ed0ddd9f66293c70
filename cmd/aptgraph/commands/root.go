package commands

import (
	"github.com/spf13/cobra"
)

var (
	serverCmd  string
	serverArgs []string
	sessionID  string
)

// NewRoot builds the aptgraph query CLI's root command. Every
// subcommand dials an aptgraph-server over stdio MCP, runs one tool
// call, and exits; the server subprocess dies with it.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "aptgraph",
		Short: "Query an aptgraph analysis server",
		Long:  "aptgraph drives an aptgraph-server subprocess over MCP to run APT-candidate analysis queries.",
	}

	root.PersistentFlags().StringVar(&serverCmd, "server-cmd", "aptgraph-server", "server binary to spawn")
	root.PersistentFlags().StringSliceVar(&serverArgs, "server-args", []string{"serve"}, "arguments passed to the server binary")
	root.PersistentFlags().StringVar(&sessionID, "session", "default", "session id to scope the stage cache and last result")

	root.AddCommand(
		newAnalyzeCmd(),
		newUsersCmd(),
		newRequestsCmd(),
		newROCCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)

	return root
}
