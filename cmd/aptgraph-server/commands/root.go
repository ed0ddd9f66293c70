package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// NewRoot builds the aptgraph-server root command.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "aptgraph-server",
		Short: "APT-candidate analysis server",
		Long:  "aptgraph-server analyzes proxy logs for candidate APT domains and exposes the result over MCP.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "aptgraph.yaml", "config file path")

	root.AddCommand(
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}
