package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wt",
		Short:        "WatchTower: SMS assistant for security guards",
		Long:         "WatchTower walks guards through troubleshooting procedures over SMS and hands them to a supervisor when they get stuck.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSOPCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newReportCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wt %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// addConfigFlag registers --config and returns a func reporting whether it
// was set explicitly.
func addConfigFlag(cmd *cobra.Command, path *string) func() bool {
	cmd.Flags().StringVarP(path, "config", "c", defaultConfigPath, "path to WatchTower config file")
	return func() bool { return cmd.Flags().Changed("config") }
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
