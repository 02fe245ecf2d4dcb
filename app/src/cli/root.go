package cli

import (
	"github.com/spf13/cobra"

	_ "telemetry-service/app/src/infra/utils/autoload"
)

var rootCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Telemetry fan-out fetch service",
	Long: `telemetry fetches samples from many sources concurrently and
aggregates them into ordered batch reports.

Run "telemetry serve" to start the HTTP and gRPC servers, or
"telemetry fetch" to run a single fan-out fetch from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command and returns its error, if any.
func Execute() error {
	return rootCmd.Execute()
}
