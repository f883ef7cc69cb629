// Package cli wires the flowbench commands.
package cli

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "flowbench",
	Short:   "Benchmark a workflow-orchestration engine with controlled, ramping load",
	Version: version,
	Long: `Flowbench submits synthetic workflow executions against a workflow
engine at a precisely controlled, ramping rate, tracks their completion
concurrently, and reduces latencies into percentile statistics that feed
pass/fail thresholds and a Prometheus scrape endpoint.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func configureLogging(cmd *cobra.Command) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	RootCmd.AddCommand(benchCmd)
}
