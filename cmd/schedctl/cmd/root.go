package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagServerURL string
	flagUser      string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "schedctl",
	Short: "Workflow scheduler CLI",
	Long: `schedctl is a CLI client for the branch-aware workflow scheduler.

It submits workflow manifests, inspects workflow and job state, cancels
pending jobs, streams live progress events, and shows dashboard metrics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Scheduler API URL (env: SCHEDCTL_SERVER)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Tenant identity sent as X-User-ID (env: SCHEDCTL_USER)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(watchCmd)
}

func initConfig() {
	if flagServerURL == "" {
		flagServerURL = os.Getenv("SCHEDCTL_SERVER")
	}
	if flagServerURL == "" {
		flagServerURL = "http://localhost:8000"
	}
	if flagUser == "" {
		flagUser = os.Getenv("SCHEDCTL_USER")
	}
}
