package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your workflows",
	RunE: func(_ *cobra.Command, _ []string) error {
		body, err := NewClient().Do(http.MethodGet, "/api/workflows", nil)
		if err != nil {
			return err
		}
		return printJSON(body)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <workflow-id>",
	Short: "Show one workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		body, err := NewClient().Do(http.MethodGet, "/api/workflows/"+args[0], nil)
		if err != nil {
			return err
		}
		return printJSON(body)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		body, err := NewClient().Do(http.MethodDelete, "/api/jobs/"+args[0], nil)
		if err != nil {
			return err
		}
		return printJSON(body)
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Fetch a job's results",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		body, err := NewClient().Do(http.MethodGet, "/api/jobs/"+args[0]+"/results", nil)
		if err != nil {
			return err
		}
		return printJSON(body)
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show scheduler dashboard metrics",
	RunE: func(_ *cobra.Command, _ []string) error {
		body, err := NewClient().Do(http.MethodGet, "/api/metrics/dashboard", nil)
		if err != nil {
			return err
		}
		return printJSON(body)
	},
}
