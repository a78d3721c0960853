// Package cli implements the apimon command line client.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hamed0406/apimonitor/internal/apiclient"
)

type app struct {
	apiURL string
	apiKey string
	client *apiclient.Client
}

// NewRootCmd builds the apimon command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "apimon",
		Short: "Manage and inspect monitored HTTP endpoints",
		Long: `apimon talks to a running apimonitor API.

Add endpoints to watch, pause or resume them, run a check on demand and
read uptime, latency and incident figures.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.client = apiclient.New(a.apiURL, a.apiKey)
		},
		SilenceUsage: true,
	}

	defaultURL := os.Getenv("APIMON_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api", defaultURL, "apimonitor API URL")
	root.PersistentFlags().StringVar(&a.apiKey, "key", os.Getenv("APIMON_KEY"), "API key (admin key for changes)")

	root.AddCommand(
		a.targetsCmd(),
		a.statsCmd(),
		a.reportCmd(),
	)
	return root
}
