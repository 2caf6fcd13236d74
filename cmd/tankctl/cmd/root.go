package cmd

import (
	"os"
	"time"

	"github.com/shawn/tankwatch/internal/cli/api"
	"github.com/spf13/cobra"
)

var (
	version   string
	commit    string
	buildDate string

	// Global flags
	serverURL    string
	token        string
	outputFormat string
	noColor      bool
)

const requestTimeout = 30 * time.Second

func newRootCmd(client api.Client) *cobra.Command {
	root := &cobra.Command{
		Use:   "tankctl",
		Short: "TankWatch CLI",
		Long: `tankctl manages a tankwatch server.

It registers alert webhooks, edits the fill thresholds used to classify
tanks, and sends inspection batches for dispatch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if hc, ok := client.(*api.HTTPClient); ok {
				hc.SetTarget(serverURL, token)
			}
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server-url", getEnvOrDefault("TANKCTL_SERVER_URL", "http://localhost:8080"), "tankwatch server URL")
	root.PersistentFlags().StringVar(&token, "token", os.Getenv("TANKCTL_TOKEN"), "Bearer token")
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: json|table")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newWebhookCmd(client))
	root.AddCommand(newThresholdsCmd(client))
	root.AddCommand(newAlertsCmd(client))
	root.AddCommand(newVersionCmd())
	return root
}

func Execute() error {
	return newRootCmd(api.NewHTTPClient("", "")).Execute()
}

func SetVersion(v, c, d string) {
	version = v
	commit = c
	buildDate = d
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
