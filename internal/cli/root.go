// Package cli provides the command-line interface for predictgate.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/admitml/predictgate/internal/client"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	// Global flags
	serverURL string
	token     string

	// API client shared by the client commands.
	api *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "predictgate",
	Short: "Admission prediction inference gateway",
	Long: `Predictgate serves admission predictions from a trained scoring model,
synchronously via /predict and asynchronously via batched jobs.

Run the gateway with "predictgate serve"; the remaining commands are a
client for a running gateway.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if token == "" {
			token = os.Getenv("PREDICTGATE_TOKEN")
		}
		api = client.New(serverURL, token)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "gateway base URL (default $PREDICTGATE_SERVER_URL or http://localhost:3000)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (default $PREDICTGATE_TOKEN)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
