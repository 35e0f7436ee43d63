package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Obtain a bearer token",
	Long: `Exchange credentials for a bearer token.

Export the printed token as PREDICTGATE_TOKEN (or pass --token) for the
other client commands.`,
	Args: cobra.ExactArgs(2),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	token, err := api.Login(context.Background(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	fmt.Println(token)
	return nil
}
