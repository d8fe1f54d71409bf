package vaultmonitor

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vaultmonitor",
	Short: "Vault monitor exports the expiration of Vault secrets as Prometheus metrics",
	Long: `Vault monitor reads the renewal and expiration timestamps stored in the metadata of Vault
KV v2 secrets, identity entities and AppRoles, and exposes them as Prometheus metrics`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARNING, ERROR)")
}

// Execute runs the CLI. ctx is cancelled on SIGINT / SIGTERM.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'\n", err)
		os.Exit(1)
	}
}
