package vaultmonitor

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MatteoMori/vaultmonitor/pkg/expiration"
	"github.com/MatteoMori/vaultmonitor/pkg/shared"
	"github.com/MatteoMori/vaultmonitor/pkg/vault"
)

type setExpirationOptions struct {
	duration  expiration.Duration
	fields    shared.FieldNames
	address   string
	namespace string
	token     string
}

var setOpts setExpirationOptions

var setExpiration = &cobra.Command{
	Use:   "set-expiration <mount_point> <secret_path>",
	Short: "Stamp a KV v2 secret with its renewal and expiration timestamps",
	Long: `Stores "now" as the last renewal and "now + duration" as the expiration in the custom metadata
of a KV v2 secret, e.g. vaultmonitor set-expiration secret some/secret --weeks 12`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel, _ := cmd.Flags().GetString("log-level")
		shared.SetupLogging(logLevel)

		client, err := vault.NewUserClient(setOpts.address, setOpts.namespace, setOpts.token)
		if err != nil {
			return err
		}

		record := expiration.FromDuration(setOpts.duration, setOpts.fields.Resolve(shared.FieldNames{}))
		if err := expiration.Set(cmd.Context(), client.Logical(), args[0], args[1], record); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s expires at %s\n", args[0], args[1], expiration.FormatTimestamp(record.Expires))
		return nil
	},
}

func init() {
	flags := setExpiration.Flags()

	flags.IntVar(&setOpts.duration.Weeks, "weeks", 0, "number of weeks before expiration")
	flags.IntVar(&setOpts.duration.Days, "days", 0, "number of days before expiration")
	flags.IntVar(&setOpts.duration.Hours, "hours", 0, "number of hours before expiration")
	flags.IntVar(&setOpts.duration.Minutes, "minutes", 0, "number of minutes before expiration")
	flags.IntVar(&setOpts.duration.Seconds, "seconds", 0, "number of seconds before expiration")

	flags.StringVar(&setOpts.fields.LastRenewal, "last-renewed-field", shared.DefaultLastRenewalField, "metadata key of the last renewal timestamp")
	flags.StringVar(&setOpts.fields.Expiration, "expiration-field", shared.DefaultExpirationField, "metadata key of the expiration timestamp")

	flags.StringVar(&setOpts.address, "address", "", "vault address (defaults to $VAULT_ADDR)")
	flags.StringVar(&setOpts.namespace, "namespace", "", "vault namespace (defaults to $VAULT_NAMESPACE)")
	flags.StringVar(&setOpts.token, "token", "", "vault token (defaults to $VAULT_TOKEN, then ~/.vault-token)")

	rootCmd.AddCommand(setExpiration)
}
