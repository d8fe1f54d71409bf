package vaultmonitor

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MatteoMori/vaultmonitor/pkg/exporter"
	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

var startExporter = &cobra.Command{
	Use:   "start",
	Short: "Start the Vault monitor exporter",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		return exporter.Start(cmd.Context(), config)
	},
}

func init() {
	startExporter.Flags().String("config", "", "config file (default is vault-monitor.yaml in /etc/vault-monitor or the working directory)")
	startExporter.Flags().Int("port", shared.DefaultPort, "port for the Prometheus metrics endpoint")

	// Viper bindings to Flags
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("port", startExporter.Flags().Lookup("port"))
	viper.BindPFlag("config_file", startExporter.Flags().Lookup("config"))

	rootCmd.AddCommand(startExporter)
}

/*
	Vault monitor Config

Precedence, highest first: flags, environment, config file, defaults.
Environment variables are the upper-cased keys prefixed with VAULT_MONITOR_, nested keys joined by "_".
EXAMPLE:
export VAULT_MONITOR_REFRESH_INTERVAL=60 --> overrides refresh_interval from the config file.
*/
func loadConfig(v *viper.Viper) (shared.Config, error) {
	var config shared.Config

	setDefaults(v)

	v.SetEnvPrefix("vault_monitor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("vault-monitor")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/vault-monitor")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	slog.Info("Config file loaded", "file", v.ConfigFileUsed())

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "INFO")
	v.SetDefault("port", shared.DefaultPort)
	v.SetDefault("refresh_interval", shared.DefaultRefreshInterval)
}
