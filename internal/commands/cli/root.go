// Package cli provides the CLI command structure for go_protoop.
package cli

import (
	"fmt"

	"github.com/andrei-cloud/go_protoop/internal/config"
	"github.com/andrei-cloud/go_protoop/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfgFile string

// NewRootCommand creates and returns the root command with all subcommands.
func NewRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "go_protoop",
		Short: "Plugin sandbox for a pluginizable QUIC stack",
		Long: `Loads WASM and Lua plugins that replace or observe protocol operations,
runs them in per-connection arenas and exposes them over a TCP test harness.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Initialize configuration before running any command.
			if err := config.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if cfgFile != "" {
				v := config.GetViper()
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read %s: %w", cfgFile, err)
				}
			}
			if err := bindFlags(cmd); err != nil {
				return err
			}
			if err := config.Refresh(); err != nil {
				return err
			}

			cfg := config.Get()
			logging.InitLogger(cfg.Debug(), cfg.Human())

			return nil
		},
	}

	// Add persistent flags that affect all commands.
	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default is $HOME/.go_protoop/config.yaml)")

	// Add global flags that can override config file settings.
	rootCmd.PersistentFlags().
		String("log-level", "info", "logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "logging format (human, json)")
	rootCmd.PersistentFlags().String("plugin-path", "commands", "path to plugin directory")
	rootCmd.PersistentFlags().Uint32("plugin-memory", 0, "default plugin arena size in bytes")

	// Register all commands.
	if err := RegisterCommands(rootCmd); err != nil {
		return nil, fmt.Errorf("failed to register commands: %w", err)
	}

	return rootCmd, nil
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"plugin-path":   "plugin.path",
	"plugin-memory": "plugin.memory",
	"host":          "server.host",
	"port":          "server.port",
}

// bindFlags binds the flags of cmd to the configuration, so explicitly set
// flags override the file and the environment.
func bindFlags(cmd *cobra.Command) error {
	v := config.GetViper()

	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})

	return err
}
