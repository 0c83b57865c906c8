// Package plugin provides plugin listing commands.
package plugin

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/andrei-cloud/go_protoop/internal/config"
	"github.com/andrei-cloud/go_protoop/internal/plugins"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Long:  `List all plugins of the plugin directory with their metadata and bindings.`,
		RunE:  runListPlugins,
	}
}

func runListPlugins(cmd *cobra.Command, _ []string) error {
	// Disable logging for CLI commands.
	log.Logger = log.Logger.Level(zerolog.Disabled)

	cfg := config.Get()

	pm, err := plugins.NewManager(cmd.Context(), plugins.Config{Memory: cfg.Plugin.Memory})
	if err != nil {
		return fmt.Errorf("failed to create plugin manager: %w", err)
	}
	defer func() {
		_ = pm.Close()
	}()

	if err := pm.LoadAll(cfg.Plugin.Path); err != nil {
		return fmt.Errorf("failed to load plugins: %w", err)
	}

	return writePlugins(cmd, pm)
}

func writePlugins(cmd *cobra.Command, pm *plugins.Manager) error {
	// Create tabwriter for aligned output.
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "Plugin\tVersion\tRuntime\tProtoops\tDescription")
	_, _ = fmt.Fprintln(w, "------\t-------\t-------\t--------\t-----------")

	for _, info := range pm.List() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Name,
			info.Version,
			info.Runtime,
			strings.Join(info.Protoops, ","),
			info.Description)
	}

	return w.Flush()
}
