// Package cli provides centralized command registration.
package cli

import (
	"github.com/andrei-cloud/go_protoop/internal/commands/cli/invoke"
	"github.com/andrei-cloud/go_protoop/internal/commands/cli/plugin"
	"github.com/andrei-cloud/go_protoop/internal/commands/cli/server"
	"github.com/spf13/cobra"
)

// RegisterCommands registers all root commands.
func RegisterCommands(root *cobra.Command) error {
	root.AddCommand(server.NewServeCommand())
	root.AddCommand(plugin.NewPluginCommand())
	root.AddCommand(invoke.NewInvokeCommand())
	root.AddCommand(invoke.NewOpsCommand())

	return nil
}
