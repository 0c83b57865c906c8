// Package server provides server-related CLI commands.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andrei-cloud/go_protoop/internal/config"
	"github.com/andrei-cloud/go_protoop/internal/plugins"
	"github.com/andrei-cloud/go_protoop/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the harness server",
		Long: `Start the TCP harness. Each request invokes one protocol operation on a
fresh sandboxed connection with every loaded plugin attached. SIGHUP reloads
the plugin directory.`,
		RunE: runServe,
	}

	// Add serve command specific flags that can override config.
	cmd.Flags().String("host", "localhost", "Server host")
	cmd.Flags().Int("port", 1500, "Server port")

	return cmd
}

func loadManager(cmd *cobra.Command, cfg *config.Config) (*plugins.Manager, error) {
	pm, err := plugins.NewManager(cmd.Context(), plugins.Config{Memory: cfg.Plugin.Memory})
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin manager: %w", err)
	}

	if err := pm.LoadAll(cfg.Plugin.Path); err != nil {
		_ = pm.Close()
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	for _, info := range pm.List() {
		log.Debug().
			Str("plugin", info.Name).
			Str("version", info.Version).
			Str("runtime", string(info.Runtime)).
			Strs("protoops", info.Protoops).
			Msg("plugin details")
	}

	return pm, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	// Make sure plugin directory exists.
	if err := os.MkdirAll(cfg.Plugin.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create plugin directory: %w", err)
	}

	pm, err := loadManager(cmd, cfg)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg.Address(), pm)
	if err != nil {
		_ = pm.Close()
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	// Reload plugins on SIGHUP.
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(reloadChan)
	go func() {
		for range reloadChan {
			log.Info().Msg("reloading plugins...")

			newPM, err := loadManager(cmd, cfg)
			if err != nil {
				log.Error().Err(err).Msg("failed to reload plugins")
				continue
			}

			srv.SetManager(newPM)
			log.Info().Int("plugins", len(newPM.List())).Msg("plugins reloaded")
		}
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	<-stopChan
	log.Info().Msg("shutting down server...")

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	return nil
}
