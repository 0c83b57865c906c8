package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// dirName is the per-user configuration directory under $HOME.
const dirName = ".go_protoop"

var (
	configData Config
	v          *viper.Viper
)

// Config holds all configuration settings.
type Config struct {
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Plugin configuration
	Plugin struct {
		Path string
		// Memory is the default arena capacity in bytes.
		Memory uint32
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
}

// Address returns the host:port the harness listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Log.Level, "debug")
}

// Human reports whether logs are written for a terminal.
func (c *Config) Human() bool {
	return strings.EqualFold(c.Log.Format, "human")
}

// Initialize sets up the configuration system.
func Initialize() error {
	v = viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/" + dirName)
	v.AddConfigPath("/etc/go_protoop/")

	setDefaults()

	// Environment variables
	v.SetEnvPrefix("GOPROTOOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := ensureConfig(); err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		// It's okay if we can't find a config file, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return load()
}

func load() error {
	if err := v.Unmarshal(&configData); err != nil {
		return fmt.Errorf("unable to decode into config struct: %w", err)
	}

	return nil
}

// setDefaults sets default values for all configuration options.
func setDefaults() {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1500)

	// Plugin defaults
	v.SetDefault("plugin.path", "commands")
	v.SetDefault("plugin.memory", 1<<20)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

const defaultConfig = `# go_protoop configuration file
server:
  host: localhost
  port: 1500

plugin:
  path: commands
  memory: 1048576

log:
  level: info
  format: human
`

// ensureConfig creates a default config file if none exists.
func ensureConfig() error {
	home := os.Getenv("HOME")
	if home == "" {
		return nil
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o644); err != nil {
			return err
		}
	}

	return nil
}

// Get returns the current configuration.
func Get() *Config {
	return &configData
}

// GetViper returns the viper instance.
func GetViper() *viper.Viper {
	return v
}

// Refresh re-reads the settings into the struct returned by Get, picking
// up flags bound after Initialize.
func Refresh() error {
	if v == nil {
		return errors.New("config not initialized")
	}

	return load()
}
