// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the harness configuration
type Config struct {
	// Service selection and session settings
	Service ServiceConfig `mapstructure:"service"`

	// Display discovery settings
	Discovery DiscoveryConfig `mapstructure:"discovery"`

	// Shape of the built-in simulated service
	Simulator SimulatorConfig `mapstructure:"simulator"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServiceConfig selects the composition service instance and session defaults
type ServiceConfig struct {
	Name               string `mapstructure:"name"`                  // Service instance name for the binding
	BufferSlotCount    int    `mapstructure:"buffer_slot_count"`     // Default buffer slot count for created layers
	ClientTargetSlots  int    `mapstructure:"client_target_slots"`   // Slot count for the client target buffer
	MaxFrameIntervalMs int    `mapstructure:"max_frame_interval_ms"` // Upper frame interval bound for config queries
}

// DiscoveryConfig bounds the display discovery loop
type DiscoveryConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms"` // Delay between polls of the hotplug record
	TimeoutMs      int `mapstructure:"timeout_ms"`       // Overall bound; 0 disables the bound
}

// SimulatorConfig shapes the in-process service used by self-check runs
type SimulatorConfig struct {
	DisplayCount      int  `mapstructure:"display_count"` // Built-in displays the simulator reports
	ConfigsPerDisplay int  `mapstructure:"configs_per_display"`
	InterfaceVersion  int  `mapstructure:"interface_version"` // Declared protocol version
	BatchedLifecycle  bool `mapstructure:"batched_lifecycle"` // Declare the layer-lifecycle-batch capability
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Service: ServiceConfig{
			Name:               "default",
			BufferSlotCount:    3,
			ClientTargetSlots:  3,
			MaxFrameIntervalMs: 0,
		},
		Discovery: DiscoveryConfig{
			PollIntervalMs: 5,
			TimeoutMs:      5000,
		},
		Simulator: SimulatorConfig{
			DisplayCount:      1,
			ConfigsPerDisplay: 2,
			InterfaceVersion:  3,
			BatchedLifecycle:  true,
		},
		Logging: LoggingConfig{
			LogLevel: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("composerconf")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/composerconf")
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "composerconf"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("service.name", DefaultConfig.Service.Name)
	viper.SetDefault("service.buffer_slot_count", DefaultConfig.Service.BufferSlotCount)
	viper.SetDefault("service.client_target_slots", DefaultConfig.Service.ClientTargetSlots)
	viper.SetDefault("service.max_frame_interval_ms", DefaultConfig.Service.MaxFrameIntervalMs)

	viper.SetDefault("discovery.poll_interval_ms", DefaultConfig.Discovery.PollIntervalMs)
	viper.SetDefault("discovery.timeout_ms", DefaultConfig.Discovery.TimeoutMs)

	viper.SetDefault("simulator.display_count", DefaultConfig.Simulator.DisplayCount)
	viper.SetDefault("simulator.configs_per_display", DefaultConfig.Simulator.ConfigsPerDisplay)
	viper.SetDefault("simulator.interface_version", DefaultConfig.Simulator.InterfaceVersion)
	viper.SetDefault("simulator.batched_lifecycle", DefaultConfig.Simulator.BatchedLifecycle)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/composerconf/composerconf.toml"
	}
	return filepath.Join(home, ".config", "composerconf", "composerconf.toml")
}
