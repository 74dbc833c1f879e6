// Package config handles loading and validation of sshweaver configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the YAML configuration file structure.
// This mirrors the runtime Config but uses YAML-friendly types.
type FileConfig struct {
	// Logging configuration
	Logging *FileLoggingConfig `yaml:"logging,omitempty"`

	// Cloud account settings
	Account *FileAccountConfig `yaml:"account,omitempty"`

	// Path of the managed ssh_config file
	ConfigFile string `yaml:"config_file,omitempty"`

	// Optional remote machine holding the managed file (SFTP)
	Remote *FileRemoteConfig `yaml:"remote,omitempty"`

	// Watch mode settings
	Watch *FileWatchConfig `yaml:"watch,omitempty"`

	// Docker discovery settings
	Docker *FileDockerConfig `yaml:"docker,omitempty"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // json, text
}

// FileAccountConfig holds cloud account API settings.
type FileAccountConfig struct {
	URL      string `yaml:"url,omitempty"`
	Username string `yaml:"username,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"` // Go duration format
}

// FileRemoteConfig holds SFTP settings for a remotely managed config file.
type FileRemoteConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	KeyFile  string `yaml:"key_file,omitempty"`
	Password string `yaml:"password,omitempty"`
	Timeout  string `yaml:"timeout,omitempty"`
}

// FileWatchConfig holds watch mode settings.
type FileWatchConfig struct {
	PollInterval string `yaml:"poll_interval,omitempty"` // Go duration format
	SyncInterval string `yaml:"sync_interval,omitempty"` // periodic safety-net sync
	HealthPort   int    `yaml:"health_port,omitempty"`
}

// FileDockerConfig holds Docker discovery settings.
type FileDockerConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // pointer to distinguish unset from false
	Host    string `yaml:"host,omitempty"`    // unix:///var/run/docker.sock or tcp://...
}

// LoadFile reads and parses the YAML configuration file at path.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}
