package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultPollInterval = 2 * time.Second
	DefaultSyncInterval = 5 * time.Minute
	DefaultHealthPort   = 8080
)

// Config is the validated runtime configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	// AccountURL is the base URL of the cloud account API.
	AccountURL string
	// AccountUsername identifies the account for login.
	AccountUsername string
	// AccountTimeout bounds individual API calls.
	AccountTimeout time.Duration

	// ConfigFile is the path of the managed ssh_config.
	ConfigFile string

	// Remote, when non-nil, points the managed file at another machine.
	Remote *RemoteConfig

	PollInterval time.Duration
	SyncInterval time.Duration
	HealthPort   int

	DockerEnabled bool
	DockerHost    string
}

// RemoteConfig holds the SFTP target for a remotely managed config file.
type RemoteConfig struct {
	Host     string
	Port     int
	User     string
	KeyFile  string
	Password string
	Timeout  time.Duration
}

// DefaultConfigFile returns the conventional per-user SSH config path.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ssh/config"
	}
	return filepath.Join(home, ".ssh", "config")
}

// DefaultFilePath returns the conventional location of the sshweaver
// configuration file.
func DefaultFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sshweaver.yaml"
	}
	return filepath.Join(home, ".config", "sshweaver", "config.yaml")
}

// Load builds the runtime configuration: defaults, then the YAML file at
// path (skipped silently when absent), then SSHWEAVER_* environment
// overrides. Validation collects all problems and fails fast.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		ConfigFile:   DefaultConfigFile(),
		PollInterval: DefaultPollInterval,
		SyncInterval: DefaultSyncInterval,
		HealthPort:   DefaultHealthPort,
	}

	var errs []string

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			fileCfg, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			applyFile(cfg, fileCfg, &errs)
		}
	}

	applyEnv(cfg, &errs)

	if cfg.AccountURL == "" {
		errs = append(errs, "account url is required (account.url or SSHWEAVER_ACCOUNT_URL)")
	}
	if cfg.AccountUsername == "" {
		errs = append(errs, "account username is required (account.username or SSHWEAVER_ACCOUNT_USERNAME)")
	}
	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		errs = append(errs, "health port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func applyFile(cfg *Config, f *FileConfig, errs *[]string) {
	if f.Logging != nil {
		if f.Logging.Level != "" {
			cfg.LogLevel = f.Logging.Level
		}
		if f.Logging.Format != "" {
			cfg.LogFormat = f.Logging.Format
		}
	}
	if f.Account != nil {
		if f.Account.URL != "" {
			cfg.AccountURL = f.Account.URL
		}
		if f.Account.Username != "" {
			cfg.AccountUsername = f.Account.Username
		}
		if f.Account.Timeout != "" {
			cfg.AccountTimeout = parseDuration(f.Account.Timeout, "account.timeout", errs)
		}
	}
	if f.ConfigFile != "" {
		cfg.ConfigFile = f.ConfigFile
	}
	if f.Remote != nil && f.Remote.Host != "" {
		cfg.Remote = &RemoteConfig{
			Host:     f.Remote.Host,
			Port:     f.Remote.Port,
			User:     f.Remote.User,
			KeyFile:  f.Remote.KeyFile,
			Password: f.Remote.Password,
		}
		if f.Remote.Timeout != "" {
			cfg.Remote.Timeout = parseDuration(f.Remote.Timeout, "remote.timeout", errs)
		}
	}
	if f.Watch != nil {
		if f.Watch.PollInterval != "" {
			cfg.PollInterval = parseDuration(f.Watch.PollInterval, "watch.poll_interval", errs)
		}
		if f.Watch.SyncInterval != "" {
			cfg.SyncInterval = parseDuration(f.Watch.SyncInterval, "watch.sync_interval", errs)
		}
		if f.Watch.HealthPort != 0 {
			cfg.HealthPort = f.Watch.HealthPort
		}
	}
	if f.Docker != nil {
		if f.Docker.Enabled != nil {
			cfg.DockerEnabled = *f.Docker.Enabled
		}
		if f.Docker.Host != "" {
			cfg.DockerHost = f.Docker.Host
		}
	}
}

func applyEnv(cfg *Config, errs *[]string) {
	if v := getEnv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getEnv("ACCOUNT_URL"); v != "" {
		cfg.AccountURL = v
	}
	if v := getEnv("ACCOUNT_USERNAME"); v != "" {
		cfg.AccountUsername = v
	}
	if v := getEnv("CONFIG_FILE"); v != "" {
		cfg.ConfigFile = v
	}
	if v := getEnv("DOCKER_ENABLED"); v != "" {
		cfg.DockerEnabled = parseBool(v, cfg.DockerEnabled)
	}
	if v := getEnv("DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}
	if v := getEnv("HEALTH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, "SSHWEAVER_HEALTH_PORT: "+err.Error())
		} else {
			cfg.HealthPort = port
		}
	}
	if v := getEnv("POLL_INTERVAL"); v != "" {
		cfg.PollInterval = parseDuration(v, "SSHWEAVER_POLL_INTERVAL", errs)
	}
	if v := getEnv("SYNC_INTERVAL"); v != "" {
		cfg.SyncInterval = parseDuration(v, "SSHWEAVER_SYNC_INTERVAL", errs)
	}
	if v := getEnvOrFile("REMOTE_PASSWORD"); v != "" && cfg.Remote != nil {
		cfg.Remote.Password = v
	}
}

// AccountPassword reads the account password from the environment,
// supporting the _FILE secret pattern. It is intentionally never stored in
// the configuration file; interactive commands prompt when it is empty.
func AccountPassword() string {
	return getEnvOrFile("ACCOUNT_PASSWORD")
}

func parseDuration(s, field string, errs *[]string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		*errs = append(*errs, field+": "+err.Error())
		return 0
	}
	return d
}
