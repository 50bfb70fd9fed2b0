// Package config loads and resolves the novelcore CLI's on-disk
// configuration: per-site credentials/limits and default downloader
// tunables. The core pipeline package never imports this package — per
// spec, config loading is a caller concern; only the reference cmd/novelcore
// binary uses it.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-novel/novelcore/internal/pipeline"
)

// Manager loads configuration once at startup. Unlike the teacher's
// Manager, it does not hot-reload: a one-shot download CLI has no use for
// fsnotify-driven config changes mid-run.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("sites", defaults.Sites)
	viper.SetDefault("downloader", defaults.Downloader)

	// Environment variables with NOVELCORE_ prefix.
	viper.SetEnvPrefix("NOVELCORE")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.novelcore")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToPipelineConfig builds a pipeline.Config for the named site from its
// site entry and the Downloader section, substituting built-in defaults for
// zero-valued numeric and duration tunables. Credentials are not part of
// the result; Credentials resolves them.
func (c *Config) ToPipelineConfig(site string) (pipeline.Config, error) {
	sc, ok := c.Site(site)
	if !ok {
		return pipeline.Config{}, fmt.Errorf("config: unknown site %q", site)
	}

	d := c.Downloader
	return pipeline.Config{
		Site:             site,
		RequestInterval:  orDuration(d.RequestInterval, 2*time.Second),
		RetryTimes:       orInt(d.RetryTimes, 3),
		BackoffFactor:    orDuration(d.BackoffFactor, time.Second),
		DownloadWorkers:  orInt(d.DownloadWorkers, 4),
		ParserWorkers:    orInt(d.ParserWorkers, 4),
		SkipExisting:     d.SkipExisting,
		LoginRequired:    sc.LoginRequired,
		SaveHTML:         d.SaveHTML,
		StorageBatchSize: orInt(d.StorageBatchSize, 1),
		MaxRPS:           sc.MaxRPS,
		MaxConnections:   sc.MaxConnections,
	}, nil
}

// Credentials resolves a site's configured username/password, expanding
// any ${ENV_VAR} references.
func (c *Config) Credentials(site string) (username, password string) {
	sc, ok := c.Site(site)
	if !ok {
		return "", ""
	}
	return ResolveEnvVars(sc.Username), ResolveEnvVars(sc.Password)
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# novelcore configuration
# Credentials use ${ENV_VAR} syntax to reference environment variables.
# Set these in your shell: export YAMIBO_USERNAME=... YAMIBO_PASSWORD=...

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
