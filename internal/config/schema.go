package config

import "time"

// Config holds the novelcore CLI's on-disk configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Sites      map[string]SiteConfig `mapstructure:"sites" yaml:"sites"`
	Downloader DownloaderDefaults    `mapstructure:"downloader" yaml:"downloader"`
}

// SiteConfig holds the per-site settings the CLI needs to construct a
// Fetcher/Parser pair and drive a download: credentials, rate limit, and
// title/line blacklist words passed to the reference parsers.
type SiteConfig struct {
	LoginRequired  bool     `mapstructure:"login_required" yaml:"login_required"`
	Username       string   `mapstructure:"username" yaml:"username"`
	Password       string   `mapstructure:"password" yaml:"password"`
	MaxRPS         float64  `mapstructure:"max_rps" yaml:"max_rps"`
	MaxConnections int      `mapstructure:"max_connections" yaml:"max_connections"`
	BlacklistWords []string `mapstructure:"blacklist_words" yaml:"blacklist_words"`
}

// DownloaderDefaults mirrors pipeline.Config's tunables so they can be set
// once in the config file instead of on every invocation.
type DownloaderDefaults struct {
	RequestInterval  time.Duration `mapstructure:"request_interval" yaml:"request_interval"`
	RetryTimes       int           `mapstructure:"retry_times" yaml:"retry_times"`
	BackoffFactor    time.Duration `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	DownloadWorkers  int           `mapstructure:"download_workers" yaml:"download_workers"`
	ParserWorkers    int           `mapstructure:"parser_workers" yaml:"parser_workers"`
	SkipExisting     bool          `mapstructure:"skip_existing" yaml:"skip_existing"`
	SaveHTML         bool          `mapstructure:"save_html" yaml:"save_html"`
	StorageBatchSize int           `mapstructure:"storage_batch_size" yaml:"storage_batch_size"`
}

// DefaultConfig returns configuration with sensible defaults. API keys and
// site credentials are left for the user's config.yaml or environment.
func DefaultConfig() *Config {
	return &Config{
		Sites: map[string]SiteConfig{
			"biquge": {
				MaxRPS:         0.5,
				MaxConnections: 4,
			},
			"yamibo": {
				LoginRequired:  true,
				Username:       "${YAMIBO_USERNAME}",
				Password:       "${YAMIBO_PASSWORD}",
				MaxRPS:         0.5,
				MaxConnections: 2,
			},
		},
		Downloader: DownloaderDefaults{
			RequestInterval:  2 * time.Second,
			RetryTimes:       3,
			BackoffFactor:    time.Second,
			DownloadWorkers:  4,
			ParserWorkers:    4,
			SkipExisting:     true,
			SaveHTML:         false,
			StorageBatchSize: 1,
		},
	}
}

// Site returns the named site's config and whether it was found.
func (c *Config) Site(name string) (SiteConfig, bool) {
	sc, ok := c.Sites[name]
	return sc, ok
}
