package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "IMGSCRAPER_"

// Config holds all configuration options for the image scraper
type Config struct {
	// Search page settings
	Search SearchConfig `yaml:"search" json:"search"`

	// Proxy listing and validation
	Proxy ProxyConfig `yaml:"proxy" json:"proxy"`

	// Download worker settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SearchConfig controls the scrape loop
type SearchConfig struct {
	Keys           []string      `yaml:"keys" json:"keys"`
	NumImages      int           `yaml:"num_images" json:"num_images"`
	URL            string        `yaml:"url" json:"url"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	RequestDelay   time.Duration `yaml:"request_delay" json:"request_delay"`
	Concurrency    int           `yaml:"concurrency" json:"concurrency"`
}

// ProxyConfig controls the upstream proxy listing and health probes
type ProxyConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	APIKey        string        `yaml:"api_key" json:"api_key"`
	APIBaseURL    string        `yaml:"api_base_url" json:"api_base_url"`
	ProbeURL      string        `yaml:"probe_url" json:"probe_url"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	MaxCandidates int           `yaml:"max_candidates" json:"max_candidates"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Workers         int           `yaml:"workers" json:"workers"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	KeepFilenames   bool          `yaml:"keep_filenames" json:"keep_filenames"`
	MaxImageBytes   int64         `yaml:"max_image_bytes" json:"max_image_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"` // 0 waits forever
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Format  string `yaml:"format" json:"format"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// MetricsConfig holds the optional Prometheus listener address
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			NumImages:      5,
			URL:            "https://www.google.com/search",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestTimeout: 5 * time.Second,
			RequestDelay:   time.Second,
			Concurrency:    30,
		},
		Proxy: ProxyConfig{
			Enabled:       true,
			APIBaseURL:    "https://proxy.webshare.io/api/v2/",
			ProbeURL:      "https://www.google.com",
			ProbeTimeout:  5 * time.Second,
			MaxCandidates: 10,
		},
		Download: DownloadConfig{
			Workers:       1,
			Timeout:       5 * time.Second,
			KeepFilenames: false,
			MaxImageBytes: 20 << 20,
		},
		Output: OutputConfig{
			BaseDirectory: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from IMGSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if key := os.Getenv(envPrefix + "API_KEY"); key != "" {
		c.Proxy.APIKey = key
	}
	if base := os.Getenv(envPrefix + "API_BASE_URL"); base != "" {
		c.Proxy.APIBaseURL = base
	}
	if v := os.Getenv(envPrefix + "USE_PROXIES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sUSE_PROXIES: %w", envPrefix, err))
		} else {
			c.Proxy.Enabled = b
		}
	}
	if v := os.Getenv(envPrefix + "NUM_IMAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sNUM_IMAGES: %w", envPrefix, err))
		} else {
			c.Search.NumImages = n
		}
	}
	if v := os.Getenv(envPrefix + "CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENCY: %w", envPrefix, err))
		} else {
			c.Search.Concurrency = n
		}
	}
	if v := os.Getenv(envPrefix + "KEEP_FILENAMES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sKEEP_FILENAMES: %w", envPrefix, err))
		} else {
			c.Download.KeepFilenames = b
		}
	}
	if dir := os.Getenv(envPrefix + "OUTPUT_DIR"); dir != "" {
		c.Output.BaseDirectory = dir
	}
	if level := os.Getenv(envPrefix + "LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv(envPrefix + "METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"imgscraper.yaml",
		"imgscraper.yml",
		".imgscraper.yaml",
		".imgscraper.yml",
		filepath.Join(home, ".config", "imgscraper", "config.yaml"),
		filepath.Join(home, ".config", "imgscraper", "config.yml"),
		filepath.Join(home, ".imgscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Search.NumImages <= 0 {
		errs = append(errs, errors.New("number of images must be positive"))
	}
	if c.Search.Concurrency <= 0 {
		errs = append(errs, errors.New("search concurrency must be positive"))
	}
	if c.Search.RequestTimeout <= 0 {
		errs = append(errs, errors.New("search request timeout must be positive"))
	}
	if c.Search.RequestDelay < 0 {
		errs = append(errs, errors.New("search request delay cannot be negative"))
	}
	if err := validateURL(c.Search.URL); err != nil {
		errs = append(errs, fmt.Errorf("search url: %w", err))
	}

	if c.Proxy.Enabled {
		if err := validateURL(c.Proxy.APIBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("proxy api base url: %w", err))
		}
		if err := validateURL(c.Proxy.ProbeURL); err != nil {
			errs = append(errs, fmt.Errorf("proxy probe url: %w", err))
		}
		if c.Proxy.ProbeTimeout <= 0 {
			errs = append(errs, errors.New("proxy probe timeout must be positive"))
		}
		if c.Proxy.MaxCandidates <= 0 || c.Proxy.MaxCandidates > 25 {
			errs = append(errs, errors.New("max proxy candidates must be between 1 and 25"))
		}
	}

	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("download workers must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("max image bytes must be positive"))
	}
	if c.Download.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("shutdown timeout cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "console" && f != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file can hold the proxy API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if keys, ok := flags["search-keys"].([]string); ok && len(keys) > 0 {
		c.Search.Keys = keys
	}
	if n, ok := flags["num-images"].(int); ok {
		c.Search.NumImages = n
	}
	if n, ok := flags["concurrency"].(int); ok {
		c.Search.Concurrency = n
	}
	if b, ok := flags["use-proxies"].(bool); ok {
		c.Proxy.Enabled = b
	}
	if key, ok := flags["api-key"].(string); ok && key != "" {
		c.Proxy.APIKey = key
	}
	if b, ok := flags["keep-filenames"].(bool); ok {
		c.Download.KeepFilenames = b
	}
	if n, ok := flags["workers"].(int); ok {
		c.Download.Workers = n
	}
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Output.BaseDirectory = dir
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// UniqueKeys removes duplicate search keys, keeping first-seen order
func UniqueKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
