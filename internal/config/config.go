// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/viper"
)

// Fallback values applied when a setting is out of range.
const (
	FallbackDateFormat = "%Y-%m-%d %H.%M.%S"
	FallbackMaxPages   = 99999
	FallbackTimeout    = 10
)

var storageFormats = []string{"csv", "xlsx", "sql", "postgres"}

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Root          string `mapstructure:"root"`
	Folder        string `mapstructure:"folder"`
	DateFormat    string `mapstructure:"date_format"`
	StorageFormat string `mapstructure:"storage_format"`
	Cookie        string `mapstructure:"cookie"`
	CookieFile    string `mapstructure:"cookie_file"`
	MaxRetry      int    `mapstructure:"max_retry"`
	MaxPages      int    `mapstructure:"max_pages"`
	// Timeout is the per-request timeout in seconds.
	Timeout int `mapstructure:"timeout"`

	HTTP       HTTPConfig       `mapstructure:"http"`
	Signer     SignerConfig     `mapstructure:"signer"`
	Credential CredentialConfig `mapstructure:"credential"`
	DB         DBConfig         `mapstructure:"db"`
	Export     ExportConfig     `mapstructure:"export"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// HTTPConfig configures the fetch engine.
type HTTPConfig struct {
	Transport         string  `mapstructure:"transport"`
	UserAgent         string  `mapstructure:"user_agent"`
	UACode            string  `mapstructure:"ua_code"`
	Proxy             string  `mapstructure:"proxy"`
	PacingMinMs       int     `mapstructure:"pacing_min_ms"`
	PacingMaxMs       int     `mapstructure:"pacing_max_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// SignerConfig selects the request signer.
type SignerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	// Static is a fixed signature, mostly useful against test servers.
	Static string `mapstructure:"static"`
}

// CredentialConfig controls the background cookie refresh.
type CredentialConfig struct {
	RefreshMinutes int `mapstructure:"refresh_minutes"`
}

// DBConfig controls access to the Postgres backend.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ExportConfig holds the optional post-run export targets.
type ExportConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ProjectID   string `mapstructure:"project_id"`
	TopicName   string `mapstructure:"topic_name"`
	DeleteLocal bool   `mapstructure:"delete_local"`
}

// ServerConfig controls the service mode listener.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	APIKey     string `mapstructure:"api_key"`
	QueueDepth int    `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// Load builds a Config from disk/environment. Out-of-range values fall back
// to safe defaults; each fallback is described in the returned notices.
func Load(path string) (Config, []string, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("settings")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("unmarshal config: %w", err)
	}

	notices := cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, notices, err
	}
	return cfg, notices, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", "")
	v.SetDefault("folder", "Data")
	v.SetDefault("date_format", "%Y-%m-%d")
	v.SetDefault("storage_format", "xlsx")
	v.SetDefault("cookie", "")
	v.SetDefault("cookie_file", "")
	v.SetDefault("max_retry", 5)
	v.SetDefault("max_pages", 10)
	v.SetDefault("timeout", 10)
	v.SetDefault("http.transport", "resty")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.ua_code", "")
	v.SetDefault("http.proxy", "")
	v.SetDefault("http.pacing_min_ms", 1500)
	v.SetDefault("http.pacing_max_ms", 3500)
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("signer.endpoint", "")
	v.SetDefault("signer.static", "")
	v.SetDefault("credential.refresh_minutes", 15)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.prefix", "harvest")
	v.SetDefault("export.project_id", "")
	v.SetDefault("export.topic_name", "")
	v.SetDefault("export.delete_local", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.queue_depth", 16)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}

// Normalize replaces out-of-range values with fallbacks.
func (c *Config) Normalize() []string {
	var notices []string
	note := func(format string, args ...any) {
		notices = append(notices, fmt.Sprintf(format, args...))
	}
	if c.MaxRetry < 0 {
		note("max_retry %d is negative, using 0", c.MaxRetry)
		c.MaxRetry = 0
	}
	if c.MaxPages <= 0 {
		note("max_pages %d disables the page limit", c.MaxPages)
		c.MaxPages = FallbackMaxPages
	}
	if c.Timeout <= 0 {
		note("timeout %d is not positive, using %d", c.Timeout, FallbackTimeout)
		c.Timeout = FallbackTimeout
	}
	if c.StorageFormat != "" && !slices.Contains(storageFormats, c.StorageFormat) {
		note("storage_format %q is unknown, records will not be saved", c.StorageFormat)
		c.StorageFormat = ""
	}
	if _, err := strftime.New(c.DateFormat); err != nil || c.DateFormat == "" {
		note("date_format %q is invalid, using %q", c.DateFormat, FallbackDateFormat)
		c.DateFormat = FallbackDateFormat
	}
	if root, msg := resolveRoot(c.Root); msg != "" {
		note("%s", msg)
		c.Root = root
	} else {
		c.Root = root
	}
	if c.Folder == "" {
		c.Folder = "Data"
	}
	return notices
}

// resolveRoot returns a usable root directory. A missing root is created
// when its parent exists; otherwise the working directory is used.
func resolveRoot(root string) (string, string) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if root == "" {
		return cwd, ""
	}
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return root, ""
	}
	parent := filepath.Dir(filepath.Clean(root))
	if info, err := os.Stat(parent); err == nil && info.IsDir() {
		if err := os.Mkdir(root, 0o750); err == nil {
			return root, ""
		}
	}
	return cwd, fmt.Sprintf("root %q is not usable, using %q", root, cwd)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.HTTP.Transport {
	case "resty", "colly":
	default:
		return fmt.Errorf("http.transport must be resty or colly, got %q", c.HTTP.Transport)
	}
	if c.HTTP.PacingMinMs < 0 || c.HTTP.PacingMaxMs < c.HTTP.PacingMinMs {
		return fmt.Errorf("http pacing bounds %d..%d ms are invalid", c.HTTP.PacingMinMs, c.HTTP.PacingMaxMs)
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.StorageFormat == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when storage_format is postgres")
	}
	if c.Server.QueueDepth <= 0 {
		return fmt.Errorf("server.queue_depth must be > 0")
	}
	if c.Export.TopicName != "" && c.Export.ProjectID == "" {
		return fmt.Errorf("export.project_id must be set when export.topic_name is set")
	}
	return nil
}

// RequestTimeout returns Timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// PacingBounds returns the pacing delay range.
func (c Config) PacingBounds() (time.Duration, time.Duration) {
	return time.Duration(c.HTTP.PacingMinMs) * time.Millisecond,
		time.Duration(c.HTTP.PacingMaxMs) * time.Millisecond
}

// RefreshInterval returns the credential refresh period.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Credential.RefreshMinutes) * time.Minute
}
