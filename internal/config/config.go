package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RUMORLENS_SERVER_URL.
const EnvPrefix = "RUMORLENS"

// Config holds all client configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the API endpoint settings
type ServerConfig struct {
	URL       string        `mapstructure:"url"`
	APIPrefix string        `mapstructure:"api_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// BaseURL returns the server URL joined with the API prefix.
func (s *ServerConfig) BaseURL() string {
	return strings.TrimRight(s.URL, "/") + s.APIPrefix
}

// StorageConfig holds durable token storage settings
type StorageConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"server":     "server.url",
	"timeout":    "server.timeout",
	"storage":    "storage.path",
	"ephemeral":  "storage.in_memory",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// Flags returns the global flag set understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("rumorlens", pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (yaml, toml, json or env)")
	fs.String("server", "", "API server URL")
	fs.Duration("timeout", 0, "request timeout")
	fs.String("storage", "", "path of the local token database")
	fs.Bool("ephemeral", false, "keep tokens in memory only")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: text or json")
	return fs
}

// Load builds the configuration from defaults, an optional config file,
// environment variables and flags, in increasing order of precedence.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
		if path, err := fs.GetString("config"); err == nil && path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://localhost:8000")
	v.SetDefault("server.api_prefix", "/api/v1")
	v.SetDefault("server.timeout", "10m")

	v.SetDefault("storage.path", DefaultStoragePath())
	v.SetDefault("storage.in_memory", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// DefaultStoragePath is $HOME/.rumorlens/client.db, or a relative path if
// the home directory is unknown.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rumorlens", "client.db")
	}
	return filepath.Join(home, ".rumorlens", "client.db")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server.URL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server.url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server.url: missing host"))
	}

	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("server.api_prefix: must start with '/', got %q", c.Server.APIPrefix))
	}

	if c.Server.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("server.timeout: must be positive, got %s", c.Server.Timeout))
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path: required unless storage.in_memory is set"))
	}

	if _, err := logutil.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
