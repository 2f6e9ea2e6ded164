// Package config loads the mcstatus configuration file via Viper. All struct
// fields map 1-to-1 with the keys of the config file (JSON, YAML or TOML).
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerPort      = 25565
	DefaultAPIPort         = 9235
	DefaultPollingInterval = 60  // seconds
	DefaultQueryTimeout    = 100 // milliseconds
	DefaultMaxParallel     = 10

	EditionJava    = "java"
	EditionBedrock = "bedrock"
)

// validID matches ids that are usable both as a URL path segment and as a
// file name.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ServerCfg describes one monitored game server. It is never mutated after
// Load returns.
type ServerCfg struct {
	Name    string `mapstructure:"name" json:"name"`
	ID      string `mapstructure:"id" json:"id"`
	Host    string `mapstructure:"host" json:"host"`
	Port    int    `mapstructure:"port" json:"port"`
	Edition string `mapstructure:"edition" json:"-"`
}

// Address returns host:port, bracketing IPv6 literals.
func (s ServerCfg) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RateLimitCfg controls per-IP token-bucket rate limiting of the status API.
type RateLimitCfg struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// AuthCfg controls optional JWT Bearer-token authentication of the status API.
type AuthCfg struct {
	Enabled bool     `mapstructure:"enabled"`
	Secret  string   `mapstructure:"secret"`
	Exclude []string `mapstructure:"exclude"`
}

// Config is the top-level configuration.
type Config struct {
	Servers                  []ServerCfg  `mapstructure:"servers"`
	Port                     int          `mapstructure:"port"`
	PollingIntervalSeconds   int          `mapstructure:"polling_interval_seconds"`
	QueryTimeoutMilliseconds int          `mapstructure:"query_timeout_milliseconds"`
	MaxParallelQueries       int          `mapstructure:"max_parallel_queries"`
	FaviconSavePath          string       `mapstructure:"favicon_save_path"`
	LogLevel                 string       `mapstructure:"log_level"`
	LogFile                  string       `mapstructure:"log_file"`
	RateLimit                RateLimitCfg `mapstructure:"rate_limit"`
	Auth                     AuthCfg      `mapstructure:"auth"`
}

// PollingInterval returns the pause between two polling iterations.
func (c Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

// QueryTimeout returns the per-probe timeout.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMilliseconds) * time.Millisecond
}

// ListenAddr returns the address the status API binds to.
func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Load reads and validates the config file at path.
// It returns the parsed Config and the Viper instance (needed for Watch).
func Load(path string) (Config, *viper.Viper, error) {
	if path == "" {
		return Config{}, nil, fmt.Errorf("config: file path is required")
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("mcstatus")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", DefaultAPIPort)
	v.SetDefault("polling_interval_seconds", DefaultPollingInterval)
	v.SetDefault("query_timeout_milliseconds", DefaultQueryTimeout)
	v.SetDefault("max_parallel_queries", DefaultMaxParallel)
	v.SetDefault("favicon_save_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("auth.enabled", false)

	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills per-server defaults viper cannot express for list items and
// rejects anything the poller or API could not work with.
func (c *Config) normalize() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("config: at least one server must be defined")
	}
	seen := make(map[string]struct{}, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.ID == "" {
			return fmt.Errorf("config: servers[%d] has empty id", i)
		}
		if !validID.MatchString(s.ID) || s.ID == "." || s.ID == ".." {
			return fmt.Errorf("config: server id %q may only contain letters, digits, '.', '_' and '-'", s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("config: duplicate server id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Host == "" {
			return fmt.Errorf("config: server %q has empty host", s.ID)
		}
		if s.Port == 0 {
			s.Port = DefaultServerPort
		}
		if s.Port < 1 || s.Port > 65535 {
			return fmt.Errorf("config: server %q port %d out of range", s.ID, s.Port)
		}
		if s.Name == "" {
			s.Name = s.ID
		}
		s.Edition = strings.ToLower(s.Edition)
		switch s.Edition {
		case "":
			s.Edition = EditionJava
		case EditionJava, EditionBedrock:
		default:
			return fmt.Errorf("config: server %q has unknown edition %q", s.ID, s.Edition)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: api port %d out of range", c.Port)
	}
	if c.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("config: polling_interval_seconds must be positive")
	}
	if c.QueryTimeoutMilliseconds <= 0 {
		return fmt.Errorf("config: query_timeout_milliseconds must be positive")
	}
	if c.MaxParallelQueries <= 0 {
		return fmt.Errorf("config: max_parallel_queries must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("config: rate_limit requires positive rps and burst")
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("config: auth enabled without a secret")
	}
	return nil
}
