package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "COUNTRYSEED"

// Config holds the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Data      DataConfig      `mapstructure:"data"`
	Seed      SeedConfig      `mapstructure:"seed"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds the document store connection settings
type DatabaseConfig struct {
	URI            string        `mapstructure:"uri"`
	Name           string        `mapstructure:"name"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Token          string        `mapstructure:"token"`
}

// DataConfig selects where the country, flag and subdivision data come from
type DataConfig struct {
	Source        string `mapstructure:"source"`
	Dir           string `mapstructure:"dir"`
	CountriesFile string `mapstructure:"countries_file"`
	FlagsFile     string `mapstructure:"flags_file"`
	StatesFile    string `mapstructure:"states_file"`
}

// SeedConfig holds run options
type SeedConfig struct {
	SampleLimit int  `mapstructure:"sample_limit"`
	DryRun      bool `mapstructure:"dry_run"`
}

// AuditConfig holds the pre-insert audit options
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Strict     bool   `mapstructure:"strict"`
	PolicyFile string `mapstructure:"policy_file"`
}

// EventsConfig holds NATS configuration
type EventsConfig struct {
	URL     string        `mapstructure:"url"`
	Subject string        `mapstructure:"subject"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	PrometheusPort int     `mapstructure:"prometheus_port"`
	PushgatewayURL string  `mapstructure:"pushgateway_url"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"dry-run":      "seed.dry_run",
	"sample-limit": "seed.sample_limit",
	"data-source":  "data.source",
	"data-dir":     "data.dir",
	"strict-audit": "audit.strict",
	"uri":          "database.uri",
	"log-level":    "logging.level",
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(configFile string) (*Config, error) {
	return LoadWithFlags(configFile, nil)
}

// LoadWithFlags loads configuration and lets any changed flag in flags
// override it. Precedence is flags, environment, config file, defaults.
// A .env file in the working directory is read first and never overrides
// variables that are already set.
func LoadWithFlags(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("countryseed")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/countryseed")

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// MONGODB_URI is the conventional variable for the connection string.
	if err := v.BindEnv("database.uri", EnvPrefix+"_DATABASE_URI", "MONGODB_URI"); err != nil {
		return nil, fmt.Errorf("failed to bind database uri: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late in a run.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "builtin", "files":
	default:
		return fmt.Errorf("data.source must be builtin or files, got %q", c.Data.Source)
	}

	if c.Seed.SampleLimit < 0 {
		return fmt.Errorf("seed.sample_limit must not be negative")
	}

	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("database.connect_timeout must be positive")
	}

	if c.Database.Collection == "" {
		return fmt.Errorf("database.collection is required")
	}

	return nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults; the URI has none so a missing one fails the run.
	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.collection", "countries")
	v.SetDefault("database.connect_timeout", "30s")
	v.SetDefault("database.token", "")

	// Data source defaults
	v.SetDefault("data.source", "builtin")
	v.SetDefault("data.dir", "")
	v.SetDefault("data.countries_file", "")
	v.SetDefault("data.flags_file", "")
	v.SetDefault("data.states_file", "")

	// Seed defaults
	v.SetDefault("seed.sample_limit", 5)
	v.SetDefault("seed.dry_run", false)

	// Audit defaults
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.strict", false)
	v.SetDefault("audit.policy_file", "")

	// Event defaults; publishing is off until a URL is set.
	v.SetDefault("events.url", "")
	v.SetDefault("events.subject", "countryseed.seeded")
	v.SetDefault("events.timeout", "5s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.prometheus_port", 0)
	v.SetDefault("telemetry.pushgateway_url", "")
	v.SetDefault("telemetry.jaeger_endpoint", "")
	v.SetDefault("telemetry.service_name", "countryseed")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.sample_rate", 1.0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "stderr")
	v.SetDefault("logging.error_path", "stderr")
}
