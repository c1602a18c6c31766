// Package config provides configuration management for the research data service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"frc-research/internal/errors"
	"frc-research/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	API         APIConfig      `mapstructure:"api"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Coverage    CoverageConfig `mapstructure:"coverage"`
	Store       StoreConfig    `mapstructure:"store"`
	Watch       WatchConfig    `mapstructure:"watch"`
	Server      ServerConfig   `mapstructure:"server"`
	Credentials Credentials    `mapstructure:"-"` // Loaded separately

	dir string
}

// APIConfig holds upstream research API settings.
type APIConfig struct {
	BaseURL          string            `mapstructure:"base_url" validate:"required,url"`
	Timeout          time.Duration     `mapstructure:"timeout" validate:"gt=0"`
	RateLimit        float64           `mapstructure:"rate_limit" validate:"gte=0"`
	RetryAttempts    int               `mapstructure:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay       time.Duration     `mapstructure:"retry_delay" validate:"gte=0"`
	BreakerThreshold int               `mapstructure:"breaker_threshold" validate:"gte=1"`
	BreakerCooldown  time.Duration     `mapstructure:"breaker_cooldown" validate:"gte=0"`
	Endpoints        map[string]string `mapstructure:"endpoints"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
}

// CoverageConfig holds coverage statistics settings.
type CoverageConfig struct {
	Windows      []int  `mapstructure:"windows" validate:"dive,gt=0"`
	ReportWindow int    `mapstructure:"report_window" validate:"gt=0"`
	FieldPaths   string `mapstructure:"field_paths"` // optional YAML override of reconciler paths
}

// StoreConfig holds snapshot store settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WatchConfig holds the watchlist refresh schedule.
type WatchConfig struct {
	Tickers  []string `mapstructure:"tickers"`
	Schedule string   `mapstructure:"schedule"`
	Workers  int      `mapstructure:"workers" validate:"gte=1,lte=64"`
}

// ServerConfig holds the JSON server settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

// Credentials holds API credentials.
type Credentials struct {
	APIToken string `mapstructure:"api_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/frc-research"
	}
	return filepath.Join(home, ".config", "frc-research")
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string {
	return c.dir
}

// ConfigPath returns the path of the main config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.dir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files are
// created from templates and loading continues with their defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{dir: configDir}

	// .env in the config directory, then the working directory. Existing
	// environment variables always win.
	loadDotEnv(filepath.Join(configDir, ".env"), ".env")

	if err := loadConfigFile(configDir, "config", configTemplate, 0644, setDefaults, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}
	if err := loadConfigFile(configDir, "credentials", credentialsTemplate, 0600, nil, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{dir: DefaultConfigDir()}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".config", "frc-research")

	v.SetDefault("api.base_url", "https://api.researchfrc.com/api")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.retry_attempts", 1)
	v.SetDefault("api.retry_delay", "250ms")
	v.SetDefault("api.breaker_threshold", 5)
	v.SetDefault("api.breaker_cooldown", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(base, "logs", "frc.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("coverage.windows", []int{5, 10, 15, 30, 90})
	v.SetDefault("coverage.report_window", 30)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", filepath.Join(base, "snapshots.db"))

	v.SetDefault("watch.schedule", "0 0 18 * * 1-5")
	v.SetDefault("watch.workers", 4)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
}

func loadConfigFile(configDir, name, template string, perm os.FileMode, defaults func(*viper.Viper), target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	if defaults != nil {
		defaults(v)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found: write the template and continue with defaults.
		if err := writeTemplate(configDir, name+".toml", template, perm); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FRC_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FRC_API_TOKEN"); v != "" {
		cfg.Credentials.APIToken = v
	}
	if v := os.Getenv("FRC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

var validate = validator.New()

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrConfigInvalid, describe(err))
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return errors.Wrapf(errors.ErrConfigInvalid, "logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	if c.Logging.File && c.Logging.FilePath == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "logging.file_path is required when file logging is enabled")
	}
	if c.Store.Enabled && c.Store.Path == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "store.path is required when the store is enabled")
	}
	for kind, tmpl := range c.API.Endpoints {
		if !strings.HasPrefix(tmpl, "/") || !strings.Contains(tmpl, "{ticker}") {
			return errors.Wrapf(errors.ErrConfigInvalid, "api.endpoints.%s %q must start with / and contain {ticker}", kind, tmpl)
		}
	}
	if len(c.Watch.Tickers) > 0 {
		if _, err := scheduleParser.Parse(c.Watch.Schedule); err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "watch.schedule %q: %v", c.Watch.Schedule, err)
		}
	}

	return nil
}

// ParseSchedule parses a watch schedule in the format accepted by Validate.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return scheduleParser.Parse(spec)
}

// LogConfig converts the logging section for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s fails %s", field, fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
