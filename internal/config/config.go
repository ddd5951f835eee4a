package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for budgetd.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   toml:"server"`
	Currency CurrencyConfig `mapstructure:"currency" toml:"currency"`
}

// ServerConfig holds the core server settings.
type ServerConfig struct {
	Port         int    `mapstructure:"port"          toml:"port"`
	LogLevel     string `mapstructure:"log_level"     toml:"log_level"`
	DataDir      string `mapstructure:"data_dir"      toml:"data_dir"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
}

// CurrencyConfig describes the external exchange-rate provider.
type CurrencyConfig struct {
	APIBase string `mapstructure:"api_base" toml:"api_base"`
	KeyRef  string `mapstructure:"key_ref"  toml:"key_ref"`
	Timeout int    `mapstructure:"timeout"  toml:"timeout"` // seconds
}

// TimeoutDuration returns the provider timeout as a time.Duration.
func (c CurrencyConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return time.Duration(DefaultCurrencyTimeout) * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (BUDGETD_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.budgetd/budgetd.toml
//  4. ./budgetd.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// Set all defaults from the default config so viper knows every key.
	setViperDefaults(v)

	// Environment variable overlay: BUDGETD_SERVER_PORT etc.
	v.SetEnvPrefix("BUDGETD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Determine which file(s) to read.
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".budgetd"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("budgetd")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file exists we still proceed with defaults + env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Store the resolved config file path.
	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Expand ~ in data_dir.
	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// InitConfig writes the default configuration file to ~/.budgetd/budgetd.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".budgetd")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var
// binding works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	// Currency
	v.SetDefault("currency.api_base", d.Currency.APIBase)
	v.SetDefault("currency.key_ref", d.Currency.KeyRef)
	v.SetDefault("currency.timeout", d.Currency.Timeout)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
