package config

// DefaultPort is the default port for the HTTP server.
const DefaultPort = 7680

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.budgetd"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "budgetd.toml"

// DefaultRateAPIBase is the default base URL of the exchange-rate provider.
const DefaultRateAPIBase = "https://v6.exchangerate-api.com/v6"

// DefaultCurrencyKeyRef is the default reference for the provider API key.
const DefaultCurrencyKeyRef = "keyring://budgetd/exchangerate"

// DefaultCurrencyTimeout is the default rate-provider timeout in seconds.
const DefaultCurrencyTimeout = 10

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds.
const DefaultWriteTimeout = 30

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// ValidLogLevels are the accepted values for server.log_level.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error"}

// DefaultConfig returns a Config populated with every default value.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			DataDir:      DefaultDataDir,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Currency: CurrencyConfig{
			APIBase: DefaultRateAPIBase,
			KeyRef:  DefaultCurrencyKeyRef,
			Timeout: DefaultCurrencyTimeout,
		},
	}
}
