package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/budgetd/internal/api"
	"github.com/allaspectsdev/budgetd/internal/config"
	"github.com/allaspectsdev/budgetd/internal/currency"
	"github.com/allaspectsdev/budgetd/internal/store"
	"github.com/allaspectsdev/budgetd/internal/vault"
	"github.com/allaspectsdev/budgetd/internal/version"
)

// Run is the main daemon orchestrator. It initialises all subsystems,
// starts the HTTP server, and blocks until a shutdown signal is received.
func Run(cfg *config.Config, foreground bool) error {
	// 1. Set up zerolog logger.
	dataDir := cfg.Server.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	writers := []io.Writer{}

	// Always log to file.
	logPath := filepath.Join(dataDir, "budgetd.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()
	writers = append(writers, logFile)

	// If foreground, also write to stdout with console formatting.
	if foreground {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
		writers = append(writers, consoleWriter)
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "budgetd").Logger()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("budgetd starting")

	// 2. Check if already running.
	if IsRunning(dataDir) {
		return fmt.Errorf("budgetd is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	// 3. Open store.
	dbPath := filepath.Join(dataDir, "budgetd.db")
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	log.Info().Str("db_path", dbPath).Msg("store opened")

	// 4. Write PID file.
	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	log.Info().Int("pid", os.Getpid()).Msg("PID file written")

	// 5. Build the currency converter. A missing API key is tolerated at
	// startup: TTD-source conversions need no provider call, and other
	// conversions will surface as null with a logged error.
	v := vault.New()
	converter := currency.NewConverter(buildRateClient(v, cfg))

	// 6. Start config watcher.
	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}

	var watcher *config.Watcher
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			watcher = w
			defer watcher.Close()
			watcher.OnChange(func(old, newCfg *config.Config) {
				log.Info().Msg("configuration reloaded")
				zerolog.SetGlobalLevel(parseLogLevel(newCfg.Server.LogLevel))
				if old.Currency != newCfg.Currency {
					converter.SetProvider(buildRateClient(v, newCfg))
					log.Info().Str("api_base", newCfg.Currency.APIBase).Msg("rate provider reconfigured")
				}
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}

	// 7. Create and start the HTTP server.
	handler := api.NewBudgetHandler(st, converter, log.Logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	readTimeout := time.Duration(cfg.Server.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.Server.WriteTimeout) * time.Second
	idleTimeout := time.Duration(cfg.Server.IdleTimeout) * time.Second
	server := api.NewServer(handler, addr, readTimeout, writeTimeout, idleTimeout)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server starting")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	log.Info().Int("port", cfg.Server.Port).Msg("budgetd is ready")
	if foreground {
		fmt.Printf("\n  budgetd is running on http://localhost:%d\n\n", cfg.Server.Port)
	}

	// 8. Wait for a shutdown signal or a fatal server error.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}

	log.Info().Msg("budgetd stopped")
	return nil
}

// Stop signals a running daemon (identified by its PID file) to shut down.
func Stop() error {
	cfg := configOrDefault()
	dataDir := cfg.Server.DataDir

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("budgetd does not appear to be running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signalling process %d: %w", pid, err)
	}
	return nil
}

// Status reports whether the daemon is running.
func Status() error {
	cfg := configOrDefault()
	dataDir := cfg.Server.DataDir

	if !IsRunning(dataDir) {
		return fmt.Errorf("budgetd is not running")
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("budgetd is running (PID %d, port %d)\n", pid, cfg.Server.Port)
	return nil
}

// configOrDefault loads the config, falling back to defaults on error so
// stop/status still work with a broken config file.
func configOrDefault() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		return config.Get()
	}
	return cfg
}

// buildRateClient resolves the provider API key and constructs the rate
// client from the current currency settings.
func buildRateClient(v *vault.Vault, cfg *config.Config) *currency.Client {
	apiKey := ""
	if cfg.Currency.KeyRef != "" {
		key, err := v.ResolveKeyRef(cfg.Currency.KeyRef)
		if err != nil {
			log.Warn().Err(err).Msg("failed to resolve rate-provider API key; conversions will be unavailable")
		} else {
			apiKey = key
		}
	}
	return currency.NewClient(cfg.Currency.APIBase, apiKey, cfg.Currency.TimeoutDuration())
}

// parseLogLevel converts a config log level string to a zerolog level.
func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
