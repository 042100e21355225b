// Package cli holds the start-up helpers used by cmd/kasbot.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"kasbot/internal/amqp"
	"kasbot/internal/config"
	"kasbot/internal/log"
	"kasbot/internal/storage"
)

// SetupLogger builds the application logger from LOG_LEVEL and installs it
// as the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads .env (if present) and the environment, exiting
// the process when the result is invalid.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	envErr := config.LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel)

	if envErr != nil {
		logger.Warn("Failed to read .env file", log.FieldError, envErr)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitAudit opens the audit log, or returns nil when it is disabled. A
// database that cannot be opened is fatal.
func InitAudit(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	if dbPath == "" {
		logger.Info("Audit log disabled")
		return nil
	}
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite audit log",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeDatabase, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("Audit log ready", "path", dbPath)
	return repo
}

// InitPublisher connects the mutation event publisher. It is optional: an
// unreachable broker is logged and the bot runs without events.
func InitPublisher(logger *log.Logger, cfg *config.Config) *amqp.Publisher {
	if cfg.AMQPURL == "" {
		return nil
	}
	pub, err := amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
	if err != nil {
		logger.Warn("Failed to initialize AMQP publisher, continuing without events",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
		return nil
	}
	logger.Info("Initialized AMQP publisher",
		"exchange", cfg.AMQPExchange,
		"routing_key", cfg.AMQPRoutingKey)
	return pub
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
