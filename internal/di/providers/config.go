// Package providers contains dependency injection providers for the BooksSwap server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/booksswap/booksswap-server/internal/config"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/metrics"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting BooksSwap server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.App.DataDir,
		"billing_enabled", cfg.Billing.Enabled(),
		"email_enabled", cfg.Email.APIKey != "",
	)

	return log, nil
}

// ProvideMetrics provides the Prometheus registry and collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}
