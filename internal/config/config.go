// Package config содержит логику чтения конфигурации сервиса биллинга WantokJobs.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultRunAddress         = "localhost:8080"
	defaultLogLevel           = "info"
	defaultResetCheckInterval = time.Hour
	defaultReconcileInterval  = time.Minute
	defaultTrialDays          = 14
	defaultCurrency           = "PGK"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	JWTSecret          string        `env:"JWT_SECRET"`
	LogLevel           string        `env:"LOG_LEVEL"`
	BankFeedAddress    string        `env:"BANK_FEED_ADDRESS"`
	ResetCheckInterval time.Duration `env:"RESET_CHECK_INTERVAL"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL"`
	DefaultTrialDays   int           `env:"DEFAULT_TRIAL_DAYS"`
	Currency           string        `env:"CURRENCY"`
}

// RegisterFlags регистрирует флаги командной строки со значениями по умолчанию.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.RunAddress, "address", "a", defaultRunAddress, "address and port for HTTP server")
	fs.StringVarP(&c.DatabaseURI, "database", "d", "", "database URI, empty for in-memory storage")
	fs.StringVarP(&c.JWTSecret, "secret", "s", "", "JWT signing secret")
	fs.StringVarP(&c.LogLevel, "log-level", "l", defaultLogLevel, "log level")
	fs.StringVarP(&c.BankFeedAddress, "bank-feed", "b", "", "bank transfer feed address")
	fs.DurationVar(&c.ResetCheckInterval, "reset-interval", defaultResetCheckInterval, "annual reset check interval")
	fs.DurationVar(&c.ReconcileInterval, "reconcile-interval", defaultReconcileInterval, "deposit reconciliation interval")
	fs.IntVar(&c.DefaultTrialDays, "trial-days", defaultTrialDays, "standard trial length when no trial package exists")
	fs.StringVar(&c.Currency, "currency", defaultCurrency, "currency of orders and wallets")
}

// Parse применяет переменные окружения поверх уже разобранных флагов.
// При ENV=dev переменные предварительно читаются из файла .env.
func (c *Config) Parse() error {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if c.RunAddress == "" {
		c.RunAddress = defaultRunAddress
	}
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}

	return c.validate()
}

func (c *Config) validate() error {
	var errs []error
	if c.ResetCheckInterval < 0 {
		errs = append(errs, errors.New("reset check interval must not be negative"))
	}
	if c.ReconcileInterval < 0 {
		errs = append(errs, errors.New("reconcile interval must not be negative"))
	}
	if c.DefaultTrialDays <= 0 {
		errs = append(errs, fmt.Errorf("default trial days must be positive, got %d", c.DefaultTrialDays))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger создаёт production-логгер с уровнем из конфигурации.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}
