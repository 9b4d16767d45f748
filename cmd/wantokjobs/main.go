// Package main запускает сервис биллинга WantokJobs и его служебные команды.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nwakan/wantok-jobs-sub002/internal/config"
	"github.com/nwakan/wantok-jobs-sub002/internal/repository"
	"github.com/nwakan/wantok-jobs-sub002/internal/service"
)

// app хранит состояние, общее для всех команд.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: &config.Config{}}

	root := &cobra.Command{
		Use:           "wantokjobs",
		Short:         "WantokJobs credit billing and trial entitlement service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Parse(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			logger, err := a.cfg.NewLogger()
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	a.cfg.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newResetCreditsCmd(a),
		newUserCmd(a),
		newTokenCmd(a),
	)
	return root
}

// openService подключает хранилище и собирает сервис биллинга.
// Без DATABASE_URI используется хранилище в памяти с каталогом пакетов по умолчанию.
func (a *app) openService(opts ...service.Option) (*service.Service, error) {
	var repo service.Repository
	if a.cfg.DatabaseURI == "" {
		a.logger.Warn("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository(repository.DefaultPackages...)
	} else {
		pg, err := repository.NewPostgresRepository(a.cfg.DatabaseURI)
		if err != nil {
			return nil, fmt.Errorf("database initialization error: %w", err)
		}
		repo = pg
	}

	opts = append([]service.Option{
		service.WithDefaultTrialDays(a.cfg.DefaultTrialDays),
		service.WithCurrency(a.cfg.Currency),
	}, opts...)

	return service.NewService(repo, a.logger.Named("billing"), opts...), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
