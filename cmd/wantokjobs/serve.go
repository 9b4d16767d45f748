package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nwakan/wantok-jobs-sub002/internal/bankfeed"
	"github.com/nwakan/wantok-jobs-sub002/internal/handler"
	"github.com/nwakan/wantok-jobs-sub002/internal/middleware"
	"github.com/nwakan/wantok-jobs-sub002/internal/service"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the billing HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	sugar := a.logger.Sugar()

	var opts []service.Option
	if a.cfg.BankFeedAddress != "" {
		opts = append(opts, service.WithTransferFeed(bankfeed.NewClient(a.cfg.BankFeedAddress)))
	} else {
		sugar.Info("bank feed address is empty, deposit reconciliation disabled")
	}

	svc, err := a.openService(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if a.cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is empty, tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(a.cfg.JWTSecret)
	h := handler.NewHandler(svc, a.logger, authMiddleware)

	server := &http.Server{
		Addr:              a.cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.RunAnnualResetScheduler(ctx, a.cfg.ResetCheckInterval)
	})

	g.Go(func() error {
		return svc.RunDepositReconciliation(ctx, a.cfg.ReconcileInterval)
	})

	g.Go(func() error {
		sugar.Infow("starting billing server", "addr", a.cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Остановка сервера при сигнале или ошибке в другой горутине.
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("application terminated with error: %w", err)
	}
	return nil
}
