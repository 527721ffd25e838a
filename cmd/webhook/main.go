// Command webhook starts the billing webhook receiver.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/adapter/httpserver"
	"github.com/fairyhunter13/bridgeos/internal/adapter/observability"
	"github.com/fairyhunter13/bridgeos/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bridgeos/internal/adapter/transport/telegram"
	"github.com/fairyhunter13/bridgeos/internal/app"
	"github.com/fairyhunter13/bridgeos/internal/config"
	"github.com/fairyhunter13/bridgeos/internal/domain"
	"github.com/fairyhunter13/bridgeos/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	if cfg.WebhookSecret == "" {
		slog.Error("BILLING_WEBHOOK_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL, cfg.DBPoolMinConns, cfg.DBPoolMaxConns)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := postgres.Migrate(pool); err != nil {
		slog.Error("migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	subs := postgres.NewSubscriptionRepo(pool)
	usage := postgres.NewUsageRepo(pool)
	conns := postgres.NewConnectionRepo(pool)

	// Outbound-only transports for the post-event notices.
	transports := make(domain.TransportSet, domain.MaxBotSlot)
	for s := domain.MinBotSlot; s <= domain.MaxBotSlot; s++ {
		if token := cfg.BotToken(s); token != "" {
			transports[s] = telegram.New(token, cfg.TransportTimeout)
		}
	}

	subSvc := usecase.SubscriptionService{
		Subscriptions:   subs,
		Usage:           usage,
		CheckoutBaseURL: cfg.CheckoutBaseURL,
		MonthlyPriceUSD: cfg.MonthlyPriceUSD,
	}
	srv := httpserver.NewServer(cfg, subSvc, conns, transports, pool.Ping)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("webhook server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
