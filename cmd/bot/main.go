// Command bot starts one BridgeOS bot process, bound to the slot named by
// BOT_ID. It long-polls the chat platform, relays translated messages, and
// on slot 1 also runs the shared background jobs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairyhunter13/bridgeos/internal/adapter/dedup"
	"github.com/fairyhunter13/bridgeos/internal/adapter/observability"
	"github.com/fairyhunter13/bridgeos/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/bridgeos/internal/adapter/translator/openrouter"
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
	slot := cfg.BotSlot()
	if slot == 0 {
		slog.Error("BOT_ID must name a slot bot1..bot5", slog.String("bot_id", cfg.BotID))
		os.Exit(1)
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

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Error("catalog load failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL, cfg.DBPoolMinConns, cfg.DBPoolMaxConns)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Migrations are idempotent and cheap; every process applies them so
	// deploy order between the five bots does not matter.
	if err := postgres.Migrate(pool); err != nil {
		slog.Error("migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	users := postgres.NewUserRepo(pool)
	managers := postgres.NewManagerRepo(pool)
	workers := postgres.NewWorkerRepo(pool)
	conns := postgres.NewConnectionRepo(pool)
	messages := postgres.NewMessageRepo(pool)
	tasks := postgres.NewTaskRepo(pool)
	subs := postgres.NewSubscriptionRepo(pool)
	usage := postgres.NewUsageRepo(pool)
	feedback := postgres.NewFeedbackRepo(pool)

	transports := make(domain.TransportSet, domain.MaxBotSlot)
	for s := domain.MinBotSlot; s <= domain.MaxBotSlot; s++ {
		if token := cfg.BotToken(s); token != "" {
			transports[s] = telegram.New(token, cfg.TransportTimeout)
		}
	}
	if _, ok := transports[slot]; !ok {
		slog.Error("no token for own slot", slog.Int("bot_slot", slot))
		os.Exit(1)
	}
	poller := telegram.New(cfg.BotToken(slot), cfg.TransportTimeout)

	deduper := dedup.New(cfg.RedisAddr, slot)
	defer func() { _ = deduper.Close() }()

	translator := openrouter.New(cfg)

	identitySvc := usecase.NewIdentityService(users, managers, workers, conns)
	connSvc := usecase.NewConnectionService(managers, workers, conns, cfg.BotUsername)
	msgSvc := usecase.MessageService{
		Connections:   conns,
		Users:         users,
		Managers:      managers,
		Messages:      messages,
		Subscriptions: subs,
		Usage:         usage,
		Translator:    translator,
		Transports:    transports,
		Gate: usecase.MessageGate{
			FreeLimit:     cfg.FreeMessageLimit,
			EnforceLimits: cfg.EnforceLimits,
			IsTestUser:    cfg.IsTestUser,
		},
		ContextSize:        cfg.TranslationContextSize,
		IndustryDesc:       catalog.IndustryDescription,
		TranslationTimeout: cfg.TranslationTimeout,
		TransportTimeout:   cfg.TransportTimeout,
	}
	taskSvc := usecase.TaskService{
		Tasks:              tasks,
		Connections:        conns,
		Users:              users,
		Managers:           managers,
		Translator:         translator,
		IndustryDesc:       catalog.IndustryDescription,
		TranslationTimeout: cfg.TranslationTimeout,
	}
	subSvc := usecase.SubscriptionService{
		Subscriptions:   subs,
		Usage:           usage,
		CheckoutBaseURL: cfg.CheckoutBaseURL,
		MonthlyPriceUSD: cfg.MonthlyPriceUSD,
	}
	feedbackSvc := usecase.FeedbackService{Feedback: feedback}
	extractionSvc := usecase.ExtractionService{
		Connections:        conns,
		Messages:           messages,
		Users:              users,
		Managers:           managers,
		Translator:         translator,
		Transports:         transports,
		IndustryDesc:       catalog.IndustryDescription,
		TranslationTimeout: cfg.TranslationTimeout,
		TransportTimeout:   cfg.TransportTimeout,
	}

	// Slot 1 runs the fleet-wide background jobs exactly once.
	if slot == domain.MinBotSlot {
		if cfg.MessageRetentionDays > 0 {
			janitor := postgres.NewCleanupService(postgres.PoolBeginner{Pool: pool}, cfg.MessageRetentionDays)
			go janitor.RunPeriodic(ctx, cfg.CleanupInterval)
			slog.Info("retention janitor started", slog.Int("retention_days", cfg.MessageRetentionDays))
		}
		go extractionSvc.RunDaily(ctx, 0)
		slog.Info("daily extraction started")
	}

	loop := &app.BotLoop{
		Cfg:           cfg,
		Catalog:       catalog,
		Slot:          slot,
		Poller:        poller,
		Dedup:         deduper,
		Identity:      identitySvc,
		Connections:   connSvc,
		Messages:      msgSvc,
		Tasks:         taskSvc,
		Subscriptions: subSvc,
		Extraction:    extractionSvc,
		Feedback:      feedbackSvc,
		Transports:    transports,
		PollTimeout:   cfg.TransportTimeout * 6,
	}
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("bot loop failed", slog.Any("error", err))
		os.Exit(1)
	}
}
