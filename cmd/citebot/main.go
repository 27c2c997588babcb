package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"nuclight.org/citebot/internal/access"
	"nuclight.org/citebot/internal/bot"
	"nuclight.org/citebot/internal/citation"
	"nuclight.org/citebot/internal/config"
	"nuclight.org/citebot/internal/logger"
	"nuclight.org/citebot/internal/poll"
	"nuclight.org/citebot/internal/scheduler"
	"nuclight.org/citebot/internal/storage"
)

const (
	cachePurgeTag  = "cache-purge"
	watchInterval  = 5 * time.Second
	documentLockID = "document"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up structured logger, reporting errors to Sentry when configured
	appLog := logger.NewLogger(cfg.LogLevel)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Fatalf("Failed to init sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
		appLog = logger.NewLoggerWithSentry(cfg.LogLevel)
	}

	appLog.Info("config loaded",
		"db_path", cfg.DBPath,
		"poll_duration", cfg.PollDuration,
		"daily_cite_hour", cfg.DailyCiteHour,
		"webhook", cfg.WebhookMode(),
	)

	if err := bot.InitTemplates(); err != nil {
		log.Fatalf("Failed to init templates: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	settings := storage.NewSettingsRepository(db)
	if err := settings.EnsurePassphrase(ctx, cfg.Passphrase); err != nil {
		log.Fatalf("Failed to seed passphrase: %v", err)
	}

	appLog.Info("database initialized")

	// Shared handles
	cache := storage.NewCache(db)
	lock := storage.NewDocumentLock(db, documentLockID, appLog)
	sched := scheduler.New(storage.NewTriggerRepository(db), appLog)

	// Create services
	citationService := citation.NewService(storage.NewCitationRepository(db), cache, lock, cfg.Signature)
	accessService := access.NewService(storage.NewChatRepository(db), storage.NewBanRepository(db), settings)

	b, err := bot.New(bot.Options{
		Token:            cfg.TelegramToken,
		Signature:        cfg.Signature,
		PollDuration:     cfg.PollDuration,
		WebhookPublicURL: cfg.WebhookPublicURL,
		WebhookListen:    cfg.WebhookListen,
	}, appLog)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	pollService := poll.NewService(b, cache, sched, lock, appLog)

	b.Attach(bot.Services{
		Citations: citationService,
		Polls:     pollService,
		Access:    accessService,
	})

	// Timer callbacks
	sched.Register(poll.CloseTag, pollService.OnTimerFire)
	sched.Register(cachePurgeTag, sched.Recurring(cachePurgeTag,
		func(now time.Time) time.Time { return now.Add(time.Hour) },
		func(ctx context.Context) error {
			n, err := cache.PurgeExpired(ctx)
			if err == nil && n > 0 {
				appLog.Debug("expired cache entries purged", "count", n)
			}
			return err
		},
	))
	if err := sched.Ensure(ctx, cachePurgeTag, time.Now().Add(time.Hour)); err != nil {
		log.Fatalf("Failed to schedule cache purge: %v", err)
	}

	if cfg.DailyCiteHour >= 0 {
		sched.Register(bot.DailyCiteTag, sched.Recurring(bot.DailyCiteTag,
			func(now time.Time) time.Time { return scheduler.NextDaily(now, cfg.DailyCiteHour) },
			b.SendCitationOfTheDay,
		))
		if err := sched.Ensure(ctx, bot.DailyCiteTag, scheduler.NextDaily(time.Now(), cfg.DailyCiteHour)); err != nil {
			log.Fatalf("Failed to schedule citation of the day: %v", err)
		}
	}

	// Hand edits of the database invalidate the edit index
	watcher := storage.NewChangeWatcher(db, watchInterval, citationService.Index().Invalidate, appLog)

	go sched.Run(ctx)
	go watcher.Run(ctx)
	go func() {
		<-ctx.Done()
		appLog.Info("shutting down")
		b.Stop()
	}()

	b.Start()
}
