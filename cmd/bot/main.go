package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metals-desk/quotes-bot/internal/bot"
	"github.com/metals-desk/quotes-bot/internal/broadcast"
	"github.com/metals-desk/quotes-bot/internal/database"
	"github.com/metals-desk/quotes-bot/internal/deadline"
	"github.com/metals-desk/quotes-bot/internal/gates"
	"github.com/metals-desk/quotes-bot/internal/health"
	"github.com/metals-desk/quotes-bot/internal/idempotency"
	"github.com/metals-desk/quotes-bot/internal/jobs"
	jobhandlers "github.com/metals-desk/quotes-bot/internal/jobs/handlers"
	"github.com/metals-desk/quotes-bot/internal/lifecycle"
	"github.com/metals-desk/quotes-bot/internal/middleware"
	"github.com/metals-desk/quotes-bot/internal/offers"
	"github.com/metals-desk/quotes-bot/internal/participant"
	"github.com/metals-desk/quotes-bot/internal/quotes"
	"github.com/metals-desk/quotes-bot/internal/ratelimit"
	"github.com/metals-desk/quotes-bot/internal/repository"
	"github.com/metals-desk/quotes-bot/internal/state"
	"github.com/metals-desk/quotes-bot/pkg/config"
	"github.com/metals-desk/quotes-bot/pkg/graceful"
	"github.com/metals-desk/quotes-bot/pkg/logger"
	pkgredis "github.com/metals-desk/quotes-bot/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	log.Info("starting quotes bot",
		"env", cfg.AppEnv,
		"http_port", cfg.Server.Port,
		"bot_mode", cfg.Bot.Mode,
	)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Error("failed to initialize sentry", "error", err)
			os.Exit(1)
		}
		defer sentry.Flush(2 * time.Second)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("failed to load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		log.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	rdb, err := pkgredis.New(ctx, pkgredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	participantRepo := repository.NewParticipantRepository(db, log)
	offerRepo := repository.NewOfferRepository(db, log)
	quoteRepo := repository.NewQuoteRepository(db, log)
	scheduleRepo := repository.NewScheduleRepository(db, log)
	settingsRepo := repository.NewSettingsRepository(db, log)

	sessions := state.NewManager(state.NewMemoryStorage(), log)
	timers := deadline.NewScheduler(log)

	cache := participant.NewCache(rdb.Client)
	participantsSvc := participant.NewService(participantRepo, cache, log)

	calendar, err := gates.LoadCalendar(cfg.Offers.HolidaysFile)
	if err != nil {
		log.Error("failed to load holiday calendar", "path", cfg.Offers.HolidaysFile, "error", err)
		os.Exit(1)
	}

	gate := gates.NewOfferGate(
		settingsRepo,
		calendar,
		loc,
		cfg.Offers.StartHour,
		cfg.Offers.EndHour,
		cfg.Offers.Enabled,
		log,
	)
	config.Watch(v, log, func(fresh *config.Config) {
		gate.SetEnabledFallback(fresh.Offers.Enabled)
	})

	b, err := bot.New(*cfg, log)
	if err != nil {
		log.Error("failed to initialize telegram bot", "error", err)
		os.Exit(1)
	}

	notifier := bot.NewNotifier(b.Telebot(), b.Keyboard(), cfg.Bot.GroupChatID, log)

	offersSvc := offers.NewService(offerRepo, gate, notifier, loc, cfg.Offers.DailyLimit, log)
	quotesSvc := quotes.NewService(quoteRepo, participantsSvc, sessions, timers, notifier, log)

	idemStore := idempotency.NewRedisStore(rdb.Client, log)
	idemManager := idempotency.NewManager(idemStore, log)

	var rateLimitMW *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.NewAdaptiveLimiter(
			ratelimit.NewRedisLimiter(rdb.Client, log),
			ratelimit.NewMemoryLimiter(log),
			log,
		)
		rateLimitMW = middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), log)

		rlCleaner := ratelimit.NewCleaner(rdb.Client, log, time.Hour)
		go rlCleaner.Run(ctx)
	}

	b.Setup(bot.Deps{
		Sessions:     sessions,
		Participants: participantsSvc,
		Offers:       offersSvc,
		Quotes:       quotesSvc,
		Idempotency:  idemManager,
		RateLimit:    rateLimitMW,
	})

	dispatcher := broadcast.NewDispatcher(
		scheduleRepo,
		participantsSvc,
		sessions,
		timers,
		quotesSvc,
		notifier,
		loc,
		cfg.Broadcast.DefaultWindow,
		log,
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, map[string]int{
		jobs.QueueCritical: 6,
		jobs.QueueDefault:  3,
		jobs.QueueLow:      1,
	}, log)
	worker.RegisterHandler(jobs.TaskTypeBroadcastDispatch, jobhandlers.NewBroadcastDispatchHandler(dispatcher, log))
	worker.RegisterHandler(jobs.TaskTypeIdempotencySweep, jobhandlers.NewIdempotencySweepHandler(idempotency.NewCleaner(rdb.Client, log), log))

	go func() {
		if err := worker.Run(); err != nil {
			log.Error("job worker stopped", "error", err)
			stop()
		}
	}()

	scheduler := jobs.NewScheduler(redisOpt, log)
	if err := scheduler.RegisterTasks(); err != nil {
		log.Error("failed to register scheduled tasks", "error", err)
		os.Exit(1)
	}
	go scheduler.Run()

	jobManager := jobs.NewManager(redisOpt, log)
	if task, err := jobs.NewIdempotencySweepTask(25 * time.Hour); err == nil {
		// Catch up on records orphaned while the process was down.
		if _, err := jobManager.Enqueue(ctx, task); err != nil {
			log.Warn("failed to enqueue startup idempotency sweep", "error", err)
		}
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	probes := lifecycle.NewProbes(log, func(ctx context.Context) error {
		for name, result := range checker.Check(ctx) {
			if result != "OK" {
				return fmt.Errorf("dependency %s: %s", name, result)
			}
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, result := range results {
			if result != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("/livez", probeHandler(probes.Liveness))
	mux.HandleFunc("/readyz", probeHandler(probes.Readiness))
	mux.Handle("/metrics", promhttp.Handler())

	var opsHandler http.Handler = mux
	opsHandler = middleware.New(log)(opsHandler)
	opsHandler = logger.Middleware(opsHandler)

	srv := graceful.NewServer(log, &http.Server{
		Addr:    cfg.Server.Port,
		Handler: opsHandler,
	}, cfg.Server.ShutdownTimeout)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			log.Error("ops server stopped", "error", err)
			stop()
		}
	}()

	go b.Start()
	probes.MarkReady()
	log.Info("quotes bot started")

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram bot", func(context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register("scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("job worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("job manager", func(context.Context) error {
		return jobManager.Close()
	})
	shutdown.Register("deadline timers", func(context.Context) error {
		timers.Stop()
		return nil
	})
	shutdown.Register("database", func(context.Context) error {
		return db.Close()
	})
	shutdown.Register("redis", func(context.Context) error {
		return rdb.Close()
	})

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", "error", err)
	}

	log.Info("quotes bot stopped")
}

func probeHandler(probe func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := probe(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
