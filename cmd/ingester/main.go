package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"content_ingester/internal/config"
	"content_ingester/internal/dedup"
	"content_ingester/internal/domain"
	"content_ingester/internal/httpapi"
	"content_ingester/internal/httpclient"
	"content_ingester/internal/logging"
	"content_ingester/internal/normalize"
	"content_ingester/internal/publisher"
	"content_ingester/internal/scheduler"
	"content_ingester/internal/service"
	"content_ingester/internal/source/authed"
	"content_ingester/internal/source/feed"
	"content_ingester/internal/source/syndication"
	"content_ingester/internal/storage/bolt"
	"content_ingester/internal/storage/postgres"
	"content_ingester/internal/storage/static"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "perform a single run and exit")
	flag.Parse()

	logger := logging.New("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	logger = logging.New(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("connected to database")

	// Session store
	var sessions authed.SessionStore
	switch cfg.Session.Backend {
	case config.SessionBackendBolt:
		boltStore, err := bolt.Open(cfg.Session.BoltPath)
		if err != nil {
			logger.Error("failed to open session file", "path", cfg.Session.BoltPath, "error", err)
			return 1
		}
		defer boltStore.Close()
		sessions = boltStore
	default:
		sessions = postgres.NewSessionStore(db)
	}

	var sources service.SourceStore = postgres.NewSourceStore(db)
	if cfg.SourcesFrom == config.SourcesFromConfig {
		sources = static.NewSourceStore(cfg.Sources)
	}

	public := syndication.New(httpclient.New(httpclient.Options{
		Timeout:     cfg.Syndication.Timeout,
		UserAgent:   cfg.Syndication.UserAgent,
		NoRedirects: true,
	}), syndication.Config{
		BaseURL:  cfg.Syndication.BaseURL,
		MaxItems: cfg.Syndication.MaxItems,
	}, logger)

	feeds := feed.New(httpclient.New(httpclient.Options{
		Timeout:   cfg.Feeds.Timeout,
		UserAgent: cfg.Feeds.UserAgent,
	}), feed.Config{MaxItems: cfg.Feeds.MaxItems}, logger)

	deps := service.Deps{
		Sources: sources,
		Fetchers: map[domain.SourceKind]service.Fetcher{
			domain.KindPublicSocial: public,
			domain.KindFeedRSS:      feeds,
			domain.KindFeedYouTube:  feeds,
		},
		Normalizer: normalize.New(cfg.Feeds.BodyBudget),
		Upserter:   dedup.New(postgres.NewContentStore(db), cfg.Run.BatchSize, logger),
		States:     postgres.NewSourceStateStore(db),
	}

	if cfg.Social.BaseURL != "" {
		social, err := authed.New(authed.Config{
			BaseURL:      cfg.Social.BaseURL,
			Username:     cfg.Social.Username,
			Password:     cfg.Social.Password,
			Email:        cfg.Social.Email,
			Identity:     cfg.Social.Identity,
			UserAgent:    cfg.Social.UserAgent,
			Timeout:      cfg.Social.Timeout,
			MaxItems:     cfg.Social.MaxItems,
			LoginPath:    cfg.Social.LoginPath,
			ProbePath:    cfg.Social.ProbePath,
			ProfilePath:  cfg.Social.ProfilePath,
			TimelinePath: cfg.Social.TimelinePath,
		}, sessions, logger)
		if err != nil {
			logger.Error("failed to configure social fetcher", "error", err)
			return 1
		}
		deps.Fetchers[domain.KindAuthenticatedSocial] = social
		deps.Session = social
	} else {
		logger.Warn("social.base_url not set, authenticated sources will fail")
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			return 1
		}
		defer rabbitMQ.Close()
		deps.Publisher = rabbitMQ
	}

	timeouts := map[domain.SourceKind]time.Duration{
		domain.KindAuthenticatedSocial: cfg.Social.Timeout,
		domain.KindPublicSocial:        cfg.Syndication.Timeout,
		domain.KindFeedRSS:             cfg.Feeds.Timeout,
		domain.KindFeedYouTube:         cfg.Feeds.Timeout,
	}

	runner := service.NewGuard(service.NewRunService(deps, cfg.Run, timeouts, logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *once {
		return runOnce(ctx, runner, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewRouter(runner, cfg.Server.TriggerToken, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting trigger server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("trigger server error", "error", err)
			cancel()
		}
	}()

	if cfg.Server.ScheduleInterval > 0 {
		sched := scheduler.NewScheduler(runner, cfg.Server.ScheduleInterval, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("trigger server shutdown failed", "error", err)
	}
	logger.Info("content ingester stopped")
	return 0
}

func runOnce(ctx context.Context, runner scheduler.Runner, logger *slog.Logger) int {
	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return 1
	}
	if report.Failed() {
		logger.Error("run fetched nothing", "errors", report.Errors)
		return 1
	}
	return 0
}
