package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/stationinbox/internal/config"
	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/lock/redislock"
	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/mail"
	"github.com/JonMunkholm/stationinbox/internal/metrics"
	"github.com/JonMunkholm/stationinbox/internal/monitor"
	"github.com/JonMunkholm/stationinbox/internal/social/mastodon"
	"github.com/JonMunkholm/stationinbox/internal/storage"
	"github.com/JonMunkholm/stationinbox/internal/storage/s3store"
	"github.com/JonMunkholm/stationinbox/internal/store/postgres"
	"github.com/JonMunkholm/stationinbox/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	metrics.Register()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"storage_backend", cfg.Storage.Backend,
		"storage_max_concurrent", cfg.Storage.MaxConcurrent,
		"lock_backend", cfg.Lock.Backend,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	db := postgres.New(pool)
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database schema", "error", err)
			os.Exit(1)
		}
		slog.Info("database schema up to date")
	}

	photoStorage, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open photo storage", "error", err)
		os.Exit(1)
	}
	limited := core.NewLimitedStorage(photoStorage,
		core.NewStorageLimiter(cfg.Storage.MaxConcurrent, cfg.Storage.MaxWaitTime))

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up entry locking", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	monitors := monitor.Multi{monitor.LogMonitor{}}
	var amqpMonitor *monitor.AMQPMonitor
	if cfg.Monitor.AMQPURL != "" {
		amqpMonitor, err = monitor.DialAMQP(cfg.Monitor.AMQPURL, cfg.Monitor.Exchange, cfg.Monitor.RoutingKey)
		if err != nil {
			slog.Error("failed to connect monitor", "error", err)
			os.Exit(1)
		}
		monitors = append(monitors, amqpMonitor)
		slog.Info("publishing operator messages", "exchange", cfg.Monitor.Exchange)
	}

	bot := mastodon.New(mastodon.Config{
		InstanceURL: cfg.Mastodon.InstanceURL,
		Token:       cfg.Mastodon.Token,
		StationURL:  cfg.Mastodon.StationURL,
	}, nil)
	if !cfg.MastodonEnabled() {
		slog.Info("mastodon bot disabled")
	}

	deps := core.Deps{
		Inbox:     db.Inbox(),
		Stations:  db.Stations(),
		Photos:    db.Photos(),
		Users:     db.Users(),
		Countries: db.Countries(),
		Storage:   limited,
		Monitor:   monitors,
		Social:    bot,
		Locker:    locker,
	}
	if cfg.Mail.SendGridAPIKey != "" {
		deps.Mailer = mail.New(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	} else {
		slog.Info("review mails disabled, no SendGrid API key")
	}

	service, err := core.NewService(deps, core.Options{
		InboxBaseURL:   cfg.Inbox.BaseURL,
		NearbyRadiusKm: cfg.Inbox.NearbyRadiusKm,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, pool.Ping)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	jobsDone := make(chan struct{})
	go func() {
		defer close(jobsDone)
		service.StartScheduler(jobCtx, core.JobsConfig{
			NotifyInterval:  cfg.Jobs.NotifyInterval,
			CleanupInterval: cfg.Jobs.CleanupInterval,
			KeepCopies:      cfg.Storage.KeepCopies(),
		})
	}()

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for storage work of finished requests
		status := limited.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for storage operations to complete", "active", status.Active)
			if err := limited.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("storage operations did not complete in time", "error", err)
			} else {
				slog.Info("all storage operations completed")
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
	} else {
		slog.Error("server stopped", "error", err)
		cancelJobs()
	}

	<-jobsDone
	bot.Close()
	if amqpMonitor != nil {
		if err := amqpMonitor.Close(); err != nil {
			slog.Warn("closing monitor", "error", err)
		}
	}
	slog.Info("shutdown complete")
}

func openStorage(ctx context.Context, cfg *config.Config) (core.PhotoStorage, error) {
	switch cfg.Storage.Backend {
	case "s3":
		slog.Info("using S3 photo storage", "bucket", cfg.Storage.S3Bucket, "prefix", cfg.Storage.S3Prefix)
		return s3store.New(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Region, cfg.Storage.S3Prefix, cfg.Storage.MaxUploadSize)
	default:
		slog.Info("using file photo storage", "work_dir", cfg.Storage.WorkDir)
		return storage.NewFileStorage(cfg.Storage.WorkDir, cfg.Storage.MaxUploadSize)
	}
}

func openLocker(ctx context.Context, cfg *config.Config) (core.EntryLocker, func(), error) {
	if cfg.Lock.Backend != "redis" {
		return core.NewKeyedLocker(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	slog.Info("using redis entry locks", "addr", cfg.Lock.RedisAddr)
	return redislock.New(client, cfg.Lock.TTL), func() { client.Close() }, nil
}
