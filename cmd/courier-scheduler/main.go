// Courier scheduler — демон, выполняющий наступившие записи расписания.
//
// Стратегия (polling или triggered) выбирается конфигурацией.
// Polling-проходы делает только лидер (pg advisory lock); в triggered-режиме
// consumer работает на каждом экземпляре, сверку делает лидер.
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

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Courier/internal/config"
	"github.com/shaiso/Courier/internal/fanout"
	"github.com/shaiso/Courier/internal/mail"
	"github.com/shaiso/Courier/internal/mq"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/scheduler"
	"github.com/shaiso/Courier/internal/target"
	"github.com/shaiso/Courier/internal/telemetry"
	"github.com/shaiso/Courier/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "courier-scheduler:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := telemetry.SetupLogger(telemetry.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting courier-scheduler", "strategy", cfg.Scheduler.Strategy)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfig{
		URL:              cfg.Database.URL,
		MaxConns:         cfg.Database.MaxConns,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	if err := repo.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("connected to database")

	transport, err := newTransport(cfg.Mail, logger)
	if err != nil {
		return err
	}

	runner := newRunner(pool, transport, cfg.Scheduler, logger)

	leader := repo.NewLeaderLock(pool, repo.SchedulerLockKey)
	defer leader.Release(context.Background())

	strategy, err := scheduler.ParseStrategy(cfg.Scheduler.Strategy)
	if err != nil {
		return err
	}

	engineCfg := scheduler.Config{
		Strategy:          strategy,
		Runner:            runner,
		Schedules:         repo.NewScheduleRepo(pool),
		Leader:            leader,
		PollInterval:      cfg.Scheduler.PollInterval,
		BatchLimit:        cfg.Scheduler.BatchLimit,
		RetryDelay:        cfg.Scheduler.RetryDelay,
		ReconcileInterval: cfg.Scheduler.ReconcileInterval,
		StoreTimeout:      cfg.Scheduler.StoreTimeout,
		Logger:            logger,
	}

	if strategy == scheduler.StrategyTriggered {
		url := cfg.RabbitMQ.URL
		if url == "" {
			url = mq.DefaultURL()
		}
		conn, err := mq.NewConnection(url, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()
		if err := mq.SetupTopology(ctx, conn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}
		engineCfg.Queue = mq.NewScheduleQueue(conn, logger, cfg.RabbitMQ.Prefetch)
	}

	engine, err := scheduler.NewEngine(engineCfg)
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              ":" + cfg.Scheduler.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, logger, func(next *config.Config) {
				applyReload(engine, runner, next, logger)
			})
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		engine.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify failed", "error", err)
	} else if ok {
		logger.Debug("sd_notify ready sent")
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}

func newTransport(cfg config.MailConfig, logger *slog.Logger) (mail.Transport, error) {
	if cfg.SMTPAddr == "" {
		logger.Warn("SMTP_ADDR is not set, notifications are written to the log")
		return &mail.LogTransport{Logger: logger}, nil
	}
	t, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Addr:       cfg.SMTPAddr,
		From:       cfg.From,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Timeout:    cfg.Timeout,
		RatePerSec: cfg.RatePerSec,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp transport: %w", err)
	}
	return t, nil
}

func newRunner(pool *pgxpool.Pool, transport mail.Transport, cfg config.SchedulerConfig, logger *slog.Logger) *worker.Runner {
	tx := repo.NewTransactor(pool)

	dispatcher := fanout.New(fanout.Config{
		Coupons:  repo.NewCouponRepo(pool),
		Resolver: target.NewResolver(repo.NewMemberRepo(pool)),
		Tx:       tx,
		Logger:   logger,
	})

	registry := worker.NewRegistry(worker.RegistryConfig{
		Posts:         repo.NewPostRepo(pool),
		Notifications: repo.NewNotificationRepo(pool),
		Transport:     transport,
		Coupons:       dispatcher,
		Logger:        logger,
	})

	return worker.NewRunner(worker.RunnerConfig{
		Schedules:   repo.NewScheduleRepo(pool),
		Tx:          tx,
		Registry:    registry,
		MaxAttempts:  cfg.MaxAttempts,
		ExecTimeout:  cfg.ExecTimeout,
		StoreTimeout: cfg.StoreTimeout,
		Logger:       logger,
	})
}

// applyReload применяет параметры, которые можно менять без рестарта.
func applyReload(engine scheduler.Engine, runner *worker.Runner, next *config.Config, logger *slog.Logger) {
	if b, ok := engine.(interface{ SetBatchLimit(int) }); ok {
		b.SetBatchLimit(next.Scheduler.BatchLimit)
	}
	runner.SetMaxAttempts(next.Scheduler.MaxAttempts)

	logger.Info("scheduler settings reloaded",
		"batch_limit", next.Scheduler.BatchLimit,
		"max_attempts", next.Scheduler.MaxAttempts,
	)
	if next.Scheduler.Strategy != engine.Name() {
		logger.Warn("strategy change requires restart", "running", engine.Name(), "configured", next.Scheduler.Strategy)
	}
}
