// Courier API — HTTP API планирования.
//
// В triggered-режиме новые записи сразу публикуются в отложенную очередь
// RabbitMQ. В polling-режиме их подберёт ближайший проход планировщика.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Courier/internal/api"
	"github.com/shaiso/Courier/internal/config"
	"github.com/shaiso/Courier/internal/mq"
	"github.com/shaiso/Courier/internal/repo"
	"github.com/shaiso/Courier/internal/schedule"
	"github.com/shaiso/Courier/internal/scheduler"
	"github.com/shaiso/Courier/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "courier-api:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(telemetry.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting courier-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, repo.PoolConfig{
		URL:              cfg.Database.URL,
		MaxConns:         cfg.Database.MaxConns,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to migrate", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	scheduleRepo := repo.NewScheduleRepo(pool)

	var enqueuer schedule.Enqueuer
	if cfg.Scheduler.Strategy == string(scheduler.StrategyTriggered) {
		url := cfg.RabbitMQ.URL
		if url == "" {
			url = mq.DefaultURL()
		}
		conn, err := mq.NewConnection(url, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}

		// Движок только публикует задания; выполняет их courier-scheduler.
		engine, err := scheduler.NewEngine(scheduler.Config{
			Strategy:   scheduler.StrategyTriggered,
			Schedules:  scheduleRepo,
			Queue:      mq.NewScheduleQueue(conn, logger, cfg.RabbitMQ.Prefetch),
			RetryDelay: cfg.Scheduler.RetryDelay,
			Logger:     logger,
		})
		if err != nil {
			logger.Error("failed to create engine", "error", err)
			os.Exit(1)
		}
		enqueuer = engine
	}

	svc := schedule.New(schedule.Config{
		Store:        scheduleRepo,
		Enqueuer:     enqueuer,
		Lookup:       repo.NewContentLookup(pool),
		Tx:           repo.NewTransactor(pool),
		MinLead:      cfg.Schedule.MinLead,
		StoreTimeout: cfg.Scheduler.StoreTimeout,
		Logger:       logger,
	})

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Schedules: svc,
		Coupons:   repo.NewCouponRepo(pool),
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":" + cfg.API.Port

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
