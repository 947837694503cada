// Package config загружает конфигурацию процессов Courier.
//
// Порядок: значения по умолчанию, затем YAML-файл, затем переменные
// окружения. Watch перечитывает файл при изменении.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config — конфигурация всех процессов.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Mail      MailConfig      `yaml:"mail"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig — Postgres.
type DatabaseConfig struct {
	URL              string        `yaml:"url"`
	MaxConns         int32         `yaml:"max_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"` // 0 — без лимита
}

// RabbitMQConfig — брокер для triggered-движка.
type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Prefetch int    `yaml:"prefetch"`
}

// APIConfig — HTTP API.
type APIConfig struct {
	Port string `yaml:"port"`
}

// SchedulerConfig — движок планировщика.
type SchedulerConfig struct {
	Strategy          string        `yaml:"strategy"` // polling | triggered
	PollInterval      time.Duration `yaml:"poll_interval"`
	BatchLimit        int           `yaml:"batch_limit"`
	MaxAttempts       int           `yaml:"max_attempts"`
	ExecTimeout       time.Duration `yaml:"exec_timeout"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StoreTimeout      time.Duration `yaml:"store_timeout"`
	Port              string        `yaml:"port"` // /healthz, /metrics
}

// ScheduleConfig — правила создания записей.
type ScheduleConfig struct {
	MinLead time.Duration `yaml:"min_lead"`
}

// MailConfig — SMTP.
type MailConfig struct {
	SMTPAddr   string        `yaml:"smtp_addr"`
	From       string        `yaml:"from"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	RatePerSec int           `yaml:"rate_per_sec"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LogConfig — логирование.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{MaxConns: 10, StatementTimeout: 15 * time.Second},
		RabbitMQ: RabbitMQConfig{Prefetch: 10},
		API:      APIConfig{Port: "8080"},
		Scheduler: SchedulerConfig{
			Strategy:          "polling",
			PollInterval:      time.Minute,
			BatchLimit:        100,
			MaxAttempts:       3,
			ExecTimeout:       30 * time.Second,
			RetryDelay:        30 * time.Second,
			ReconcileInterval: 5 * time.Minute,
			StoreTimeout:      10 * time.Second,
			Port:              "8081",
		},
		Schedule: ScheduleConfig{MinLead: 60 * time.Second},
		Mail: MailConfig{
			From:    "courier@localhost",
			Timeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "INFO", Format: "json"},
	}
}

// Load читает конфигурацию. Пустой path — только defaults и окружение.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode разбирает YAML поверх cfg. Неизвестные ключи — ошибка.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv применяет переменные окружения поверх файла.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"DB_URL", &c.Database.URL},
		{"RABBITMQ_URL", &c.RabbitMQ.URL},
		{"API_PORT", &c.API.Port},
		{"SCHED_PORT", &c.Scheduler.Port},
		{"SCHEDULER_STRATEGY", &c.Scheduler.Strategy},
		{"SMTP_ADDR", &c.Mail.SMTPAddr},
		{"SMTP_FROM", &c.Mail.From},
		{"SMTP_USERNAME", &c.Mail.Username},
		{"SMTP_PASSWORD", &c.Mail.Password},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok && v != "" {
			*s.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SCHEDULER_POLL_INTERVAL", &c.Scheduler.PollInterval},
		{"SCHEDULER_EXEC_TIMEOUT", &c.Scheduler.ExecTimeout},
		{"SCHEDULER_RETRY_DELAY", &c.Scheduler.RetryDelay},
		{"SCHEDULER_STORE_TIMEOUT", &c.Scheduler.StoreTimeout},
		{"DB_STATEMENT_TIMEOUT", &c.Database.StatementTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SCHEDULER_BATCH_LIMIT", &c.Scheduler.BatchLimit},
		{"SCHEDULER_MAX_ATTEMPTS", &c.Scheduler.MaxAttempts},
	}
	for _, n := range ints {
		v, ok := lookup(n.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %s: %w", n.key, err)
		}
		*n.dst = parsed
	}

	return nil
}

// Validate проверяет значения.
func (c *Config) Validate() error {
	var errs []error

	switch c.Scheduler.Strategy {
	case "polling", "triggered":
	default:
		errs = append(errs, fmt.Errorf("scheduler.strategy: unknown %q", c.Scheduler.Strategy))
	}
	if c.Scheduler.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("scheduler.poll_interval: must be at least 1s"))
	}
	if c.Scheduler.BatchLimit <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.batch_limit: must be positive"))
	}
	if c.Scheduler.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.max_attempts: must be positive"))
	}
	if c.Scheduler.ExecTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.exec_timeout: must be positive"))
	}
	if c.Scheduler.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.retry_delay: must be positive"))
	}
	if c.Scheduler.ReconcileInterval <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.reconcile_interval: must be positive"))
	}
	if c.Scheduler.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.store_timeout: must be positive"))
	}
	if c.Database.StatementTimeout < 0 {
		errs = append(errs, fmt.Errorf("database.statement_timeout: must not be negative"))
	}
	if c.Schedule.MinLead < 0 {
		errs = append(errs, fmt.Errorf("schedule.min_lead: must not be negative"))
	}
	if c.Mail.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("mail.rate_per_sec: must not be negative"))
	}

	return errors.Join(errs...)
}
