package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// specParser — парсер расписаний polling-движка: стандартные cron-выражения
// и дескрипторы (@every 1m, @hourly).
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// minPollInterval — cron не тикает чаще раза в секунду.
const minPollInterval = time.Second

// EverySpec возвращает дескриптор @every для интервала опроса.
func EverySpec(interval time.Duration) string {
	return "@every " + interval.String()
}

// ValidatePollInterval проверяет интервал опроса.
func ValidatePollInterval(interval time.Duration) error {
	if interval < minPollInterval {
		return fmt.Errorf("poll interval %s is below %s", interval, minPollInterval)
	}
	return ValidateSpec(EverySpec(interval))
}

// ValidateSpec проверяет cron-выражение или дескриптор.
func ValidateSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule spec %q: %w", spec, err)
	}
	return nil
}

// cronLogger — адаптер slog для cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
