// Package scheduler реализует движки, которые доводят наступившие записи
// расписания до исполнения.
//
// Структура:
//   - scheduler.go — интерфейс Engine, конфигурация и фабрика NewEngine
//   - polling.go   — проходы по БД по cron (@every poll_interval)
//   - triggered.go — отложенные задания RabbitMQ и периодическая сверка
//   - cron.go      — разбор расписаний и адаптер логгера для cron
//
// Оба движка выполняют запись через worker.Runner: захват, исполнитель и
// переход в executed идут одной транзакцией, поэтому запись не выполняется
// дважды ни при повторной доставке, ни при гонке с отменой.
//
// Использование:
//
//	engine, err := scheduler.NewEngine(scheduler.Config{
//	    Strategy:  scheduler.StrategyPolling,
//	    Runner:    runner,
//	    Schedules: scheduleRepo,
//	    Leader:    repo.NewLeaderLock(pool, repo.SchedulerLockKey), // опционально
//	    Logger:    logger,
//	})
//	if err := engine.Start(ctx); err != nil { ... }
//	defer engine.Stop()
//
// Leader election:
//
// Проходы по БД (polling sweep, triggered reconcile) выполняет только
// держатель pg advisory lock. Consumer triggered-движка работает на всех
// экземплярах.
package scheduler
