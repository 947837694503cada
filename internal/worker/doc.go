// Package worker выполняет записи расписания.
//
// # Обзор
//
// Worker — stateless часть планировщика. Движки (internal/scheduler)
// решают, когда запись пора выполнять, а worker выполняет её:
//
//   - Захват pending-записи (row lock) внутри транзакции
//   - Выбор executor'а по типу контента
//   - Выполнение с таймаутом
//   - Перевод записи в executed в той же транзакции
//   - Ограниченные повторы при временных ошибках
//
// Несколько экземпляров могут выполнять одну и ту же запись параллельно:
// результат зафиксирует ровно один.
//
// # Ключевые компоненты
//
// ## Runner
//
// Выполняет одну запись. Создаётся через NewRunner(cfg RunnerConfig)
// и вызывается движком для каждой наступившей записи:
//
//	runner := worker.NewRunner(worker.RunnerConfig{
//	    Schedules: scheduleRepo,
//	    Tx:        transactor,
//	    Registry:  registry,
//	    Logger:    logger,
//	})
//
//	res, err := runner.Run(ctx, id)
//
// ## Executor
//
// Интерфейс для выполнения действия над контентом:
//
//	type Executor interface {
//	    Execute(ctx context.Context, rec *domain.ScheduleRecord) (*ExecutionResult, error)
//	}
//
// Реализации:
//   - PostExecutor — публикация поста
//   - NotificationExecutor — отправка email через mail.Transport
//   - CouponExecutor — раздача купона когорте через fanout
//
// ## Registry
//
// Реестр executor'ов по типу контента. NewRegistry(cfg) регистрирует
// executor'ы, для которых переданы зависимости.
//
// # Выполнение записи
//
//  1. WithinTx: ClaimPending — row lock, запись должна быть pending
//  2. Проверка IsDue: рано — откат, исход not_due
//  3. Registry.Get по content_type
//  4. Execute с таймаутом ExecTimeout
//  5. Успех → TransitionTo(executed), коммит вместе с изменениями executor'а
//  6. Ошибка → откат; постоянная ошибка → failed, временная → attempts+1
//
// # Ошибки
//
// Постоянные (IsPermanent): ErrContentNotFound, ErrMissingRecipient,
// ErrUnknownContentType, domain.ErrInvalidTarget. Запись сразу failed.
//
// Остальные (таймаут, хранилище) временные: запись остаётся pending,
// пока число попыток не достигнет MaxAttempts.
//
// Ошибка отправки письма ошибкой выполнения не считается: она
// фиксируется в самом уведомлении (retry_count, last_error).
package worker
