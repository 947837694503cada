package domain

// ScheduleStatus — статус записи расписания.
//
// Жизненный цикл:
//
//	pending → executed
//	        ↘ failed
//	        ↘ cancelled
//
// Из финальных статусов переходов нет.
type ScheduleStatus string

const (
	// ScheduleStatusPending — ожидает выполнения.
	ScheduleStatusPending ScheduleStatus = "pending"

	// ScheduleStatusExecuted — исполнитель отработал успешно.
	ScheduleStatusExecuted ScheduleStatus = "executed"

	// ScheduleStatusCancelled — отменено до выполнения.
	ScheduleStatusCancelled ScheduleStatus = "cancelled"

	// ScheduleStatusFailed — выполнение завершилось ошибкой.
	ScheduleStatusFailed ScheduleStatus = "failed"
)

// scheduleTransitions — допустимые переходы.
var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleStatusPending: {ScheduleStatusExecuted, ScheduleStatusFailed, ScheduleStatusCancelled},
}

// IsTerminal возвращает true, если статус финальный.
func (s ScheduleStatus) IsTerminal() bool {
	switch s {
	case ScheduleStatusExecuted, ScheduleStatusCancelled, ScheduleStatusFailed:
		return true
	default:
		return false
	}
}

// Valid возвращает true для известных статусов.
func (s ScheduleStatus) Valid() bool {
	return s == ScheduleStatusPending || s.IsTerminal()
}

// CanTransition проверяет, допустим ли переход s → to.
func (s ScheduleStatus) CanTransition(to ScheduleStatus) bool {
	for _, next := range scheduleTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// PostStatus — статус поста.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// NotificationStatus — статус email-уведомления.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// GrantStatus — статус выданного купона.
// Погашение и истечение выполняются вне планировщика.
type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusUsed    GrantStatus = "used"
	GrantStatusExpired GrantStatus = "expired"
)
