package schedule

import "errors"

// Ошибки сервиса расписаний.
var (
	// ErrContentNotFound — объект контента не существует на момент планирования.
	ErrContentNotFound = errors.New("content not found")

	// ErrNotPending — запись уже выполнена, отменена или провалена.
	ErrNotPending = errors.New("schedule record is not pending")
)
