package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget — дескриптор когорты не разбирается, ссылается на
// несуществующий или неактивный уровень, либо купона больше нет.
var ErrInvalidTarget = errors.New("invalid target")

// ValidationError — ошибка входных данных при создании записи.
// Ничего не сохраняется.
type ValidationError struct {
	Field   string
	Message string

	// Err — уточняющая причина (например, schedule.ErrContentNotFound).
	Err error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation проверяет, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
