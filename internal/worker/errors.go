package worker

import (
	"errors"

	"github.com/shaiso/Courier/internal/domain"
)

// Ошибки выполнения.
var (
	// ErrContentNotFound — объект контента исчез между планированием и выполнением.
	ErrContentNotFound = errors.New("content not found")

	// ErrMissingRecipient — у уведомления не задан адрес.
	ErrMissingRecipient = errors.New("notification has no recipient")

	// ErrUnknownContentType — нет executor'а для типа контента.
	ErrUnknownContentType = errors.New("unknown content type")

	// ErrExecutionTimeout — исполнитель не уложился в таймаут.
	ErrExecutionTimeout = errors.New("execution timeout")
)

// IsPermanent сообщает, что повтор не поможет: запись сразу переводится в failed.
// Остальные ошибки расходуют попытку.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrContentNotFound) ||
		errors.Is(err, ErrMissingRecipient) ||
		errors.Is(err, ErrUnknownContentType) ||
		errors.Is(err, domain.ErrInvalidTarget)
}
