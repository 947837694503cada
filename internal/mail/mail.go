// Package mail — транспорт email-уведомлений.
//
// Транспорт — внешний участник: любая ошибка Send считается неудачной
// доставкой. Отправка не входит в транзакцию выполнения.
package mail

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoRecipient — у письма нет адреса получателя.
var ErrNoRecipient = errors.New("mail: no recipient")

// Message — письмо.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport отправляет письма.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport пишет письма в лог вместо отправки. Для разработки.
type LogTransport struct {
	Logger *slog.Logger
}

// Send логирует письмо.
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email (log transport)", "to", msg.To, "subject", msg.Subject)
	return nil
}
