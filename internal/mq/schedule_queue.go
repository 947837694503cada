package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ScheduleQueue — очередь отложенных заданий расписания.
// Реализует scheduler.JobQueue поверх Publisher и Consumer.
type ScheduleQueue struct {
	conn      *Connection
	publisher *Publisher
	logger    *slog.Logger
	prefetch  int
}

// NewScheduleQueue создаёт ScheduleQueue.
func NewScheduleQueue(conn *Connection, logger *slog.Logger, prefetch int) *ScheduleQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleQueue{
		conn:      conn,
		publisher: NewPublisher(conn, logger),
		logger:    logger,
		prefetch:  prefetch,
	}
}

// PublishDue ставит задание на запись id через delay.
func (q *ScheduleQueue) PublishDue(ctx context.Context, id uuid.UUID, delay time.Duration) error {
	return q.publisher.PublishScheduleDue(ctx, id, delay)
}

// ConsumeDue вызывает handler для каждого наступившего задания до отмены ctx.
// Сообщение без schedule_id уходит в DLQ.
func (q *ScheduleQueue) ConsumeDue(ctx context.Context, handler func(ctx context.Context, id uuid.UUID) error) error {
	consumer := NewConsumer(q.conn, q.logger, ConsumerConfig{
		Queue:    string(QueueSchedulesDue),
		Prefetch: q.prefetch,
		Handler: func(ctx context.Context, d *Delivery) error {
			if d.Message.Type != MessageTypeScheduleDue {
				return fmt.Errorf("%w: unexpected type %q", ErrReject, d.Message.Type)
			}
			payload, err := ParsePayload[ScheduleDuePayload](&d.Message)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrReject, err)
			}
			if payload.ScheduleID == uuid.Nil {
				return fmt.Errorf("%w: empty schedule_id", ErrReject)
			}
			return handler(ctx, payload.ScheduleID)
		},
	})
	return consumer.Start(ctx)
}
