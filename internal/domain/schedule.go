package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMinLead — минимальный запас времени до scheduled_time при создании.
// Защищает от рассинхронизации часов и гонок валидации.
const DefaultMinLead = 60 * time.Second

// ContentType — тип контента, над которым выполняется отложенное действие.
type ContentType string

const (
	// ContentTypePost — публикация поста.
	ContentTypePost ContentType = "post"

	// ContentTypeNotification — отправка email-уведомления.
	ContentTypeNotification ContentType = "notification"

	// ContentTypeCoupon — раздача купона когорте участников.
	ContentTypeCoupon ContentType = "coupon"
)

// Valid возвращает true для известных типов контента.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypePost, ContentTypeNotification, ContentTypeCoupon:
		return true
	default:
		return false
	}
}

// ScheduleRecord — единица отложенной работы.
//
// Запись создаётся в статусе pending и переводится движком
// в executed, failed или cancelled. После этого запись неизменяема
// и хранится как журнал аудита.
type ScheduleRecord struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ContentType — тип контента (post, notification, coupon).
	ContentType ContentType `json:"content_type"`

	// ContentID — ссылка на объект домена. Планировщику не принадлежит.
	ContentID int64 `json:"content_id"`

	// ActionParameter — параметр исполнителя.
	// Для coupon это дескриптор когорты: "all" или id уровня.
	ActionParameter string `json:"action_parameter,omitempty"`

	// ScheduledTime — момент, когда действие должно выполниться.
	// Не меняется после создания.
	ScheduledTime time.Time `json:"scheduled_time"`

	// Status — текущий статус.
	Status ScheduleStatus `json:"status"`

	// Attempts — количество неудачных попыток выполнения.
	Attempts int `json:"attempts"`

	// CreatedBy — id пользователя, создавшего запись.
	CreatedBy int64 `json:"created_by"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// ExecutedAt — время перехода в executed или failed.
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	// ErrorMessage — причина failed. Для остальных статусов пусто.
	ErrorMessage string `json:"error_message,omitempty"`

	// LastError — ошибка последней неудачной попытки.
	LastError string `json:"last_error,omitempty"`
}

// NewScheduleRecord создаёт pending-запись после проверки входных данных.
//
// Возвращает *ValidationError, если тип контента неизвестен,
// content_id не положительный или scheduledTime ближе чем now+minLead.
func NewScheduleRecord(contentType ContentType, contentID int64, scheduledTime time.Time,
	createdBy int64, actionParameter string, now time.Time, minLead time.Duration,
) (*ScheduleRecord, error) {
	if !contentType.Valid() {
		return nil, &ValidationError{Field: "content_type", Message: "unknown content type " + string(contentType)}
	}
	if contentID <= 0 {
		return nil, &ValidationError{Field: "content_id", Message: "must be positive"}
	}
	if !scheduledTime.After(now.Add(minLead)) {
		return nil, &ValidationError{
			Field:   "scheduled_time",
			Message: "must be at least " + minLead.String() + " in the future",
		}
	}
	if contentType == ContentTypeCoupon {
		if _, err := ParseTarget(actionParameter); err != nil {
			return nil, &ValidationError{Field: "action_parameter", Message: err.Error()}
		}
	}

	return &ScheduleRecord{
		ID:              uuid.New(),
		ContentType:     contentType,
		ContentID:       contentID,
		ActionParameter: actionParameter,
		ScheduledTime:   scheduledTime.UTC(),
		Status:          ScheduleStatusPending,
		CreatedBy:       createdBy,
		CreatedAt:       now.UTC(),
	}, nil
}

// IsDue проверяет, пора ли выполнять запись.
func (r *ScheduleRecord) IsDue(now time.Time) bool {
	if r.Status != ScheduleStatusPending {
		return false
	}
	return !now.Before(r.ScheduledTime)
}
