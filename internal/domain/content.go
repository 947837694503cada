package domain

import (
	"strings"
	"time"
)

// Post — статья бэк-офиса. Планировщик только публикует её.
type Post struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Status      PostStatus `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// IsPublished возвращает true, если пост уже опубликован.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// Notification — email-уведомление с собственным счётчиком попыток.
type Notification struct {
	ID         int64              `json:"id"`
	Recipient  string             `json:"recipient"`
	Subject    string             `json:"subject"`
	Body       string             `json:"body"`
	Status     NotificationStatus `json:"status"`
	SentAt     *time.Time         `json:"sent_at,omitempty"`
	RetryCount int                `json:"retry_count"`
	LastError  string             `json:"last_error,omitempty"`
}

// HasRecipient возвращает true, если адрес получателя задан.
func (n *Notification) HasRecipient() bool {
	return strings.TrimSpace(n.Recipient) != ""
}
