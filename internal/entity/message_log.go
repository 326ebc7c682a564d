package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status do ciclo de vida de uma tentativa de envio.
// Pending → Queued → Sending → {Sent | Failed}
// Sent → Delivered → Read (via webhook do provedor)
// Pending/Queued → Cancelled ; Failed/Cancelled → Queued (retry explícito)
type MessageStatus string

const (
	StatusPending   MessageStatus = "Pending"
	StatusQueued    MessageStatus = "Queued"
	StatusSending   MessageStatus = "Sending"
	StatusSent      MessageStatus = "Sent"
	StatusDelivered MessageStatus = "Delivered"
	StatusRead      MessageStatus = "Read"
	StatusFailed    MessageStatus = "Failed"
	StatusCancelled MessageStatus = "Cancelled"
)

// MessageLogEntry é o registro durável de um envio e seu resultado
type MessageLogEntry struct {
	ID             string        `json:"id"`
	Phone          string        `json:"phone"`           // como veio do documento
	FormattedPhone string        `json:"formatted_phone"` // normalizado, pronto pro transporte
	Message        string        `json:"message"`
	MediaURL       string        `json:"media_url,omitempty"`
	Caption        string        `json:"caption,omitempty"`

	ReferenceDoctype string `json:"reference_doctype,omitempty"`
	ReferenceName    string `json:"reference_name,omitempty"`
	NotificationRule string `json:"notification_rule,omitempty"` // back-link fraco, só consulta
	RecipientName    string `json:"recipient_name,omitempty"`

	Status       MessageStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	RetryCount   int           `json:"retry_count"`

	// ID da mensagem devolvido pelo provedor (correlação de webhooks)
	ProviderMessageID string `json:"provider_message_id,omitempty"`

	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// MessageStats alimenta o dashboard
type MessageStats struct {
	Total    int                   `json:"total"`
	Sent     int                   `json:"sent"`
	Failed   int                   `json:"failed"`
	Pending  int                   `json:"pending"`
	ByStatus map[MessageStatus]int `json:"by_status"`
}

type MessageLogRepository interface {
	Create(ctx context.Context, log *MessageLogEntry) error
	FindByID(ctx context.Context, id string) (*MessageLogEntry, error)
	FindByProviderMessageID(ctx context.Context, providerID string) (*MessageLogEntry, error)

	// UpdateStatusIf aplica a transição somente se o registro ainda estiver
	// no estado esperado (compare-and-swap). Retorna false quando outro
	// worker chegou primeiro.
	UpdateStatusIf(ctx context.Context, id string, from, to MessageStatus) (bool, error)

	// MarkSent/MarkFailed também são guardados por Sending
	MarkSent(ctx context.Context, id, providerMessageID string) (bool, error)
	MarkFailed(ctx context.Context, id, errorMessage string, incrementRetry bool) (bool, error)

	// RequeueForRetry: Failed/Cancelled → Queued, preservando retry_count
	RequeueForRetry(ctx context.Context, id string) (bool, error)

	// Seleções dos workers
	FindRetryable(ctx context.Context, maxRetries int, baseInterval, maxInterval time.Duration, limit int) ([]MessageLogEntry, error)
	FindStuckSending(ctx context.Context, olderThan time.Duration, limit int) ([]MessageLogEntry, error)
	FindDueScheduled(ctx context.Context, limit int) ([]MessageLogEntry, error)
	// FindStaleQueued: Pending/Queued sem agendamento paradas há tempo
	// demais (processo morreu antes de publicar na fila)
	FindStaleQueued(ctx context.Context, olderThan time.Duration, limit int) ([]MessageLogEntry, error)

	ExistsForRule(ctx context.Context, ruleID, doctype, docname string) (bool, error)
	Stats(ctx context.Context, since time.Time) (*MessageStats, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

func NewMessageLogEntry(phone, formattedPhone, message string) *MessageLogEntry {
	now := time.Now()
	return &MessageLogEntry{
		ID:             uuid.New().String(),
		Phone:          phone,
		FormattedPhone: formattedPhone,
		Message:        message,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsTerminal diz se o status encerra a tentativa atual
func (s MessageStatus) IsTerminal() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
