package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/entretech/zapnotify/internal/entity"
)

// LogActions são as ações explícitas do usuário sobre entradas do log
type LogActions struct {
	Logs     entity.MessageLogRepository
	Producer QueueProducer
	Sender   *MessageSender

	QueueEnabled bool
	MaxRetries   int
}

func NewLogActions(logs entity.MessageLogRepository, producer QueueProducer, sender *MessageSender, queueEnabled bool, maxRetries int) *LogActions {
	return &LogActions{
		Logs:         logs,
		Producer:     producer,
		Sender:       sender,
		QueueEnabled: queueEnabled,
		MaxRetries:   maxRetries,
	}
}

// RetrySend re-enfileira uma entrada Failed ou Cancelled. Ignora a janela
// de backoff (ação explícita vale uma vez), mas não o teto de tentativas.
// retry_count é preservado, nunca zerado.
func (a *LogActions) RetrySend(ctx context.Context, logID string) error {
	entry, err := a.Logs.FindByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("entrada não encontrada: %w", err)
	}

	if entry.Status != entity.StatusFailed && entry.Status != entity.StatusCancelled {
		return fmt.Errorf("só mensagens Failed ou Cancelled podem ser reenviadas (status atual: %s)", entry.Status)
	}

	// o teto vale também para Cancelled: cancelar não devolve tentativas
	if entry.RetryCount >= a.MaxRetries {
		return fmt.Errorf("limite de %d tentativas atingido", a.MaxRetries)
	}

	applied, err := a.Logs.RequeueForRetry(ctx, logID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrStateConflict
	}

	log.Printf("🔁 Retry manual da mensagem %s (tentativa %d)", logID, entry.RetryCount+1)

	if a.QueueEnabled {
		if err := a.Producer.PublishDispatch(ctx, logID); err == nil {
			return nil
		}
	}
	return a.Sender.Send(ctx, logID)
}

// CancelMessage cancela uma entrada que ainda não entrou em Sending.
// Depois disso o envio está comprometido e cancelar é erro de estado.
func (a *LogActions) CancelMessage(ctx context.Context, logID string) error {
	entry, err := a.Logs.FindByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("entrada não encontrada: %w", err)
	}

	var applied bool
	switch entry.Status {
	case entity.StatusPending, entity.StatusQueued:
		applied, err = a.Logs.UpdateStatusIf(ctx, logID, entry.Status, entity.StatusCancelled)
	default:
		return fmt.Errorf("só mensagens Pending ou Queued podem ser canceladas (status atual: %s)", entry.Status)
	}

	if err != nil {
		return err
	}
	if !applied {
		return ErrStateConflict
	}

	log.Printf("🚫 Mensagem %s cancelada", logID)
	return nil
}
