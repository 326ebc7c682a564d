package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/entretech/zapnotify/internal/entity"
)

// MessageSender executa o passo de envio de uma entrada do log:
// Queued/Pending → Sending → {Sent | Failed}, tudo com transição guardada
// pelo estado atual. Dois workers disputando a mesma entrada: um ganha,
// o outro observa o no-op.
type MessageSender struct {
	Logs      entity.MessageLogRepository
	Transport Transport
	Alerts    AlertService

	MaxRetries int
}

func NewMessageSender(logs entity.MessageLogRepository, transport Transport, alerts AlertService, maxRetries int) *MessageSender {
	return &MessageSender{
		Logs:       logs,
		Transport:  transport,
		Alerts:     alerts,
		MaxRetries: maxRetries,
	}
}

// Send processa uma entrada pelo ID. A mensagem já renderizada é reusada
// como está — nunca re-renderiza, para não derivar do documento original.
func (s *MessageSender) Send(ctx context.Context, logID string) error {
	entry, err := s.Logs.FindByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("entrada %s não encontrada: %w", logID, err)
	}

	// só Pending/Queued entram em Sending
	if entry.Status != entity.StatusPending && entry.Status != entity.StatusQueued {
		return ErrStateConflict
	}

	// Sending é marcado imediatamente antes da chamada de transporte
	ok, err := s.Logs.UpdateStatusIf(ctx, entry.ID, entry.Status, entity.StatusSending)
	if err != nil {
		return err
	}
	if !ok {
		// outro worker chegou primeiro
		log.Printf("⏭️ Entrada %s já processada por outro worker", entry.ID)
		return ErrStateConflict
	}

	result, sendErr := s.dispatch(ctx, entry)

	if sendErr != nil {
		return s.fail(ctx, entry, sendErr.Error())
	}

	if result == nil || result.ProviderMessageID == "" {
		// sucesso sem ID de mensagem é tratado como falha
		return s.fail(ctx, entry, "no message id returned")
	}

	applied, err := s.Logs.MarkSent(ctx, entry.ID, result.ProviderMessageID)
	if err != nil {
		return err
	}
	if !applied {
		return ErrStateConflict
	}

	log.Printf("✅ Mensagem %s enviada para %s (provider id %s)", entry.ID, entry.FormattedPhone, result.ProviderMessageID)
	return nil
}

func (s *MessageSender) dispatch(ctx context.Context, entry *entity.MessageLogEntry) (*SendResult, error) {
	if entry.MediaURL != "" {
		return s.Transport.SendMedia(ctx, entry.FormattedPhone, entry.MediaURL, entry.Caption)
	}
	return s.Transport.SendText(ctx, entry.FormattedPhone, entry.Message)
}

func (s *MessageSender) fail(ctx context.Context, entry *entity.MessageLogEntry, reason string) error {
	applied, err := s.Logs.MarkFailed(ctx, entry.ID, reason, true)
	if err != nil {
		return err
	}
	if !applied {
		return ErrStateConflict
	}

	log.Printf("❌ Envio de %s para %s falhou: %s", entry.ID, entry.FormattedPhone, reason)

	// retry_count era entry.RetryCount antes do incremento
	if entry.RetryCount+1 >= s.MaxRetries && s.Alerts != nil {
		if alertErr := s.Alerts.SendRetryExhausted(entry.ID, entry.FormattedPhone, reason); alertErr != nil {
			log.Printf("⚠️ Alerta de retries esgotados não saiu: %v", alertErr)
		}
	}

	return nil
}
