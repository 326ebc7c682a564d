package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entretech/zapnotify/internal/entity"
)

func queuedEntry(t *testing.T, logs *fakeLogRepo) *entity.MessageLogEntry {
	t.Helper()
	entry := entity.NewMessageLogEntry("841234567", "258841234567", "olá")
	entry.Status = entity.StatusQueued
	require.NoError(t, logs.Create(context.Background(), entry))
	return entry
}

func TestSenderSend(t *testing.T) {
	ctx := context.Background()

	t.Run("caminho feliz: Queued vira Sent com provider id", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{result: &SendResult{ProviderMessageID: "ABC123"}}
		s := NewMessageSender(logs, transport, &fakeAlerts{}, 3)

		entry := queuedEntry(t, logs)
		require.NoError(t, s.Send(ctx, entry.ID))

		got := logs.get(entry.ID)
		assert.Equal(t, entity.StatusSent, got.Status)
		assert.Equal(t, "ABC123", got.ProviderMessageID)
		assert.NotNil(t, got.SentAt)
	})

	t.Run("falha de transporte vira Failed com retry_count incrementado", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{sendErr: &TransportError{Cause: fmt.Errorf("conexão recusada")}}
		s := NewMessageSender(logs, transport, &fakeAlerts{}, 3)

		entry := queuedEntry(t, logs)
		require.NoError(t, s.Send(ctx, entry.ID))

		got := logs.get(entry.ID)
		assert.Equal(t, entity.StatusFailed, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		assert.Contains(t, got.ErrorMessage, "conexão recusada")
	})

	t.Run("sucesso sem message id é tratado como falha", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{result: &SendResult{}}
		s := NewMessageSender(logs, transport, &fakeAlerts{}, 3)

		entry := queuedEntry(t, logs)
		require.NoError(t, s.Send(ctx, entry.ID))

		got := logs.get(entry.ID)
		assert.Equal(t, entity.StatusFailed, got.Status)
		assert.Contains(t, got.ErrorMessage, "no message id returned")
	})

	t.Run("entrada terminal não é reenviada", func(t *testing.T) {
		logs := newFakeLogRepo()
		entry := entity.NewMessageLogEntry("841234567", "258841234567", "olá")
		entry.Status = entity.StatusSent
		require.NoError(t, logs.Create(ctx, entry))

		transport := &fakeTransport{}
		s := NewMessageSender(logs, transport, &fakeAlerts{}, 3)

		err := s.Send(ctx, entry.ID)
		assert.ErrorIs(t, err, ErrStateConflict)
		assert.Empty(t, transport.sent)
	})

	t.Run("dois workers disputando: só um envia", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{}
		s := NewMessageSender(logs, transport, &fakeAlerts{}, 3)

		entry := queuedEntry(t, logs)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.Send(ctx, entry.ID)
			}(i)
		}
		wg.Wait()

		// exatamente um venceu o CAS e chamou o transporte
		assert.Len(t, transport.sent, 1)
		conflicts := 0
		for _, err := range errs {
			if err == ErrStateConflict {
				conflicts++
			}
		}
		assert.Equal(t, 1, conflicts)
		assert.Equal(t, entity.StatusSent, logs.get(entry.ID).Status)
	})

	t.Run("última tentativa dispara alerta ao operador", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{sendErr: &TransportError{Cause: fmt.Errorf("falhou de novo")}}
		alerts := &fakeAlerts{}
		s := NewMessageSender(logs, transport, alerts, 3)

		entry := entity.NewMessageLogEntry("841234567", "258841234567", "olá")
		entry.Status = entity.StatusQueued
		entry.RetryCount = 2 // esta é a terceira e última tentativa
		require.NoError(t, logs.Create(ctx, entry))

		require.NoError(t, s.Send(ctx, entry.ID))
		assert.Equal(t, []string{entry.ID}, alerts.calls)
	})

	t.Run("mídia sai pelo SendMedia com caption", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{}
		s := NewMessageSender(logs, transport, &fakeAlerts{}, 3)

		entry := entity.NewMessageLogEntry("841234567", "258841234567", "corpo")
		entry.Status = entity.StatusQueued
		entry.MediaURL = "https://cdn.example.com/fatura.pdf"
		entry.Caption = "sua fatura"
		require.NoError(t, logs.Create(ctx, entry))

		require.NoError(t, s.Send(ctx, entry.ID))
		require.Len(t, transport.texts, 1)
		assert.Equal(t, "sua fatura", transport.texts[0]) // fakeTransport encaminha o caption
	})
}
