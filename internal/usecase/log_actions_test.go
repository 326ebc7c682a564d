package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entretech/zapnotify/internal/entity"
)

func entryWithStatus(t *testing.T, logs *fakeLogRepo, status entity.MessageStatus, retries int) *entity.MessageLogEntry {
	t.Helper()
	entry := entity.NewMessageLogEntry("841234567", "258841234567", "olá")
	entry.Status = status
	entry.RetryCount = retries
	require.NoError(t, logs.Create(context.Background(), entry))
	return entry
}

func testActions(logs *fakeLogRepo, producer *fakeProducer, transport *fakeTransport) *LogActions {
	sender := NewMessageSender(logs, transport, &fakeAlerts{}, 3)
	return NewLogActions(logs, producer, sender, true, 3)
}

func TestRetrySend(t *testing.T) {
	ctx := context.Background()

	t.Run("Failed volta para a fila preservando retry_count", func(t *testing.T) {
		logs := newFakeLogRepo()
		producer := &fakeProducer{}
		a := testActions(logs, producer, &fakeTransport{})

		entry := entryWithStatus(t, logs, entity.StatusFailed, 2)
		require.NoError(t, a.RetrySend(ctx, entry.ID))

		got := logs.get(entry.ID)
		assert.Equal(t, entity.StatusQueued, got.Status)
		assert.Equal(t, 2, got.RetryCount) // nunca zerado
		assert.Equal(t, []string{entry.ID}, producer.published)
	})

	t.Run("Cancelled também pode ser reenviada", func(t *testing.T) {
		logs := newFakeLogRepo()
		a := testActions(logs, &fakeProducer{}, &fakeTransport{})

		entry := entryWithStatus(t, logs, entity.StatusCancelled, 0)
		require.NoError(t, a.RetrySend(ctx, entry.ID))
		assert.Equal(t, entity.StatusQueued, logs.get(entry.ID).Status)
	})

	t.Run("Failed no teto de tentativas é recusada", func(t *testing.T) {
		logs := newFakeLogRepo()
		a := testActions(logs, &fakeProducer{}, &fakeTransport{})

		entry := entryWithStatus(t, logs, entity.StatusFailed, 3)
		err := a.RetrySend(ctx, entry.ID)
		assert.Error(t, err)
		assert.Equal(t, entity.StatusFailed, logs.get(entry.ID).Status)
	})

	t.Run("Cancelled no teto de tentativas também é recusada", func(t *testing.T) {
		logs := newFakeLogRepo()
		a := testActions(logs, &fakeProducer{}, &fakeTransport{})

		entry := entryWithStatus(t, logs, entity.StatusCancelled, 3)
		err := a.RetrySend(ctx, entry.ID)
		assert.Error(t, err)
		assert.Equal(t, entity.StatusCancelled, logs.get(entry.ID).Status)
	})

	t.Run("Sent não pode ser reenviada", func(t *testing.T) {
		logs := newFakeLogRepo()
		a := testActions(logs, &fakeProducer{}, &fakeTransport{})

		entry := entryWithStatus(t, logs, entity.StatusSent, 0)
		assert.Error(t, a.RetrySend(ctx, entry.ID))
	})

	t.Run("fila fora cai para envio síncrono", func(t *testing.T) {
		logs := newFakeLogRepo()
		transport := &fakeTransport{}
		producer := &fakeProducer{publishErr: assertErr}
		a := testActions(logs, producer, transport)

		entry := entryWithStatus(t, logs, entity.StatusFailed, 1)
		require.NoError(t, a.RetrySend(ctx, entry.ID))

		assert.Len(t, transport.sent, 1)
		assert.Equal(t, entity.StatusSent, logs.get(entry.ID).Status)
	})
}

func TestCancelMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending e Queued podem ser canceladas", func(t *testing.T) {
		logs := newFakeLogRepo()
		a := testActions(logs, &fakeProducer{}, &fakeTransport{})

		pending := entryWithStatus(t, logs, entity.StatusPending, 0)
		queued := entryWithStatus(t, logs, entity.StatusQueued, 0)

		require.NoError(t, a.CancelMessage(ctx, pending.ID))
		require.NoError(t, a.CancelMessage(ctx, queued.ID))

		assert.Equal(t, entity.StatusCancelled, logs.get(pending.ID).Status)
		assert.Equal(t, entity.StatusCancelled, logs.get(queued.ID).Status)
	})

	t.Run("Sending em diante não cancela", func(t *testing.T) {
		logs := newFakeLogRepo()
		a := testActions(logs, &fakeProducer{}, &fakeTransport{})

		for _, status := range []entity.MessageStatus{entity.StatusSending, entity.StatusSent, entity.StatusFailed} {
			entry := entryWithStatus(t, logs, status, 0)
			assert.Error(t, a.CancelMessage(ctx, entry.ID), "status %s", status)
			assert.Equal(t, status, logs.get(entry.ID).Status)
		}
	})
}
