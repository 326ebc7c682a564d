package worker

import (
	"context"
	"log"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/usecase"
)

const retryBatchSize = 50

// RetryWorker varre as mensagens Failed elegíveis (backoff exponencial já
// vencido) e as recoloca na fila. Também recupera entradas presas em
// Sending quando o processo morreu no meio do envio.
type RetryWorker struct {
	Logs     entity.MessageLogRepository
	Producer usecase.QueueProducer
	Sender   *usecase.MessageSender

	QueueEnabled      bool
	MaxRetries        int
	RetryBaseInterval time.Duration
	RetryMaxInterval  time.Duration
	SendingTimeout    time.Duration

	tickInterval time.Duration
}

func NewRetryWorker(
	logs entity.MessageLogRepository,
	producer usecase.QueueProducer,
	sender *usecase.MessageSender,
	queueEnabled bool,
	maxRetries int,
	baseInterval, maxInterval, sendingTimeout time.Duration,
) *RetryWorker {
	return &RetryWorker{
		Logs:              logs,
		Producer:          producer,
		Sender:            sender,
		QueueEnabled:      queueEnabled,
		MaxRetries:        maxRetries,
		RetryBaseInterval: baseInterval,
		RetryMaxInterval:  maxInterval,
		SendingTimeout:    sendingTimeout,
		tickInterval:      1 * time.Minute,
	}
}

func (w *RetryWorker) Start(ctx context.Context) {
	log.Printf("🕒 Retry Worker iniciado (máx %d tentativas, base %s)", w.MaxRetries, w.RetryBaseInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Retry Worker encerrado")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetryWorker) sweep(ctx context.Context) {
	w.requeueFailed(ctx)
	w.recoverStuck(ctx)
	w.recoverStale(ctx)
}

func (w *RetryWorker) requeueFailed(ctx context.Context) {
	entries, err := w.Logs.FindRetryable(ctx, w.MaxRetries, w.RetryBaseInterval, w.RetryMaxInterval, retryBatchSize)
	if err != nil {
		log.Printf("❌ Erro ao buscar mensagens para retry: %v", err)
		return
	}

	requeued := 0
	for _, entry := range entries {
		applied, err := w.Logs.RequeueForRetry(ctx, entry.ID)
		if err != nil {
			log.Printf("⚠️ Erro ao re-enfileirar %s: %v", entry.ID, err)
			continue
		}
		if !applied {
			// outra instância do worker pegou esta entrada
			continue
		}

		log.Printf("🔁 Retry automático de %s (tentativa %d de %d)", entry.ID, entry.RetryCount+1, w.MaxRetries)
		w.submit(ctx, entry.ID)
		requeued++
	}

	if requeued > 0 {
		log.Printf("✅ %d mensagem(ns) re-enfileirada(s) para retry", requeued)
	}
}

// recoverStuck trata Sending além do timeout: se ainda há tentativas
// sobrando volta pra fila, senão encerra como Failed permanente.
func (w *RetryWorker) recoverStuck(ctx context.Context) {
	entries, err := w.Logs.FindStuckSending(ctx, w.SendingTimeout, retryBatchSize)
	if err != nil {
		log.Printf("❌ Erro ao buscar mensagens travadas em Sending: %v", err)
		return
	}

	for _, entry := range entries {
		if entry.RetryCount >= w.MaxRetries {
			applied, err := w.Logs.MarkFailed(ctx, entry.ID, "Max retries exceeded (stuck in Sending)", false)
			if err != nil || !applied {
				continue
			}
			log.Printf("❌ Mensagem %s travada em Sending encerrada como Failed", entry.ID)
			continue
		}

		// consome uma tentativa e volta pra fila
		applied, err := w.Logs.MarkFailed(ctx, entry.ID, "stuck in Sending, requeued", true)
		if err != nil || !applied {
			continue
		}
		if requeued, err := w.Logs.RequeueForRetry(ctx, entry.ID); err == nil && requeued {
			log.Printf("🔁 Mensagem %s recuperada de Sending travado", entry.ID)
			w.submit(ctx, entry.ID)
		}
	}
}

// recoverStale re-submete Pending/Queued órfãs: a publicação na fila se
// perdeu e nenhum worker vai buscá-las. O CAS do sender protege contra
// duplicata se a mensagem original ainda estiver em trânsito.
func (w *RetryWorker) recoverStale(ctx context.Context) {
	entries, err := w.Logs.FindStaleQueued(ctx, w.SendingTimeout, retryBatchSize)
	if err != nil {
		log.Printf("❌ Erro ao buscar mensagens órfãs: %v", err)
		return
	}

	for _, entry := range entries {
		log.Printf("🔁 Mensagem %s órfã em %s, re-submetendo", entry.ID, entry.Status)
		w.submit(ctx, entry.ID)
	}
}

func (w *RetryWorker) submit(ctx context.Context, logID string) {
	if w.QueueEnabled {
		if err := w.Producer.PublishDispatch(ctx, logID); err == nil {
			return
		}
		log.Printf("⚠️ Fila indisponível, enviando %s de forma síncrona", logID)
	}
	if err := w.Sender.Send(ctx, logID); err != nil {
		log.Printf("⚠️ Envio síncrono de %s não concluiu: %v", logID, err)
	}
}
