package worker

import (
	"context"
	"log"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/usecase"
)

const scheduledBatchSize = 100

// ScheduledWorker despacha as mensagens agendadas (delay_seconds) cujo
// horário chegou. O rate limit opcional espalha os envios para não
// estourar o limite do provedor.
type ScheduledWorker struct {
	Logs     entity.MessageLogRepository
	Producer usecase.QueueProducer
	Sender   *usecase.MessageSender

	QueueEnabled      bool
	RateLimitEnabled  bool
	MessagesPerMinute int

	tickInterval time.Duration
}

func NewScheduledWorker(
	logs entity.MessageLogRepository,
	producer usecase.QueueProducer,
	sender *usecase.MessageSender,
	queueEnabled, rateLimitEnabled bool,
	messagesPerMinute int,
) *ScheduledWorker {
	return &ScheduledWorker{
		Logs:              logs,
		Producer:          producer,
		Sender:            sender,
		QueueEnabled:      queueEnabled,
		RateLimitEnabled:  rateLimitEnabled,
		MessagesPerMinute: messagesPerMinute,
		tickInterval:      30 * time.Second,
	}
}

func (w *ScheduledWorker) Start(ctx context.Context) {
	log.Println("🕒 Scheduled Worker iniciado")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.dispatchDue(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Scheduled Worker encerrado")
			return
		case <-ticker.C:
			w.dispatchDue(ctx)
		}
	}
}

func (w *ScheduledWorker) dispatchDue(ctx context.Context) {
	limit := scheduledBatchSize
	if w.RateLimitEnabled && w.MessagesPerMinute > 0 {
		limit = w.MessagesPerMinute
	}

	entries, err := w.Logs.FindDueScheduled(ctx, limit)
	if err != nil {
		log.Printf("❌ Erro ao buscar mensagens agendadas: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	var spacing time.Duration
	if w.RateLimitEnabled && w.MessagesPerMinute > 0 {
		spacing = time.Minute / time.Duration(w.MessagesPerMinute)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.submit(ctx, entry.ID)

		if spacing > 0 {
			time.Sleep(spacing)
		}
	}

	log.Printf("📤 %d mensagem(ns) agendada(s) despachada(s)", len(entries))
}

func (w *ScheduledWorker) submit(ctx context.Context, logID string) {
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
