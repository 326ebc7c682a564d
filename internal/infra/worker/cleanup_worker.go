package worker

import (
	"context"
	"log"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

// CleanupWorker apaga entradas terminais do log além da retenção.
// Mensagens ainda em voo nunca são tocadas.
type CleanupWorker struct {
	Logs          entity.MessageLogRepository
	RetentionDays int
	tickInterval  time.Duration
}

func NewCleanupWorker(logs entity.MessageLogRepository, retentionDays int) *CleanupWorker {
	return &CleanupWorker{
		Logs:          logs,
		RetentionDays: retentionDays,
		tickInterval:  12 * time.Hour,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	if w.RetentionDays <= 0 {
		log.Println("⚠️ Cleanup Worker desativado (retenção não configurada)")
		return
	}

	log.Printf("🕒 Cleanup Worker iniciado (retenção de %d dias)", w.RetentionDays)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Cleanup Worker encerrado")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -w.RetentionDays)
	n, err := w.Logs.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("❌ Erro na limpeza do log de mensagens: %v", err)
		return
	}
	if n > 0 {
		log.Printf("🧹 %d entrada(s) antiga(s) removida(s) do log", n)
	}
}
