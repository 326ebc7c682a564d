package worker

import (
	"context"
	"log"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

// ApprovalExpiryWorker marca em lote os pedidos de aprovação pendentes
// cujo prazo venceu. Resposta que chegar depois disso é ignorada.
type ApprovalExpiryWorker struct {
	Requests     entity.ApprovalRepository
	tickInterval time.Duration
}

func NewApprovalExpiryWorker(requests entity.ApprovalRepository) *ApprovalExpiryWorker {
	return &ApprovalExpiryWorker{
		Requests:     requests,
		tickInterval: 5 * time.Minute,
	}
}

func (w *ApprovalExpiryWorker) Start(ctx context.Context) {
	log.Println("🕒 Approval Expiry Worker iniciado")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.expire(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Approval Expiry Worker encerrado")
			return
		case <-ticker.C:
			w.expire(ctx)
		}
	}
}

func (w *ApprovalExpiryWorker) expire(ctx context.Context) {
	n, err := w.Requests.ExpirePending(ctx, time.Now())
	if err != nil {
		log.Printf("❌ Erro ao expirar pedidos de aprovação: %v", err)
		return
	}
	if n > 0 {
		log.Printf("⏰ %d pedido(s) de aprovação expirado(s)", n)
	}
}
