package usecase

import (
	"context"
	"log"

	"github.com/entretech/zapnotify/internal/entity"
)

// DeliveryReceipts aplica os recibos de entrega do provedor
// (Sent → Delivered → Read), correlacionados pelo provider message id.
// Nenhum outro caminho seta esses estados. Passa pela mesma função de
// transição guardada usada pelos chamadores internos.
type DeliveryReceipts struct {
	Logs entity.MessageLogRepository
}

func NewDeliveryReceipts(logs entity.MessageLogRepository) *DeliveryReceipts {
	return &DeliveryReceipts{Logs: logs}
}

// Apply processa um recibo {providerMessageId, newStatus}. Recibo para
// mensagem desconhecida ou transição fora de ordem é ignorado com log.
func (d *DeliveryReceipts) Apply(ctx context.Context, providerMessageID string, newStatus entity.MessageStatus) error {
	if newStatus != entity.StatusDelivered && newStatus != entity.StatusRead {
		log.Printf("⚠️ Recibo com status inesperado %q ignorado", newStatus)
		return nil
	}

	entry, err := d.Logs.FindByProviderMessageID(ctx, providerMessageID)
	if err != nil || entry == nil {
		log.Printf("⚠️ Recibo sem mensagem correspondente (provider id %s)", providerMessageID)
		return ErrNoCorrelation
	}

	var from entity.MessageStatus
	switch newStatus {
	case entity.StatusDelivered:
		from = entity.StatusSent
	case entity.StatusRead:
		// Read pode chegar direto de Sent (Delivered não é garantido)
		if entry.Status == entity.StatusDelivered {
			from = entity.StatusDelivered
		} else {
			from = entity.StatusSent
		}
	}

	applied, err := d.Logs.UpdateStatusIf(ctx, entry.ID, from, newStatus)
	if err != nil {
		return err
	}
	if !applied {
		// recibo duplicado ou fora de ordem: no-op
		log.Printf("⏭️ Recibo %s→%s não aplicado para %s (status atual %s)", from, newStatus, entry.ID, entry.Status)
		return nil
	}

	log.Printf("📬 Mensagem %s agora está %s", entry.ID, newStatus)
	return nil
}
