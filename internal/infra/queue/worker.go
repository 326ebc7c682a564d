package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/entretech/zapnotify/internal/usecase"
)

// DispatchSender é o passo de envio que o worker executa por mensagem
type DispatchSender interface {
	Send(ctx context.Context, logID string) error
}

type Worker struct {
	Channel *amqp.Channel
	Sender  DispatchSender
}

func NewWorker(ch *amqp.Channel, sender DispatchSender) *Worker {
	return &Worker{
		Channel: ch,
		Sender:  sender,
	}
}

func (w *Worker) Start(queueName string) {
	msgs, err := w.Channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack (manual é mais seguro)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		log.Fatalf("❌ Falha ao registrar consumidor RabbitMQ: %s", err)
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var payload DispatchPayload
			if err := json.Unmarshal(d.Body, &payload); err != nil || payload.LogID == "" {
				log.Printf("❌ [WORKER] Payload inválido: %s", d.Body)
				// mensagem podre vai para a DLQ, sem requeue
				d.Nack(false, false)
				continue
			}

			log.Printf("📥 [WORKER] Processando envio %s", payload.LogID)

			err := w.Sender.Send(context.Background(), payload.LogID)
			switch {
			case err == nil:
				d.Ack(false)

			case errors.Is(err, usecase.ErrStateConflict):
				// outro worker (ou um envio síncrono) já cuidou desta entrada
				log.Printf("⏭️ [WORKER] Envio %s já tratado, descartando", payload.LogID)
				d.Ack(false)

			default:
				// falha de transporte vira Failed no log e retorna nil; chegar
				// aqui é problema de infraestrutura (banco fora, registro
				// sumido). Vai para a DLQ para inspeção.
				log.Printf("❌ [WORKER] Envio %s falhou: %s", payload.LogID, err)
				d.Nack(false, false)
			}
		}
	}()

	log.Printf(" [*] Worker rodando e aguardando na fila '%s'", queueName)
	<-forever
}
