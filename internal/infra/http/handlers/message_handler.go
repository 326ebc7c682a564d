package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/infra/http/middleware"
	"github.com/entretech/zapnotify/internal/usecase"
)

// MessageHandler cobre o envio avulso e as ações manuais sobre o log
type MessageHandler struct {
	Logs       entity.MessageLogRepository
	Actions    *usecase.LogActions
	Sender     *usecase.MessageSender
	Producer   usecase.QueueProducer
	Normalizer usecase.PhoneNormalizer

	QueueEnabled bool
}

func NewMessageHandler(
	logs entity.MessageLogRepository,
	actions *usecase.LogActions,
	sender *usecase.MessageSender,
	producer usecase.QueueProducer,
	normalizer usecase.PhoneNormalizer,
	queueEnabled bool,
) *MessageHandler {
	return &MessageHandler{
		Logs:         logs,
		Actions:      actions,
		Sender:       sender,
		Producer:     producer,
		Normalizer:   normalizer,
		QueueEnabled: queueEnabled,
	}
}

type sendMessageRequest struct {
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// HandleSend cria uma entrada avulsa (sem regra) e a despacha. O corpo já
// chega pronto, sem template.
func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	if req.Phone == "" || (req.Message == "" && req.MediaURL == "") {
		http.Error(w, "phone e message (ou media_url) são obrigatórios", http.StatusBadRequest)
		return
	}

	formatted, err := h.Normalizer.Normalize(req.Phone)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry := entity.NewMessageLogEntry(req.Phone, formatted, req.Message)
	entry.MediaURL = req.MediaURL
	entry.Caption = req.Caption
	if h.QueueEnabled {
		entry.Status = entity.StatusQueued
	}

	if err := h.Logs.Create(r.Context(), entry); err != nil {
		log.Printf("❌ Não consegui persistir envio avulso: %v", err)
		http.Error(w, "store unavailable", http.StatusInternalServerError)
		return
	}

	// a falha de transporte já fica registrada na entrada como Failed;
	// a resposta segue 202 porque o envio foi aceito
	if h.QueueEnabled {
		if err := h.Producer.PublishDispatch(r.Context(), entry.ID); err != nil {
			log.Printf("⚠️ Fila indisponível, caindo para envio síncrono: %v", err)
			h.sendNow(r.Context(), entry.ID)
		}
	} else {
		h.sendNow(r.Context(), entry.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": entry.ID})
}

func (h *MessageHandler) sendNow(ctx context.Context, logID string) {
	if err := h.Sender.Send(ctx, logID); err != nil {
		log.Printf("⚠️ Envio síncrono de %s não concluiu: %v", logID, err)
	}
}

// HandleRetry: retry manual de uma entrada Failed/Cancelled
func (h *MessageHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Actions.RetrySend(r.Context(), id); err != nil {
		if errors.Is(err, usecase.ErrStateConflict) {
			http.Error(w, "estado mudou, tente de novo", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	middleware.RecordMessage("retried")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "requeued"})
}

// HandleCancel: cancela uma entrada que ainda não entrou em Sending
func (h *MessageHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Actions.CancelMessage(r.Context(), id); err != nil {
		if errors.Is(err, usecase.ErrStateConflict) {
			http.Error(w, "estado mudou, tente de novo", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	middleware.RecordMessage("cancelled")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// HandleGet devolve uma entrada do log
func (h *MessageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.Logs.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "entrada não encontrada", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// HandleStats agrega os contadores por status para o dashboard.
// ?days=N limita a janela (default 7).
func (h *MessageHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := h.Logs.Stats(r.Context(), since)
	if err != nil {
		http.Error(w, "falha ao agregar estatísticas", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
