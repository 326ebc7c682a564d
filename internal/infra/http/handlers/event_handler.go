package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/usecase"
)

// EventHandler recebe os eventos de documento vindos do ERP
type EventHandler struct {
	Engine *usecase.DispatchEngine
}

func NewEventHandler(engine *usecase.DispatchEngine) *EventHandler {
	return &EventHandler{Engine: engine}
}

type documentEventRequest struct {
	Doctype      string                 `json:"doctype"`
	Name         string                 `json:"name"`
	Event        string                 `json:"event"`
	ChangedField string                 `json:"changed_field,omitempty"`
	Doc          map[string]interface{} `json:"doc"`
}

func (h *EventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req documentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	if req.Doctype == "" || req.Name == "" || req.Event == "" {
		http.Error(w, "doctype, name e event são obrigatórios", http.StatusBadRequest)
		return
	}

	event := entity.DocumentEvent{
		Type: entity.EventType(req.Event),
		Document: entity.Document{
			Doctype:    req.Doctype,
			Name:       req.Name,
			Attributes: req.Doc,
		},
		ChangedField: req.ChangedField,
		OccurredAt:   time.Now(),
	}

	if err := h.Engine.Handle(r.Context(), event); err != nil {
		if errors.Is(err, usecase.ErrStoreUnavailable) {
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		log.Printf("❌ Evento %s em %s %s: %v", req.Event, req.Doctype, req.Name, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
