package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/usecase"
)

type ApprovalHandler struct {
	Workflow  *usecase.ApprovalWorkflow
	Requests  entity.ApprovalRepository
	Templates entity.ApprovalTemplateRepository
}

func NewApprovalHandler(
	workflow *usecase.ApprovalWorkflow,
	requests entity.ApprovalRepository,
	templates entity.ApprovalTemplateRepository,
) *ApprovalHandler {
	return &ApprovalHandler{
		Workflow:  workflow,
		Requests:  requests,
		Templates: templates,
	}
}

type sendApprovalRequest struct {
	TemplateID string                 `json:"template_id"`
	Doctype    string                 `json:"doctype"`
	Name       string                 `json:"name"`
	Doc        map[string]interface{} `json:"doc"`
	Phone      string                 `json:"phone,omitempty"` // sobrescreve o campo do template
}

// HandleSend dispara um pedido de aprovação para o documento
func (h *ApprovalHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	if req.TemplateID == "" || req.Doctype == "" || req.Name == "" {
		http.Error(w, "template_id, doctype e name são obrigatórios", http.StatusBadRequest)
		return
	}

	doc := entity.Document{
		Doctype:    req.Doctype,
		Name:       req.Name,
		Attributes: req.Doc,
	}

	approval, err := h.Workflow.SendRequest(r.Context(), req.TemplateID, doc, req.Phone)
	if err != nil {
		if errors.Is(err, usecase.ErrStoreUnavailable) {
			http.Error(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(approval)
}

// HandleCancel cancela um pedido ainda pendente
func (h *ApprovalHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "Cancelado manualmente"
	}

	if err := h.Workflow.Cancel(r.Context(), id, body.Reason); err != nil {
		if errors.Is(err, usecase.ErrStateConflict) {
			http.Error(w, "pedido não está mais pendente", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// HandleGet devolve um pedido pelo ID
func (h *ApprovalHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.Requests.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "pedido não encontrado", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

type createTemplateRequest struct {
	TemplateName         string                  `json:"template_name"`
	DocumentType         string                  `json:"document_type"`
	MessageTemplate      string                  `json:"message_template"`
	PhoneField           string                  `json:"phone_field"`
	Options              []entity.ApprovalOption `json:"options"`
	ExpiryHours          int                     `json:"expiry_hours"`
	AllowMultiplePending bool                    `json:"allow_multiple_pending"`
}

// HandleCreateTemplate cadastra um template de aprovação
func (h *ApprovalHandler) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	if req.TemplateName == "" || req.MessageTemplate == "" || len(req.Options) == 0 {
		http.Error(w, "template_name, message_template e options são obrigatórios", http.StatusBadRequest)
		return
	}

	for _, opt := range req.Options {
		if opt.Number <= 0 || opt.Label == "" {
			http.Error(w, "toda opção precisa de number positivo e label", http.StatusBadRequest)
			return
		}
		if opt.Action == entity.ActionUpdateField && opt.FieldName == "" {
			http.Error(w, "opção Update Field precisa de field_name", http.StatusBadRequest)
			return
		}
	}

	tpl := entity.NewApprovalTemplate(req.TemplateName, req.DocumentType)
	tpl.MessageTemplate = req.MessageTemplate
	tpl.PhoneField = req.PhoneField
	tpl.Options = req.Options
	tpl.ExpiryHours = req.ExpiryHours
	tpl.AllowMultiplePending = req.AllowMultiplePending

	if err := h.Templates.Create(r.Context(), tpl); err != nil {
		http.Error(w, "falha ao criar template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(tpl)
}
