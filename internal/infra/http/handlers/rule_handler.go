package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/entretech/zapnotify/internal/entity"
	"github.com/entretech/zapnotify/internal/usecase"
)

type RuleHandler struct {
	Rules entity.RuleRepository
	Cache *usecase.RuleCache
}

func NewRuleHandler(rules entity.RuleRepository, cache *usecase.RuleCache) *RuleHandler {
	return &RuleHandler{Rules: rules, Cache: cache}
}

type createRuleRequest struct {
	RuleName             string `json:"rule_name"`
	DocumentType         string `json:"document_type"`
	Event                string `json:"event"`
	ValueChanged         string `json:"value_changed,omitempty"`
	Condition            string `json:"condition,omitempty"`
	RecipientType        string `json:"recipient_type"`
	PhoneField           string `json:"phone_field,omitempty"`
	FixedRecipients      string `json:"fixed_recipients,omitempty"`
	GroupID              string `json:"group_id,omitempty"`
	GroupName            string `json:"group_name,omitempty"`
	MessageTemplate      string `json:"message_template"`
	NotifyOwner          bool   `json:"notify_owner"`
	OwnerMessageTemplate string `json:"owner_message_template,omitempty"`
	MediaURL             string `json:"media_url,omitempty"`
	DelaySeconds         int    `json:"delay_seconds"`
	SendOnce             bool   `json:"send_once"`
	ActiveHoursStart     string `json:"active_hours_start,omitempty"`
	ActiveHoursEnd       string `json:"active_hours_end,omitempty"`
}

// HandleCreate cadastra uma regra de notificação. A validação cruzada de
// recipient_type acontece aqui, na borda, não no core.
func (h *RuleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	if req.RuleName == "" || req.DocumentType == "" || req.Event == "" || req.MessageTemplate == "" {
		http.Error(w, "rule_name, document_type, event e message_template são obrigatórios", http.StatusBadRequest)
		return
	}

	if err := validateRule(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rule := entity.NewNotificationRule(req.RuleName, req.DocumentType, entity.EventType(req.Event))
	rule.ValueChanged = req.ValueChanged
	rule.Condition = req.Condition
	rule.RecipientType = entity.RecipientType(req.RecipientType)
	rule.PhoneField = req.PhoneField
	rule.FixedRecipients = req.FixedRecipients
	rule.GroupID = req.GroupID
	rule.GroupName = req.GroupName
	rule.MessageTemplate = req.MessageTemplate
	rule.NotifyOwner = req.NotifyOwner
	rule.OwnerMessageTemplate = req.OwnerMessageTemplate
	rule.MediaURL = req.MediaURL
	rule.DelaySeconds = req.DelaySeconds
	rule.SendOnce = req.SendOnce
	rule.ActiveHoursStart = req.ActiveHoursStart
	rule.ActiveHoursEnd = req.ActiveHoursEnd

	if err := h.Rules.Create(r.Context(), rule); err != nil {
		http.Error(w, "falha ao criar regra", http.StatusInternalServerError)
		return
	}

	// regras novas valem já no próximo evento
	h.Cache.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rule)
}

func (h *RuleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := h.Rules.FindByID(r.Context(), id)
	if err != nil {
		http.Error(w, "regra não encontrada", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

// validateRule checa as dependências entre recipient_type e os campos
// de destino, e entre o evento Change e value_changed
func validateRule(req createRuleRequest) error {
	if entity.EventType(req.Event) == entity.EventChange && req.ValueChanged == "" {
		return fmt.Errorf("evento Change exige value_changed")
	}

	switch entity.RecipientType(req.RecipientType) {
	case entity.RecipientFieldValue:
		if req.PhoneField == "" {
			return fmt.Errorf("recipient_type Field Value exige phone_field")
		}
	case entity.RecipientFixedNumber:
		if req.FixedRecipients == "" {
			return fmt.Errorf("recipient_type Fixed Number exige fixed_recipients")
		}
	case entity.RecipientGroup:
		if req.GroupID == "" {
			return fmt.Errorf("recipient_type Group exige group_id")
		}
	case entity.RecipientBoth:
		if req.PhoneField == "" || req.FixedRecipients == "" {
			return fmt.Errorf("recipient_type Both exige phone_field e fixed_recipients")
		}
	case entity.RecipientPhoneAndGroup:
		if req.PhoneField == "" || req.GroupID == "" {
			return fmt.Errorf("recipient_type Phone and Group exige phone_field e group_id")
		}
	default:
		return fmt.Errorf("recipient_type desconhecido: %s", req.RecipientType)
	}

	return nil
}
