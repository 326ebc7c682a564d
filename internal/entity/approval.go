package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "Pending"
	ApprovalResponded ApprovalStatus = "Responded"
	ApprovalCancelled ApprovalStatus = "Cancelled"
	ApprovalExpired   ApprovalStatus = "Expired"
)

// ActionType é o que acontece quando uma opção é escolhida
type ActionType string

const (
	ActionUpdateField ActionType = "Update Field"
	ActionAcknowledge ActionType = "Acknowledge" // só registra a resposta
)

// ApprovalOption é uma opção numerada apresentada no WhatsApp ("1 - Aprovar")
type ApprovalOption struct {
	Number     int        `json:"number"`
	Label      string     `json:"label"`
	Action     ActionType `json:"action"`
	FieldName  string     `json:"field_name,omitempty"`  // para Update Field
	FieldValue string     `json:"field_value,omitempty"` // para Update Field
}

// ApprovalTemplate configura um pedido de aprovação reutilizável
type ApprovalTemplate struct {
	ID                   string           `json:"id"`
	TemplateName         string           `json:"template_name"`
	DocumentType         string           `json:"document_type"`
	MessageTemplate      string           `json:"message_template"`
	PhoneField           string           `json:"phone_field"`
	Options              []ApprovalOption `json:"options"`
	ExpiryHours          int              `json:"expiry_hours"`
	AllowMultiplePending bool             `json:"allow_multiple_pending"`
	Enabled              bool             `json:"enabled"`
	CreatedAt            time.Time        `json:"created_at"`
}

// ApprovalRequest é um pedido enviado aguardando resposta estruturada
type ApprovalRequest struct {
	ID               string `json:"id"`
	TemplateID       string `json:"template_id"`
	ReferenceDoctype string `json:"reference_doctype"`
	ReferenceName    string `json:"reference_name"`

	RecipientPhone string `json:"recipient_phone"`
	FormattedPhone string `json:"formatted_phone"`
	RecipientName  string `json:"recipient_name,omitempty"`

	// Opções como foram enviadas (o template pode mudar depois)
	SentOptions []ApprovalOption `json:"sent_options"`

	Status ApprovalStatus `json:"status"`

	// Correlação com a resposta do provedor
	ConversationID string `json:"conversation_id,omitempty"`
	MessageLogID   string `json:"message_log_id,omitempty"`

	ResponseOption int        `json:"response_option,omitempty"`
	ResponseText   string     `json:"response_text,omitempty"`
	ResponseFrom   string     `json:"response_from,omitempty"`
	ActionExecuted string     `json:"action_executed,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RespondedAt    *time.Time `json:"responded_at,omitempty"`

	SentAt    time.Time `json:"sent_at"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ApprovalRepository interface {
	Create(ctx context.Context, req *ApprovalRequest) error
	FindByID(ctx context.Context, id string) (*ApprovalRequest, error)
	FindPendingByConversation(ctx context.Context, conversationID string) (*ApprovalRequest, error)
	FindPendingByPhone(ctx context.Context, formattedPhone string) (*ApprovalRequest, error)
	FindPendingByPhoneSuffix(ctx context.Context, suffix string) (*ApprovalRequest, error)
	FindPendingForDocument(ctx context.Context, doctype, docname string) ([]ApprovalRequest, error)

	// Transições guardadas por Pending (mesma semântica CAS do message log)
	MarkResponded(ctx context.Context, id string, option int, text, from, actionExecuted string) (bool, error)
	MarkCancelled(ctx context.Context, id, reason string) (bool, error)
	MarkExpired(ctx context.Context, id string) (bool, error)
	ExpirePending(ctx context.Context, now time.Time) (int, error)

	SetConversationID(ctx context.Context, id, conversationID string) error
	// SetActionExecuted grava o resultado da ação depois que o CAS do
	// MarkResponded já foi vencido
	SetActionExecuted(ctx context.Context, id, actionExecuted string) error
}

type ApprovalTemplateRepository interface {
	Create(ctx context.Context, tpl *ApprovalTemplate) error
	FindByID(ctx context.Context, id string) (*ApprovalTemplate, error)
}

func NewApprovalTemplate(templateName, documentType string) *ApprovalTemplate {
	return &ApprovalTemplate{
		ID:           uuid.New().String(),
		TemplateName: templateName,
		DocumentType: documentType,
		ExpiryHours:  24,
		Enabled:      true,
		CreatedAt:    time.Now(),
	}
}

func NewApprovalRequest(tpl *ApprovalTemplate, doctype, docname, phone, formattedPhone string) *ApprovalRequest {
	now := time.Now()
	expiry := tpl.ExpiryHours
	if expiry <= 0 {
		expiry = 24
	}
	return &ApprovalRequest{
		ID:               uuid.New().String(),
		TemplateID:       tpl.ID,
		ReferenceDoctype: doctype,
		ReferenceName:    docname,
		RecipientPhone:   phone,
		FormattedPhone:   formattedPhone,
		SentOptions:      tpl.Options,
		Status:           ApprovalPending,
		SentAt:           now,
		ExpiresAt:        now.Add(time.Duration(expiry) * time.Hour),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// OptionByNumber devolve a opção enviada com aquele número, ou nil
func (r *ApprovalRequest) OptionByNumber(n int) *ApprovalOption {
	for i := range r.SentOptions {
		if r.SentOptions[i].Number == n {
			return &r.SentOptions[i]
		}
	}
	return nil
}

// IsExpired respeita apenas pedidos ainda pendentes
func (r *ApprovalRequest) IsExpired(now time.Time) bool {
	return r.Status == ApprovalPending && now.After(r.ExpiresAt)
}
