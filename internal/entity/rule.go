package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecipientType define de onde vêm os números de destino
type RecipientType string

const (
	RecipientFieldValue    RecipientType = "Field Value"
	RecipientFixedNumber   RecipientType = "Fixed Number"
	RecipientGroup         RecipientType = "Group"
	RecipientBoth          RecipientType = "Both"            // Field Value + Fixed Number
	RecipientPhoneAndGroup RecipientType = "Phone and Group" // Field Value + Group
)

// NotificationRule liga um evento de documento a um template e destinatários
type NotificationRule struct {
	ID           string    `json:"id"`
	RuleName     string    `json:"rule_name"`
	DocumentType string    `json:"document_type"`
	Event        EventType `json:"event"`

	// Obrigatório quando Event == Change
	ValueChanged string `json:"value_changed,omitempty"`

	// Expressão booleana (tengo) avaliada com {doc, now}. Vazio = sempre.
	Condition string `json:"condition,omitempty"`

	RecipientType   RecipientType `json:"recipient_type"`
	PhoneField      string        `json:"phone_field,omitempty"`
	FixedRecipients string        `json:"fixed_recipients,omitempty"` // lista separada por vírgula
	GroupID         string        `json:"group_id,omitempty"`
	GroupName       string        `json:"group_name,omitempty"`

	MessageTemplate      string `json:"message_template"`
	NotifyOwner          bool   `json:"notify_owner"`
	OwnerMessageTemplate string `json:"owner_message_template,omitempty"`

	// Anexo opcional enviado junto com a mensagem
	MediaURL string `json:"media_url,omitempty"`

	DelaySeconds int  `json:"delay_seconds"`
	SendOnce     bool `json:"send_once"`

	ActiveHoursStart string `json:"active_hours_start,omitempty"` // HH:MM
	ActiveHoursEnd   string `json:"active_hours_end,omitempty"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RuleRepository interface {
	Create(ctx context.Context, rule *NotificationRule) error
	FindByID(ctx context.Context, id string) (*NotificationRule, error)
	// FindEnabled retorna as regras ativas de um doctype+evento na ordem de criação
	FindEnabled(ctx context.Context, documentType string, event EventType) ([]NotificationRule, error)
}

func NewNotificationRule(ruleName, documentType string, event EventType) *NotificationRule {
	now := time.Now()
	return &NotificationRule{
		ID:           uuid.New().String(),
		RuleName:     ruleName,
		DocumentType: documentType,
		Event:        event,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
