package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/entretech/zapnotify/internal/entity"
)

type RuleRepository struct {
	DB *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{DB: db}
}

const ruleColumns = `
	id, rule_name, document_type, event, value_changed, condition,
	recipient_type, phone_field, fixed_recipients, group_id, group_name,
	message_template, notify_owner, owner_message_template, media_url,
	delay_seconds, send_once, active_hours_start, active_hours_end,
	enabled, created_at, updated_at`

func (r *RuleRepository) Create(ctx context.Context, rule *entity.NotificationRule) error {
	query := `
		INSERT INTO notification_rules (
			id, rule_name, document_type, event, value_changed, condition,
			recipient_type, phone_field, fixed_recipients, group_id, group_name,
			message_template, notify_owner, owner_message_template, media_url,
			delay_seconds, send_once, active_hours_start, active_hours_end,
			enabled, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
	`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		rule.ID,
		rule.RuleName,
		rule.DocumentType,
		string(rule.Event),
		rule.ValueChanged,
		rule.Condition,
		string(rule.RecipientType),
		rule.PhoneField,
		rule.FixedRecipients,
		rule.GroupID,
		rule.GroupName,
		rule.MessageTemplate,
		rule.NotifyOwner,
		rule.OwnerMessageTemplate,
		rule.MediaURL,
		rule.DelaySeconds,
		rule.SendOnce,
		rule.ActiveHoursStart,
		rule.ActiveHoursEnd,
		rule.Enabled,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("falha ao criar regra: %w", err)
	}
	return nil
}

func (r *RuleRepository) FindByID(ctx context.Context, id string) (*entity.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = $1`

	row := r.DB.QueryRowContext(ctx, query, id)
	rule, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// FindEnabled retorna as regras ativas na ordem de criação. A ordem importa:
// os envios de um evento seguem a ordem em que as regras foram cadastradas.
func (r *RuleRepository) FindEnabled(ctx context.Context, documentType string, event entity.EventType) ([]entity.NotificationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM notification_rules
		WHERE document_type = $1 AND event = $2 AND enabled = true
		ORDER BY created_at ASC
	`

	rows, err := r.DB.QueryContext(ctx, query, documentType, string(event))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []entity.NotificationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*entity.NotificationRule, error) {
	var rule entity.NotificationRule
	var event, recipientType string

	err := row.Scan(
		&rule.ID,
		&rule.RuleName,
		&rule.DocumentType,
		&event,
		&rule.ValueChanged,
		&rule.Condition,
		&recipientType,
		&rule.PhoneField,
		&rule.FixedRecipients,
		&rule.GroupID,
		&rule.GroupName,
		&rule.MessageTemplate,
		&rule.NotifyOwner,
		&rule.OwnerMessageTemplate,
		&rule.MediaURL,
		&rule.DelaySeconds,
		&rule.SendOnce,
		&rule.ActiveHoursStart,
		&rule.ActiveHoursEnd,
		&rule.Enabled,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Event = entity.EventType(event)
	rule.RecipientType = entity.RecipientType(recipientType)
	return &rule, nil
}
