package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/entretech/zapnotify/internal/entity"
)

type ApprovalTemplateRepository struct {
	DB *sql.DB
}

func NewApprovalTemplateRepository(db *sql.DB) *ApprovalTemplateRepository {
	return &ApprovalTemplateRepository{DB: db}
}

func (r *ApprovalTemplateRepository) Create(ctx context.Context, tpl *entity.ApprovalTemplate) error {
	options, err := json.Marshal(tpl.Options)
	if err != nil {
		return fmt.Errorf("falha ao serializar opções: %w", err)
	}

	query := `
		INSERT INTO approval_templates (
			id, template_name, document_type, message_template, phone_field,
			options, expiry_hours, allow_multiple_pending, enabled, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.DB.ExecContext(
		ctx,
		query,
		tpl.ID,
		tpl.TemplateName,
		tpl.DocumentType,
		tpl.MessageTemplate,
		tpl.PhoneField,
		options,
		tpl.ExpiryHours,
		tpl.AllowMultiplePending,
		tpl.Enabled,
		tpl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("falha ao criar template de aprovação: %w", err)
	}
	return nil
}

func (r *ApprovalTemplateRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalTemplate, error) {
	query := `
		SELECT id, template_name, document_type, message_template, phone_field,
		       options, expiry_hours, allow_multiple_pending, enabled, created_at
		FROM approval_templates
		WHERE id = $1
	`

	var tpl entity.ApprovalTemplate
	var options []byte

	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&tpl.ID,
		&tpl.TemplateName,
		&tpl.DocumentType,
		&tpl.MessageTemplate,
		&tpl.PhoneField,
		&options,
		&tpl.ExpiryHours,
		&tpl.AllowMultiplePending,
		&tpl.Enabled,
		&tpl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &tpl.Options); err != nil {
			return nil, fmt.Errorf("opções corrompidas no template %s: %w", tpl.ID, err)
		}
	}
	return &tpl, nil
}
