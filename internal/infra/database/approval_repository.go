package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

type ApprovalRepository struct {
	DB *sql.DB
}

func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{DB: db}
}

const approvalColumns = `
	id, template_id, reference_doctype, reference_name,
	recipient_phone, formatted_phone, recipient_name, sent_options,
	status, conversation_id, message_log_id,
	response_option, response_text, response_from, action_executed,
	error_message, responded_at, sent_at, expires_at, created_at, updated_at`

func (r *ApprovalRepository) Create(ctx context.Context, req *entity.ApprovalRequest) error {
	// opções congeladas como JSON: o template pode mudar depois do envio
	options, err := json.Marshal(req.SentOptions)
	if err != nil {
		return fmt.Errorf("falha ao serializar opções: %w", err)
	}

	query := `
		INSERT INTO approval_requests (
			id, template_id, reference_doctype, reference_name,
			recipient_phone, formatted_phone, recipient_name, sent_options,
			status, conversation_id, message_log_id,
			response_option, response_text, response_from, action_executed,
			error_message, responded_at, sent_at, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`

	_, err = r.DB.ExecContext(
		ctx,
		query,
		req.ID,
		req.TemplateID,
		req.ReferenceDoctype,
		req.ReferenceName,
		req.RecipientPhone,
		req.FormattedPhone,
		req.RecipientName,
		options,
		string(req.Status),
		req.ConversationID,
		req.MessageLogID,
		req.ResponseOption,
		req.ResponseText,
		req.ResponseFrom,
		req.ActionExecuted,
		req.ErrorMessage,
		req.RespondedAt,
		req.SentAt,
		req.ExpiresAt,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("falha ao criar pedido de aprovação: %w", err)
	}
	return nil
}

func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*entity.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`
	return scanApproval(r.DB.QueryRowContext(ctx, query, id))
}

func (r *ApprovalRepository) FindPendingByConversation(ctx context.Context, conversationID string) (*entity.ApprovalRequest, error) {
	return r.findOnePending(ctx, `conversation_id = $1`, conversationID)
}

func (r *ApprovalRepository) FindPendingByPhone(ctx context.Context, formattedPhone string) (*entity.ApprovalRequest, error) {
	return r.findOnePending(ctx, `formatted_phone = $1`, formattedPhone)
}

// FindPendingByPhoneSuffix casa pelos últimos dígitos, tolerante a variação
// de código de país entre o que salvamos e o que o provedor manda
func (r *ApprovalRepository) FindPendingByPhoneSuffix(ctx context.Context, suffix string) (*entity.ApprovalRequest, error) {
	return r.findOnePending(ctx, `formatted_phone LIKE '%' || $1`, suffix)
}

// findOnePending: mais recente primeiro, um pedido por vez
func (r *ApprovalRepository) findOnePending(ctx context.Context, where string, arg interface{}) (*entity.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE status = '` + string(entity.ApprovalPending) + `' AND ` + where + `
		ORDER BY sent_at DESC
		LIMIT 1
	`
	req, err := scanApproval(r.DB.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return req, err
}

func (r *ApprovalRepository) FindPendingForDocument(ctx context.Context, doctype, docname string) ([]entity.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_requests
		WHERE status = $1 AND reference_doctype = $2 AND reference_name = $3
		ORDER BY sent_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, string(entity.ApprovalPending), doctype, docname)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []entity.ApprovalRequest
	for rows.Next() {
		req, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

// MarkResponded: Pending → Responded, guardado pelo estado. A primeira
// resposta vence; a segunda vê zero linhas afetadas.
func (r *ApprovalRepository) MarkResponded(ctx context.Context, id string, option int, text, from, actionExecuted string) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = $1, response_option = $2, response_text = $3,
		    response_from = $4, action_executed = $5,
		    responded_at = NOW(), updated_at = NOW()
		WHERE id = $6 AND status = $7
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.ApprovalResponded), option, text, from, actionExecuted,
		id, string(entity.ApprovalPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ApprovalRepository) MarkCancelled(ctx context.Context, id, reason string) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.ApprovalCancelled), reason, id, string(entity.ApprovalPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *ApprovalRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE approval_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.ApprovalExpired), id, string(entity.ApprovalPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpirePending marca em lote os pendentes vencidos (sweep periódico)
func (r *ApprovalRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE approval_requests
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at <= $3
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.ApprovalExpired), string(entity.ApprovalPending), now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *ApprovalRepository) SetConversationID(ctx context.Context, id, conversationID string) error {
	query := `UPDATE approval_requests SET conversation_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.DB.ExecContext(ctx, query, conversationID, id)
	return err
}

func (r *ApprovalRepository) SetActionExecuted(ctx context.Context, id, actionExecuted string) error {
	query := `UPDATE approval_requests SET action_executed = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.DB.ExecContext(ctx, query, actionExecuted, id)
	return err
}

func scanApproval(row rowScanner) (*entity.ApprovalRequest, error) {
	var req entity.ApprovalRequest
	var status string
	var options []byte
	var respondedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.TemplateID,
		&req.ReferenceDoctype,
		&req.ReferenceName,
		&req.RecipientPhone,
		&req.FormattedPhone,
		&req.RecipientName,
		&options,
		&status,
		&req.ConversationID,
		&req.MessageLogID,
		&req.ResponseOption,
		&req.ResponseText,
		&req.ResponseFrom,
		&req.ActionExecuted,
		&req.ErrorMessage,
		&respondedAt,
		&req.SentAt,
		&req.ExpiresAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = entity.ApprovalStatus(status)
	if respondedAt.Valid {
		req.RespondedAt = &respondedAt.Time
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &req.SentOptions); err != nil {
			return nil, fmt.Errorf("opções corrompidas no pedido %s: %w", req.ID, err)
		}
	}
	return &req, nil
}
