package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/entretech/zapnotify/internal/entity"
)

type MessageLogRepository struct {
	DB *sql.DB
}

func NewMessageLogRepository(db *sql.DB) *MessageLogRepository {
	return &MessageLogRepository{DB: db}
}

const logColumns = `
	id, phone, formatted_phone, message, media_url, caption,
	reference_doctype, reference_name, notification_rule, recipient_name,
	status, error_message, retry_count, provider_message_id,
	scheduled_time, sent_at, created_at, updated_at`

func (r *MessageLogRepository) Create(ctx context.Context, entry *entity.MessageLogEntry) error {
	query := `
		INSERT INTO message_log (
			id, phone, formatted_phone, message, media_url, caption,
			reference_doctype, reference_name, notification_rule, recipient_name,
			status, error_message, retry_count, provider_message_id,
			scheduled_time, sent_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.Phone,
		entry.FormattedPhone,
		entry.Message,
		entry.MediaURL,
		entry.Caption,
		entry.ReferenceDoctype,
		entry.ReferenceName,
		entry.NotificationRule,
		entry.RecipientName,
		string(entry.Status),
		entry.ErrorMessage,
		entry.RetryCount,
		entry.ProviderMessageID,
		entry.ScheduledTime,
		entry.SentAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("falha ao gravar entrada do log: %w", err)
	}
	return nil
}

func (r *MessageLogRepository) FindByID(ctx context.Context, id string) (*entity.MessageLogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM message_log WHERE id = $1`
	return scanLogEntry(r.DB.QueryRowContext(ctx, query, id))
}

func (r *MessageLogRepository) FindByProviderMessageID(ctx context.Context, providerID string) (*entity.MessageLogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM message_log
		WHERE provider_message_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	entry, err := scanLogEntry(r.DB.QueryRowContext(ctx, query, providerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// UpdateStatusIf é o compare-and-swap central do ciclo de vida: a cláusula
// WHERE garante que só um dos workers concorrentes aplica a transição.
func (r *MessageLogRepository) UpdateStatusIf(ctx context.Context, id string, from, to entity.MessageStatus) (bool, error) {
	query := `
		UPDATE message_log
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	res, err := r.DB.ExecContext(ctx, query, string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkSent: Sending → Sent, grava o ID do provedor e o sent_at
func (r *MessageLogRepository) MarkSent(ctx context.Context, id, providerMessageID string) (bool, error) {
	query := `
		UPDATE message_log
		SET status = $1, provider_message_id = $2, error_message = '',
		    sent_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.StatusSent), providerMessageID, id, string(entity.StatusSending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkFailed: Sending → Failed. incrementRetry conta a tentativa consumida.
func (r *MessageLogRepository) MarkFailed(ctx context.Context, id, errorMessage string, incrementRetry bool) (bool, error) {
	inc := 0
	if incrementRetry {
		inc = 1
	}
	query := `
		UPDATE message_log
		SET status = $1, error_message = $2, retry_count = retry_count + $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.StatusFailed), errorMessage, inc, id, string(entity.StatusSending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RequeueForRetry: Failed/Cancelled → Queued. retry_count fica como está,
// o histórico de tentativas nunca é zerado.
func (r *MessageLogRepository) RequeueForRetry(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE message_log
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
	`
	res, err := r.DB.ExecContext(ctx, query,
		string(entity.StatusQueued), id,
		string(entity.StatusFailed), string(entity.StatusCancelled))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FindRetryable seleciona as Failed elegíveis para retry automático:
// abaixo do teto de tentativas e fora da janela de backoff exponencial
// (base * 2^retry_count, limitada ao teto).
func (r *MessageLogRepository) FindRetryable(ctx context.Context, maxRetries int, baseInterval, maxInterval time.Duration, limit int) ([]entity.MessageLogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM message_log
		WHERE status = $1
		  AND retry_count < $2
		  AND updated_at + make_interval(secs => LEAST(
		        $3::double precision * POWER(2, retry_count),
		        $4::double precision
		      )) <= NOW()
		ORDER BY updated_at ASC
		LIMIT $5
	`
	rows, err := r.DB.QueryContext(ctx, query,
		string(entity.StatusFailed), maxRetries,
		baseInterval.Seconds(), maxInterval.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// FindStuckSending pega entradas presas em Sending além do timeout
// (processo morreu no meio do envio)
func (r *MessageLogRepository) FindStuckSending(ctx context.Context, olderThan time.Duration, limit int) ([]entity.MessageLogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM message_log
		WHERE status = $1 AND updated_at <= NOW() - make_interval(secs => $2::double precision)
		ORDER BY updated_at ASC
		LIMIT $3
	`
	rows, err := r.DB.QueryContext(ctx, query,
		string(entity.StatusSending), olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// FindDueScheduled pega as Queued agendadas cujo horário já passou
func (r *MessageLogRepository) FindDueScheduled(ctx context.Context, limit int) ([]entity.MessageLogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM message_log
		WHERE status = $1
		  AND scheduled_time IS NOT NULL
		  AND scheduled_time <= NOW()
		ORDER BY scheduled_time ASC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, string(entity.StatusQueued), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// FindStaleQueued pega Pending/Queued sem agendamento paradas além do
// limite: a publicação na fila se perdeu (crash, fila fora) e ninguém
// mais vai processá-las sozinho
func (r *MessageLogRepository) FindStaleQueued(ctx context.Context, olderThan time.Duration, limit int) ([]entity.MessageLogEntry, error) {
	query := `
		SELECT ` + logColumns + `
		FROM message_log
		WHERE status IN ($1, $2)
		  AND scheduled_time IS NULL
		  AND updated_at <= NOW() - make_interval(secs => $3::double precision)
		ORDER BY updated_at ASC
		LIMIT $4
	`
	rows, err := r.DB.QueryContext(ctx, query,
		string(entity.StatusPending), string(entity.StatusQueued),
		olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// ExistsForRule responde se a regra já gerou mensagem para o documento
// (deduplicação do send_once). Cancelled não conta como "já enviado".
func (r *MessageLogRepository) ExistsForRule(ctx context.Context, ruleID, doctype, docname string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM message_log
			WHERE notification_rule = $1
			  AND reference_doctype = $2
			  AND reference_name = $3
			  AND status <> $4
		)
	`
	var exists bool
	err := r.DB.QueryRowContext(ctx, query, ruleID, doctype, docname,
		string(entity.StatusCancelled)).Scan(&exists)
	return exists, err
}

func (r *MessageLogRepository) Stats(ctx context.Context, since time.Time) (*entity.MessageStats, error) {
	query := `
		SELECT status, COUNT(*)
		FROM message_log
		WHERE created_at >= $1
		GROUP BY status
	`
	rows, err := r.DB.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &entity.MessageStats{ByStatus: make(map[entity.MessageStatus]int)}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		s := entity.MessageStatus(status)
		stats.ByStatus[s] = count
		stats.Total += count
		switch s {
		case entity.StatusSent, entity.StatusDelivered, entity.StatusRead:
			stats.Sent += count
		case entity.StatusFailed:
			stats.Failed += count
		case entity.StatusPending, entity.StatusQueued, entity.StatusSending:
			stats.Pending += count
		}
	}
	return stats, rows.Err()
}

// DeleteTerminalOlderThan remove entradas terminais antigas (retenção).
// Entradas ainda em voo nunca são apagadas.
func (r *MessageLogRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM message_log
		WHERE created_at < $1
		  AND status IN ($2, $3, $4, $5, $6)
	`
	res, err := r.DB.ExecContext(ctx, query, cutoff,
		string(entity.StatusSent), string(entity.StatusDelivered),
		string(entity.StatusRead), string(entity.StatusFailed),
		string(entity.StatusCancelled))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanLogEntry(row rowScanner) (*entity.MessageLogEntry, error) {
	var entry entity.MessageLogEntry
	var status string
	var scheduledTime, sentAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.Phone,
		&entry.FormattedPhone,
		&entry.Message,
		&entry.MediaURL,
		&entry.Caption,
		&entry.ReferenceDoctype,
		&entry.ReferenceName,
		&entry.NotificationRule,
		&entry.RecipientName,
		&status,
		&entry.ErrorMessage,
		&entry.RetryCount,
		&entry.ProviderMessageID,
		&scheduledTime,
		&sentAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Status = entity.MessageStatus(status)
	if scheduledTime.Valid {
		entry.ScheduledTime = &scheduledTime.Time
	}
	if sentAt.Valid {
		entry.SentAt = &sentAt.Time
	}
	return &entry, nil
}

func scanLogEntries(rows *sql.Rows) ([]entity.MessageLogEntry, error) {
	var entries []entity.MessageLogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
