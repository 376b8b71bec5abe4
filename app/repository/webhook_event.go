package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
)

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Init(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS pix_webhook_events (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			payment_id VARCHAR(128) NULL,
			event_type VARCHAR(64) NOT NULL,
			signature VARCHAR(256) NOT NULL,
			payload_json MEDIUMTEXT NOT NULL,
			status INT NOT NULL,
			error VARCHAR(1024) NULL,
			created_at DATETIME NOT NULL,
			KEY idx_pix_webhook_events_payment (payment_id)
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO pix_webhook_events (
			payment_id, event_type, signature, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(event.PaymentID),
		event.EventType,
		event.Signature,
		event.PayloadJSON,
		event.Status,
		nullableStringValue(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

// ListByPaymentID returns the delivery history for one payment, newest first.
func (r *WebhookEventRepository) ListByPaymentID(ctx context.Context, paymentID string, limit int32) ([]*entity.WebhookEvent, error) {
	query := `
		SELECT id, payment_id, event_type, signature, payload_json, status, error, created_at
		FROM pix_webhook_events
		WHERE payment_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.WebhookEvent, 0)
	for rows.Next() {
		event := &entity.WebhookEvent{}
		var (
			eventPaymentID sql.NullString
			eventError     sql.NullString
		)
		if err := rows.Scan(
			&event.ID,
			&eventPaymentID,
			&event.EventType,
			&event.Signature,
			&event.PayloadJSON,
			&event.Status,
			&eventError,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		event.PaymentID = stringPtrFromNull(eventPaymentID)
		event.Error = stringPtrFromNull(eventError)
		items = append(items, event)
	}
	return items, rows.Err()
}
