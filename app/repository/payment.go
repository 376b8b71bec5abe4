package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
)

// Store is durable key-value persistence for payment records, keyed by the
// gateway transaction id. Set is an atomic per-key upsert: concurrent writers
// to different keys never lose each other's records.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Init creates the backing table if absent, seeded empty.
func (s *Store) Init(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS pix_payments (
			payment_id VARCHAR(128) NOT NULL PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			total_cents BIGINT NOT NULL,
			pix_qr_code_image MEDIUMTEXT NOT NULL,
			pix_code TEXT NOT NULL,
			pix_expires_at DATETIME NULL,
			customer_json TEXT NOT NULL,
			items_json TEXT NOT NULL,
			utm_json TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			KEY idx_pix_payments_status_expires (status, pix_expires_at),
			KEY idx_pix_payments_status_updated (status, updated_at)
		)
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get returns the record for a payment id, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, paymentID string) (*entity.Payment, error) {
	query := selectColumns + ` FROM pix_payments WHERE payment_id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(s.db.QueryRowContext(ctx, query, paymentID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

// Set upserts one record under its payment id.
func (s *Store) Set(ctx context.Context, payment *entity.Payment) error {
	customerJSON, err := serializeJSON(payment.Customer)
	if err != nil {
		return err
	}
	items := payment.Items
	if items == nil {
		items = []entity.Item{}
	}
	itemsJSON, err := serializeJSON(items)
	if err != nil {
		return err
	}
	utm := payment.UTM
	if utm == nil {
		utm = map[string]string{}
	}
	utmJSON, err := serializeJSON(utm)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pix_payments (
			payment_id, status, total_cents,
			pix_qr_code_image, pix_code, pix_expires_at,
			customer_json, items_json, utm_json,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			total_cents = VALUES(total_cents),
			pix_qr_code_image = VALUES(pix_qr_code_image),
			pix_code = VALUES(pix_code),
			pix_expires_at = VALUES(pix_expires_at),
			customer_json = VALUES(customer_json),
			items_json = VALUES(items_json),
			utm_json = VALUES(utm_json),
			updated_at = VALUES(updated_at)
	`

	_, err = s.db.ExecContext(ctx, query,
		payment.PaymentID,
		payment.Status,
		payment.TotalCents,
		payment.Pix.QRCodeImage,
		payment.Pix.PixCode,
		nullableTimeValue(payment.Pix.ExpiresAt),
		customerJSON,
		itemsJSON,
		utmJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	return err
}

// Size returns the number of stored records.
func (s *Store) Size(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pix_payments`).Scan(&count)
	return count, err
}

// ListExpiredWaiting returns waiting records whose QR code expired before
// cutoff.
func (s *Store) ListExpiredWaiting(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	query := selectColumns + `
		FROM pix_payments
		WHERE status = ? AND pix_expires_at IS NOT NULL AND pix_expires_at < ?
		ORDER BY pix_expires_at ASC
		LIMIT ?
	`
	return s.list(ctx, query, entity.StatusWaitingPayment, cutoff, limit)
}

// ListWaitingUpdatedBefore returns waiting records not touched since before,
// candidates for gateway reconciliation.
func (s *Store) ListWaitingUpdatedBefore(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := selectColumns + `
		FROM pix_payments
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return s.list(ctx, query, entity.StatusWaitingPayment, before, limit)
}

const selectColumns = `
	SELECT payment_id, status, total_cents,
		pix_qr_code_image, pix_code, pix_expires_at,
		customer_json, items_json, utm_json,
		created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner, payment *entity.Payment) error {
	var (
		expiresAt    sql.NullTime
		customerJSON string
		itemsJSON    string
		utmJSON      string
	)

	if err := row.Scan(
		&payment.PaymentID,
		&payment.Status,
		&payment.TotalCents,
		&payment.Pix.QRCodeImage,
		&payment.Pix.PixCode,
		&expiresAt,
		&customerJSON,
		&itemsJSON,
		&utmJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		return err
	}

	payment.Pix.ExpiresAt = timeFromNull(expiresAt)
	payment.Pix.AmountCents = payment.TotalCents

	if err := parseJSON(customerJSON, &payment.Customer); err != nil {
		return err
	}
	if err := parseJSON(itemsJSON, &payment.Items); err != nil {
		return err
	}
	if err := parseJSON(utmJSON, &payment.UTM); err != nil {
		return err
	}
	if payment.Items == nil {
		payment.Items = []entity.Item{}
	}
	if payment.UTM == nil {
		payment.UTM = map[string]string{}
	}

	return nil
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Payment, 0)
	for rows.Next() {
		payment := &entity.Payment{}
		if err := scanPayment(rows, payment); err != nil {
			return nil, err
		}
		items = append(items, payment)
	}
	return items, rows.Err()
}
