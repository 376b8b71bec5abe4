package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/factory"
)

type Config struct {
	URL         string
	APIToken    string
	MaxAttempts int
	HTTPTimeout time.Duration
}

// Reporter posts conversion events to the external attribution endpoint.
// Delivery is best effort with bounded retries; failures are logged and
// dropped, never surfaced to the payment flow.
type Reporter struct {
	cfg    Config
	client *http.Client
	logger logrus.FieldLogger
}

func NewReporter(cfg Config) *Reporter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Reporter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("pix-conversion"),
	}
}

// Enabled reports whether an endpoint is configured.
func (r *Reporter) Enabled() bool {
	return strings.TrimSpace(r.cfg.URL) != ""
}

type reportPayload struct {
	OrderID    string            `json:"order_id"`
	ValueCents int64             `json:"value_cents"`
	Email      string            `json:"email,omitempty"`
	UTM        map[string]string `json:"utm,omitempty"`
	PaidAt     time.Time         `json:"paid_at"`
}

// ReportPaid posts one conversion for a paid payment, retrying transient
// failures up to MaxAttempts with growing delays. Safe to call from a
// goroutine; the passed context bounds the whole attempt sequence.
func (r *Reporter) ReportPaid(ctx context.Context, payment *entity.Payment) {
	if !r.Enabled() || payment == nil {
		return
	}

	payload, err := json.Marshal(reportPayload{
		OrderID:    payment.PaymentID,
		ValueCents: payment.TotalCents,
		Email:      payment.Customer.Email,
		UTM:        payment.UTM,
		PaidAt:     payment.UpdatedAt,
	})
	if err != nil {
		r.logger.WithError(err).WithField("payment_id", payment.PaymentID).Error("conversion payload encode failed")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if lastErr = r.post(ctx, payload); lastErr == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < r.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	r.logger.WithError(lastErr).WithField("payment_id", payment.PaymentID).Warn("conversion report dropped")
}

func (r *Reporter) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(r.cfg.APIToken); token != "" {
		req.Header.Set("x-api-token", token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("conversion endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
