package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/gateway"
	"github.com/vibast-solutions/ms-go-pix/app/stream"
)

const eventTransactionPaid = "transaction.paid"

type webhookBody struct {
	Event   string `json:"event"`
	Payload struct {
		ExternalID string `json:"external_id"`
		ID         string `json:"id"`
	} `json:"payload"`
}

// HandleGatewayWebhook authenticates and processes one gateway callback.
// rawBody must be the exact bytes received on the wire; the signature covers
// them, not any re-serialization.
//
// Processing is idempotent under at-least-once delivery: a replayed "paid"
// event finds the record already terminal and changes nothing. Unknown events
// and unknown payments are acknowledged (nil error) so the gateway does not
// retry-storm; only authentication and configuration failures reject.
func (s *PaymentService) HandleGatewayWebhook(ctx context.Context, rawBody []byte, header http.Header) error {
	if !s.verifier.Configured() {
		return ErrWebhookNotConfigured
	}

	if err := s.verifier.Verify(rawBody, header); err != nil {
		if errors.Is(err, gateway.ErrWebhookSecretMissing) {
			return ErrWebhookNotConfigured
		}
		s.recordWebhookEvent(ctx, nil, "", header, rawBody, entity.WebhookEventRejected, err.Error())
		return ErrWebhookRejected
	}

	var body webhookBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		s.recordWebhookEvent(ctx, nil, "", header, rawBody, entity.WebhookEventRejected, "malformed webhook payload")
		return ErrWebhookRejected
	}

	eventType := strings.TrimSpace(body.Event)
	paymentID := strings.TrimSpace(body.Payload.ExternalID)
	if paymentID == "" {
		paymentID = strings.TrimSpace(body.Payload.ID)
	}

	if eventType != eventTransactionPaid || paymentID == "" {
		s.recordWebhookEvent(ctx, optionalID(paymentID), eventType, header, rawBody, entity.WebhookEventIgnored, "")
		return nil
	}

	payment, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		s.logger.WithField("payment_id", paymentID).Warn("webhook for unknown payment")
		s.recordWebhookEvent(ctx, &paymentID, eventType, header, rawBody, entity.WebhookEventIgnored, "payment not found")
		return nil
	}

	changed, err := s.transition(ctx, payment, entity.StatusPaid, stream.EventPaymentPaid)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.WithField("payment_id", paymentID).Info("webhook replay ignored, payment already terminal")
	}

	s.recordWebhookEvent(ctx, &paymentID, eventType, header, rawBody, entity.WebhookEventProcessed, "")
	return nil
}

func (s *PaymentService) recordWebhookEvent(
	ctx context.Context,
	paymentID *string,
	eventType string,
	header http.Header,
	rawBody []byte,
	status int32,
	reason string,
) {
	if s.webhookRepo == nil {
		return
	}

	event := &entity.WebhookEvent{
		PaymentID:   paymentID,
		EventType:   eventType,
		Signature:   s.verifier.Signature(header),
		PayloadJSON: string(rawBody),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		trimmed := truncate(reason, 1024)
		event.Error = &trimmed
	}

	if err := s.webhookRepo.Create(ctx, event); err != nil {
		s.logger.WithError(err).Warn("webhook audit record failed")
	}
}

func optionalID(id string) *string {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return &id
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
