package entity

import "time"

const (
	WebhookEventProcessed int32 = 10
	WebhookEventIgnored   int32 = 15
	WebhookEventRejected  int32 = 20
)

// WebhookEvent is the audit record of one inbound gateway callback, stored
// whether or not it authenticated.
type WebhookEvent struct {
	ID uint64

	PaymentID *string

	EventType   string
	Signature   string
	PayloadJSON string
	Status      int32
	Error       *string

	CreatedAt time.Time
}
