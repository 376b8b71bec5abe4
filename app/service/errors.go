package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrWebhookRejected      = errors.New("webhook rejected")
	ErrWebhookNotConfigured = errors.New("webhook secret is not configured")
	ErrSimulationDisabled   = errors.New("payment simulation is disabled")
)
