package service

import (
	"context"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/stream"
)

// RunExpirePendingBatch cancels waiting payments whose QR code expired past
// the configured grace. The gateway never calls back for an abandoned PIX
// charge; without this job those records wait forever.
func (s *PaymentService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.jobsCfg.ExpireGrace)

	items, err := s.store.ListExpiredWaiting(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil {
			continue
		}
		if _, err := s.transition(ctx, payment, entity.StatusCanceled, stream.EventPaymentExpired); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunReconcileBatch asks the gateway for the current status of waiting
// payments that have not moved in a while, covering webhooks lost in
// transit. Transitions flow through the same forward-only machine the
// webhook path uses.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.jobsCfg.ReconcileStaleAfter)

	items, err := s.store.ListWaitingUpdatedBefore(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || strings.TrimSpace(payment.PaymentID) == "" {
			continue
		}

		newStatus, err := s.gateway.GetTransactionStatus(ctx, payment.PaymentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if newStatus == "" || newStatus == payment.Status {
			continue
		}

		if _, err := s.transition(ctx, payment, newStatus, reconcileEventType(newStatus)); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func reconcileEventType(status string) string {
	switch status {
	case entity.StatusPaid:
		return stream.EventPaymentPaid
	case entity.StatusCanceled:
		return stream.EventPaymentExpired
	default:
		return "payment_reconciled"
	}
}

func keepFirstErr(current, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
