package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/factory"
	"github.com/vibast-solutions/ms-go-pix/app/gateway"
	"github.com/vibast-solutions/ms-go-pix/app/stream"
	"github.com/vibast-solutions/ms-go-pix/app/types"
	"github.com/vibast-solutions/ms-go-pix/config"
)

const defaultBatchSize = int32(100)

type paymentStore interface {
	Get(ctx context.Context, paymentID string) (*entity.Payment, error)
	Set(ctx context.Context, payment *entity.Payment) error
	Size(ctx context.Context) (int64, error)
	ListExpiredWaiting(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error)
	ListWaitingUpdatedBefore(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type gatewayClient interface {
	CreateTransaction(ctx context.Context, input *gateway.CreateInput) (*gateway.CreateOutput, error)
	GetTransactionStatus(ctx context.Context, transactionID string) (string, error)
}

type webhookVerifier interface {
	Configured() bool
	Verify(rawBody []byte, header http.Header) error
	Signature(header http.Header) string
}

type webhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
}

type statusCache interface {
	GetStatus(ctx context.Context, paymentID string) string
	SetStatus(ctx context.Context, paymentID, status string)
}

type eventPublisher interface {
	Publish(event stream.Event) error
}

type conversionReporter interface {
	Enabled() bool
	ReportPaid(ctx context.Context, payment *entity.Payment)
}

type PaymentService struct {
	store       paymentStore
	gateway     gatewayClient
	verifier    webhookVerifier
	webhookRepo webhookEventRepository
	cache       statusCache
	publisher   eventPublisher
	reporter    conversionReporter
	jobsCfg     config.JobsConfig
	pixExpiry   time.Duration
	mockMode    bool
	logger      logrus.FieldLogger
}

func NewPaymentService(
	store paymentStore,
	gatewayClient gatewayClient,
	verifier webhookVerifier,
	webhookRepo webhookEventRepository,
	jobsCfg config.JobsConfig,
	pixExpiry time.Duration,
	mockMode bool,
) *PaymentService {
	if pixExpiry <= 0 {
		pixExpiry = 30 * time.Minute
	}

	return &PaymentService{
		store:       store,
		gateway:     gatewayClient,
		verifier:    verifier,
		webhookRepo: webhookRepo,
		jobsCfg:     jobsCfg,
		pixExpiry:   pixExpiry,
		mockMode:    mockMode,
		logger:      factory.NewModuleLogger("pix-service"),
	}
}

// WithStatusCache attaches the optional read-through status cache.
func (s *PaymentService) WithStatusCache(cache statusCache) *PaymentService {
	s.cache = cache
	return s
}

// WithPublisher attaches the optional payment event stream.
func (s *PaymentService) WithPublisher(publisher eventPublisher) *PaymentService {
	s.publisher = publisher
	return s
}

// WithConversionReporter attaches the optional attribution collaborator.
func (s *PaymentService) WithConversionReporter(reporter conversionReporter) *PaymentService {
	s.reporter = reporter
	return s
}

// CreatePayment creates one gateway transaction and records it in
// waiting_payment. The whole order is represented as a single synthetic line
// item; the customer snapshot is normalized to digits-only phone and
// document.
func (s *PaymentService) CreatePayment(ctx context.Context, req *types.CreatePixRequest) (*entity.Payment, error) {
	if req == nil || req.Validate() != nil {
		return nil, ErrInvalidRequest
	}

	amountCents := req.AmountCents()
	customer := entity.Customer{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    gateway.DigitsOnly(req.Phone),
		Document: gateway.DigitsOnly(req.CPF),
	}
	items := []entity.Item{{
		Title:          "Pedido online",
		Quantity:       1,
		UnitPriceCents: amountCents,
		Tangible:       false,
	}}

	var shipping *entity.ShippingAddress
	if req.ShippingAddress != nil {
		shipping = &entity.ShippingAddress{
			Street:     req.ShippingAddress.Street,
			Number:     req.ShippingAddress.Number,
			Complement: req.ShippingAddress.Complement,
			District:   req.ShippingAddress.District,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			ZipCode:    req.ShippingAddress.ZipCode,
		}
	}

	output, err := s.gateway.CreateTransaction(ctx, &gateway.CreateInput{
		AmountCents:     amountCents,
		Customer:        customer,
		Items:           items,
		ShippingAddress: shipping,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	expiresAt := output.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.pixExpiry)
	}

	payment := &entity.Payment{
		PaymentID: output.TransactionID,
		Status:    entity.StatusWaitingPayment,
		Pix: entity.PixData{
			QRCodeImage: output.QRCodeImage,
			PixCode:     output.PixCode,
			ExpiresAt:   expiresAt,
			AmountCents: amountCents,
		},
		Customer:   customer,
		Items:      items,
		TotalCents: amountCents,
		UTM:        cloneUTM(req.UTM),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Set(ctx, payment); err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, payment.PaymentID, payment.Status)
	s.publish(stream.EventPaymentCreated, payment)

	return payment, nil
}

// GetPayment returns the full stored record for receipt rendering.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*entity.Payment, error) {
	payment, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// GetStatus is the lightweight projection backing the confirmation poller.
// An unknown payment id reads as waiting_payment so the poller stays simple.
func (s *PaymentService) GetStatus(ctx context.Context, paymentID string) (string, error) {
	if s.cache != nil {
		if cached := s.cache.GetStatus(ctx, paymentID); cached != "" {
			return cached, nil
		}
	}

	payment, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return "", err
	}

	status := entity.StatusWaitingPayment
	if payment != nil {
		status = payment.Status
	}
	s.cacheStatus(ctx, paymentID, status)
	return status, nil
}

// SimulatePayment forcibly marks a payment paid without gateway involvement.
// Hard-rejected unless mock mode is enabled, regardless of environment.
func (s *PaymentService) SimulatePayment(ctx context.Context, paymentID string) (*entity.Payment, error) {
	if !s.mockMode {
		return nil, ErrSimulationDisabled
	}

	payment, err := s.store.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	if _, err := s.transition(ctx, payment, entity.StatusPaid, stream.EventPaymentPaid); err != nil {
		return nil, err
	}
	return payment, nil
}

// transition applies the forward-only status machine. Terminal states admit
// no further moves; a no-op transition reports changed=false and performs no
// side effects, which is what makes webhook replay idempotent.
func (s *PaymentService) transition(ctx context.Context, payment *entity.Payment, newStatus, eventType string) (bool, error) {
	if !entity.ValidStatus(newStatus) || payment.Status == newStatus || entity.TerminalStatus(payment.Status) {
		return false, nil
	}

	payment.Status = newStatus
	payment.UpdatedAt = time.Now().UTC()

	if err := s.store.Set(ctx, payment); err != nil {
		return false, err
	}

	s.cacheStatus(ctx, payment.PaymentID, payment.Status)
	s.publish(eventType, payment)

	if newStatus == entity.StatusPaid {
		s.dispatchConversionReport(payment)
	}

	return true, nil
}

// dispatchConversionReport hands the paid payment to the attribution
// collaborator on a detached context so webhook latency is unaffected.
func (s *PaymentService) dispatchConversionReport(payment *entity.Payment) {
	if s.reporter == nil || !s.reporter.Enabled() || len(payment.UTM) == 0 {
		return
	}

	snapshot := *payment
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.reporter.ReportPaid(ctx, &snapshot)
	}()
}

func (s *PaymentService) cacheStatus(ctx context.Context, paymentID, status string) {
	if s.cache != nil {
		s.cache.SetStatus(ctx, paymentID, status)
	}
}

func (s *PaymentService) publish(eventType string, payment *entity.Payment) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(stream.Event{
		EventType:  eventType,
		PaymentID:  payment.PaymentID,
		Status:     payment.Status,
		TotalCents: payment.TotalCents,
		Email:      payment.Customer.Email,
		OccurredAt: payment.UpdatedAt,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"payment_id": payment.PaymentID,
		}).Warn("payment event publish failed")
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.jobsCfg.BatchSize > 0 {
		return s.jobsCfg.BatchSize
	}
	return defaultBatchSize
}

func cloneUTM(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
