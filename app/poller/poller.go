package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/factory"
)

var ErrPollingStopped = errors.New("polling stopped before a terminal status")

type Config struct {
	BaseURL     string
	Interval    time.Duration
	MaxBackoff  time.Duration
	HTTPTimeout time.Duration
}

// Poller repeatedly asks the status projection whether a payment reached a
// terminal state. The loop is strictly single-flight: each tick issues one
// request and waits for it before the next.
type Poller struct {
	cfg    Config
	client *http.Client
	logger logrus.FieldLogger
}

func New(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = 30 * time.Second
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Poller{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("pix-poller"),
	}
}

// Wait polls until the payment leaves waiting_payment or ctx is done.
// Transport failures back off exponentially up to MaxBackoff and reset on the
// next successful tick; callers bound the loop with a ctx deadline, normally
// the payment's expiresAt.
func (p *Poller) Wait(ctx context.Context, paymentID string) (string, error) {
	delay := p.cfg.Interval
	failures := 0

	for {
		status, err := p.fetchStatus(ctx, paymentID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ErrPollingStopped
			}
			failures++
			delay = p.backoff(failures)
			p.logger.WithError(err).WithFields(logrus.Fields{
				"payment_id": paymentID,
				"next_tick":  delay.String(),
			}).Warn("status poll failed")
		case status != entity.StatusWaitingPayment:
			return status, nil
		default:
			failures = 0
			delay = p.cfg.Interval
		}

		select {
		case <-ctx.Done():
			return "", ErrPollingStopped
		case <-time.After(delay):
		}
	}
}

func (p *Poller) fetchStatus(ctx context.Context, paymentID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/pix/status/"+paymentID, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if !entity.ValidStatus(parsed.Status) {
		return "", fmt.Errorf("status endpoint returned unknown status %q", parsed.Status)
	}

	return parsed.Status, nil
}

func (p *Poller) backoff(failures int) time.Duration {
	delay := p.cfg.Interval
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	if delay > p.cfg.MaxBackoff {
		return p.cfg.MaxBackoff
	}
	return delay
}
