//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/gateway"
	"github.com/vibast-solutions/ms-go-pix/app/poller"
	"github.com/vibast-solutions/ms-go-pix/app/types"
)

const defaultPixHTTPBase = "http://localhost:48080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func (c *httpClient) postWebhook(t *testing.T, rawBody []byte, signature string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/pix/webhook", bytes.NewReader(rawBody))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

func webhookSecret() string {
	if secret := os.Getenv("PIX_WEBHOOK_SECRET"); secret != "" {
		return secret
	}
	return "e2e-webhook-secret"
}

func TestPixE2E(t *testing.T) {
	httpBase := os.Getenv("PIX_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultPixHTTPBase
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)
	verifier := gateway.NewVerifier(webhookSecret(), nil)

	var paymentID string

	t.Run("CreateValidation", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/api/pix/create", map[string]any{})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for empty create request, got %d body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("CreatePayment", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/api/pix/create", map[string]any{
			"amount": 39.90,
			"name":   "Maria Souza",
			"email":  fmt.Sprintf("maria+%d@example.com", time.Now().UnixNano()),
			"cpf":    "52998224725",
			"phone":  "11988887777",
			"utm":    map[string]string{"utm_source": "e2e"},
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, string(body))
		}

		var payload types.CreatePixResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal create response failed: %v body=%s", err, string(body))
		}
		if payload.PaymentID == "" || payload.PixCode == "" {
			t.Fatalf("expected payment id and pix code, got %+v", payload)
		}
		paymentID = payload.PaymentID
	})

	t.Run("StatusStartsWaiting", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/api/pix/status/"+paymentID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var payload types.StatusResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal status failed: %v", err)
		}
		if payload.Status != "waiting_payment" {
			t.Fatalf("expected waiting_payment, got %s", payload.Status)
		}
	})

	t.Run("StatusUnknownIDStillWaiting", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/api/pix/status/tx_does_not_exist", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for unknown id, got %d", resp.StatusCode)
		}
		var payload types.StatusResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal status failed: %v", err)
		}
		if payload.Status != "waiting_payment" {
			t.Fatalf("expected waiting_payment for unknown id, got %s", payload.Status)
		}
	})

	t.Run("GetPaymentReceipt", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/api/pix/"+paymentID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}
		var payload types.PaymentResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal payment failed: %v", err)
		}
		if payload.TotalCents != 3990 {
			t.Fatalf("expected 3990 cents, got %d", payload.TotalCents)
		}
	})

	t.Run("WebhookRejectsBadSignature", func(t *testing.T) {
		rawBody := []byte(`{"event":"transaction.paid","payload":{"external_id":"` + paymentID + `"}}`)
		resp, _ := client.postWebhook(t, rawBody, "deadbeef")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for bad signature, got %d", resp.StatusCode)
		}
	})

	t.Run("WebhookMarksPaid", func(t *testing.T) {
		rawBody := []byte(`{"event":"transaction.paid","payload":{"external_id":"` + paymentID + `"}}`)
		resp, body := client.postWebhook(t, rawBody, verifier.Sign(rawBody))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, string(body))
		}

		// Replay must be acknowledged without changing anything.
		resp, _ = client.postWebhook(t, rawBody, verifier.Sign(rawBody))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on replay, got %d", resp.StatusCode)
		}
	})

	t.Run("PollerObservesPaid", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		p := poller.New(poller.Config{BaseURL: httpBase, Interval: 500 * time.Millisecond})
		status, err := p.Wait(ctx, paymentID)
		if err != nil {
			t.Fatalf("poller failed: %v", err)
		}
		if status != "paid" {
			t.Fatalf("expected paid, got %s", status)
		}
	})

	t.Run("WebhookUnknownPaymentAcknowledged", func(t *testing.T) {
		rawBody := []byte(`{"event":"transaction.paid","payload":{"external_id":"tx_unknown_e2e"}}`)
		resp, _ := client.postWebhook(t, rawBody, verifier.Sign(rawBody))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 for unknown payment, got %d", resp.StatusCode)
		}
	})
}
