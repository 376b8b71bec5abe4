package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
)

var ErrCredentialsMissing = errors.New("pix gateway credentials are not configured")

// Error carries the upstream status and body of a failed gateway call so the
// caller can log it in full while returning a redacted response to clients.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("pix gateway request failed: status=%d body=%s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL     string
	APIKey      string
	APISecret   string
	HTTPTimeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type CreateInput struct {
	AmountCents     int64
	Customer        entity.Customer
	Items           []entity.Item
	ShippingAddress *entity.ShippingAddress
	PostbackURL     string
}

type CreateOutput struct {
	TransactionID string
	QRCodeImage   string
	PixCode       string
	ExpiresAt     time.Time
}

type transactionRequest struct {
	Amount        int64                `json:"amount"`
	PaymentMethod string               `json:"payment_method"`
	Customer      transactionCustomer  `json:"customer"`
	Items         []transactionItem    `json:"items"`
	Shipping      *transactionShipping `json:"shipping,omitempty"`
	PostbackURL   string               `json:"postback_url,omitempty"`
}

type transactionCustomer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number,omitempty"`
	Document string `json:"document_number"`
}

type transactionItem struct {
	Title     string `json:"title"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Tangible  bool   `json:"tangible"`
}

type transactionShipping struct {
	Street     string `json:"street"`
	Number     string `json:"street_number"`
	Complement string `json:"complementary,omitempty"`
	District   string `json:"neighborhood"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zipcode"`
}

type transactionResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	QRCodeImage string `json:"pix_qr_code_image"`
	PixCode     string `json:"pix_qr_code"`
	ExpiresAt   string `json:"pix_expiration_date"`
}

// CreateTransaction creates one PIX transaction with the gateway. Two calls
// with identical input produce two distinct transactions; the gateway exposes
// no idempotency key.
func (c *Client) CreateTransaction(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	auth, err := c.basicAuth()
	if err != nil {
		return nil, err
	}
	if input.AmountCents <= 0 {
		return nil, errors.New("amount must be a positive number of cents")
	}

	items := make([]transactionItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, transactionItem{
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPriceCents,
			Tangible:  item.Tangible,
		})
	}

	payload := transactionRequest{
		Amount:        input.AmountCents,
		PaymentMethod: "pix",
		Customer: transactionCustomer{
			Name:     strings.TrimSpace(input.Customer.Name),
			Email:    strings.TrimSpace(input.Customer.Email),
			Phone:    DigitsOnly(input.Customer.Phone),
			Document: DigitsOnly(input.Customer.Document),
		},
		Items:       items,
		PostbackURL: strings.TrimSpace(input.PostbackURL),
	}
	if input.ShippingAddress != nil {
		payload.Shipping = &transactionShipping{
			Street:     input.ShippingAddress.Street,
			Number:     input.ShippingAddress.Number,
			Complement: input.ShippingAddress.Complement,
			District:   input.ShippingAddress.District,
			City:       input.ShippingAddress.City,
			State:      input.ShippingAddress.State,
			ZipCode:    input.ShippingAddress.ZipCode,
		}
	}

	body, err := c.postJSON(ctx, "/v1/transactions", auth, payload)
	if err != nil {
		return nil, err
	}

	var parsed transactionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("pix gateway returned malformed transaction payload: %w", err)
	}
	if strings.TrimSpace(parsed.ID) == "" {
		return nil, errors.New("pix gateway transaction id missing")
	}

	return &CreateOutput{
		TransactionID: strings.TrimSpace(parsed.ID),
		QRCodeImage:   strings.TrimSpace(parsed.QRCodeImage),
		PixCode:       strings.TrimSpace(parsed.PixCode),
		ExpiresAt:     parseExpiration(parsed.ExpiresAt),
	}, nil
}

// GetTransactionStatus asks the gateway for the current status of a
// transaction, mapped to the lifecycle statuses. An unknown upstream status
// maps to empty string.
func (c *Client) GetTransactionStatus(ctx context.Context, transactionID string) (string, error) {
	auth, err := c.basicAuth()
	if err != nil {
		return "", err
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return "", errors.New("transaction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/transactions/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", auth)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed transactionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}

	switch parsed.Status {
	case "paid", "approved":
		return entity.StatusPaid, nil
	case "waiting_payment", "pending":
		return entity.StatusWaitingPayment, nil
	case "refused", "failed":
		return entity.StatusFailed, nil
	case "canceled", "expired":
		return entity.StatusCanceled, nil
	default:
		return "", nil
	}
}

func (c *Client) postJSON(ctx context.Context, path, auth string, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func (c *Client) basicAuth() (string, error) {
	key := strings.TrimSpace(c.cfg.APIKey)
	secret := strings.TrimSpace(c.cfg.APISecret)
	if key == "" || secret == "" {
		return "", ErrCredentialsMissing
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret)), nil
}

// DigitsOnly strips every non-digit character from a phone or document number.
func DigitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseExpiration(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
