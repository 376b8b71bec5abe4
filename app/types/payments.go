package types

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/labstack/echo/v4"
)

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ShippingAddress struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
}

// CreatePixRequest is the checkout payload. Amount arrives in decimal major
// units (BRL); it is converted to integer cents before anything else touches
// it.
type CreatePixRequest struct {
	Amount float64 `json:"amount"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	CPF    string  `json:"cpf"`
	Phone  string  `json:"phone"`

	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`

	UTM map[string]string `json:"utm,omitempty"`
}

func NewCreatePixRequestFromContext(ctx echo.Context) (*CreatePixRequest, error) {
	var body CreatePixRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	body.CPF = strings.TrimSpace(body.CPF)
	body.Phone = strings.TrimSpace(body.Phone)

	return &body, nil
}

// Validate names every missing required field in one message.
func (r *CreatePixRequest) Validate() error {
	missing := make([]string, 0, 4)
	if r.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if r.Name == "" {
		missing = append(missing, "name")
	}
	if r.Email == "" {
		missing = append(missing, "email")
	}
	if r.CPF == "" {
		missing = append(missing, "cpf")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AmountCents converts the decimal major-unit amount to integer cents.
func (r *CreatePixRequest) AmountCents() int64 {
	return int64(math.Round(r.Amount * 100))
}

type GetPaymentRequest struct {
	PaymentID string
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	return &GetPaymentRequest{PaymentID: strings.TrimSpace(ctx.Param("paymentId"))}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.PaymentID == "" {
		return errors.New("payment id is required")
	}
	return nil
}

type CreatePixResponse struct {
	PaymentID   string `json:"paymentId"`
	QRCodeImage string `json:"qrCodeImage"`
	PixCode     string `json:"pixCode"`
	ExpiresAt   string `json:"expiresAt"`
}

type CustomerResponse struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document"`
}

type ItemResponse struct {
	Title          string `json:"title"`
	Quantity       int32  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Tangible       bool   `json:"tangible"`
}

// PaymentResponse merges the stored snapshot with the pix display fields for
// receipt rendering.
type PaymentResponse struct {
	PaymentID   string            `json:"paymentId"`
	Status      string            `json:"status"`
	TotalCents  int64             `json:"totalCents"`
	QRCodeImage string            `json:"qrCodeImage"`
	PixCode     string            `json:"pixCode"`
	ExpiresAt   string            `json:"expiresAt"`
	Customer    CustomerResponse  `json:"customer"`
	Items       []ItemResponse    `json:"items"`
	UTM         map[string]string `json:"utm,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
