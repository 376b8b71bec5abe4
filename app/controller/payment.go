package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-pix/app/entity"
	"github.com/vibast-solutions/ms-go-pix/app/factory"
	"github.com/vibast-solutions/ms-go-pix/app/mapper"
	"github.com/vibast-solutions/ms-go-pix/app/service"
	"github.com/vibast-solutions/ms-go-pix/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("pix-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) CreatePayment(ctx echo.Context) error {
	req, err := types.NewCreatePixRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.CreatePayment(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		// Upstream gateway bodies are logged in full but never echoed to the
		// client.
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create pix payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "payment creation failed")
	}

	return ctx.JSON(http.StatusCreated, mapper.PaymentToCreateResponse(item))
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.PaymentID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get pix payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentToResponse(item))
}

// GetStatus never 404s: pollers treat an unknown or unreadable record as
// still waiting.
func (c *PaymentController) GetStatus(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	status, err := c.paymentService.GetStatus(ctx.Request().Context(), req.PaymentID)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get pix status failed")
		status = entity.StatusWaitingPayment
	}

	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: status})
}

func (c *PaymentController) SimulatePayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.SimulatePayment(ctx.Request().Context(), req.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSimulationDisabled):
			return c.writeError(ctx, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrPaymentNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Simulate pix payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: item.Status})
}

func (c *PaymentController) HandleWebhook(ctx echo.Context) error {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	err = c.paymentService.HandleGatewayWebhook(ctx.Request().Context(), rawBody, ctx.Request().Header)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookNotConfigured):
			factory.LoggerWithContext(c.logger, ctx).Error("Webhook received without configured secret")
			return c.writeError(ctx, http.StatusInternalServerError, "webhook secret is not configured")
		case errors.Is(err, service.ErrWebhookRejected):
			return c.writeError(ctx, http.StatusUnauthorized, "invalid webhook signature")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle pix webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Webhook processed"})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
