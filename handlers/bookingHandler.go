package handlers

import (
	"CareDesk/gateway"
	"CareDesk/middlewares"
	"CareDesk/models"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BookingService interface {
	StartBooking(ctx context.Context, session models.SessionContext, input models.BookingInput) (*models.BookingAttemptView, error)
	GetAttempt(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error)
}

type PaymentService interface {
	CreateOrder(ctx context.Context, session models.SessionContext, attemptID string) (*gateway.CheckoutOptions, error)
	ConfirmPayment(ctx context.Context, session models.SessionContext, confirmation models.PaymentConfirmation) (*models.BookingAttemptView, error)
	ReportGatewayFailure(ctx context.Context, session models.SessionContext, failure models.PaymentFailure) (*models.BookingAttemptView, error)
	RetryVerification(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error)
}

type FinalizerService interface {
	Finalize(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error)
}

// BookingHandler serves the patient side of the booking workflow.
type BookingHandler struct {
	bookings  BookingService
	payments  PaymentService
	finalizer FinalizerService
	logger    *zap.Logger
}

func NewBookingHandler(bookings BookingService, payments PaymentService, finalizer FinalizerService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, payments: payments, finalizer: finalizer, logger: logger}
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var input models.BookingInput
	if !bindJSON(c, h.logger, &input) {
		return
	}
	view, err := h.bookings.StartBooking(c.Request.Context(), s, input)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, view, http.StatusCreated)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	view, err := h.bookings.GetAttempt(c.Request.Context(), s, c.Param("attempt_id"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, view, http.StatusOK)
}

// CreateOrder returns the checkout options for the gateway widget.
func (h *BookingHandler) CreateOrder(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	checkout, err := h.payments.CreateOrder(c.Request.Context(), s, c.Param("attempt_id"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, checkout, http.StatusCreated)
}

// RetryVerification re-checks a payment whose verification never completed.
func (h *BookingHandler) RetryVerification(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	view, err := h.payments.RetryVerification(c.Request.Context(), s, c.Param("attempt_id"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, view, http.StatusOK)
}

func (h *BookingHandler) Finalize(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	view, err := h.finalizer.Finalize(c.Request.Context(), s, c.Param("attempt_id"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, view, http.StatusOK)
}

func (h *BookingHandler) PaymentCallback(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var confirmation models.PaymentConfirmation
	if !bindJSON(c, h.logger, &confirmation) {
		return
	}
	view, err := h.payments.ConfirmPayment(c.Request.Context(), s, confirmation)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, view, http.StatusOK)
}

func (h *BookingHandler) PaymentFailure(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var failure models.PaymentFailure
	if !bindJSON(c, h.logger, &failure) {
		return
	}
	view, err := h.payments.ReportGatewayFailure(c.Request.Context(), s, failure)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, view, http.StatusOK)
}
