package handlers

import (
	"CareDesk/middlewares"
	"CareDesk/models"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StockService interface {
	Request(ctx context.Context, session models.SessionContext, input models.StockRequestInput) error
	List(ctx context.Context, session models.SessionContext) ([]models.StockRequest, error)
	Fulfill(ctx context.Context, session models.SessionContext, input models.FulfillmentInput) error
	Complete(ctx context.Context, session models.SessionContext, input models.CompletionInput) error
}

type StockHandler struct {
	service StockService
	logger  *zap.Logger
}

func NewStockHandler(service StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{service: service, logger: logger}
}

func (h *StockHandler) CreateRequest(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var input models.StockRequestInput
	if !bindJSON(c, h.logger, &input) {
		return
	}
	if err := h.service.Request(c.Request.Context(), s, input); err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"message": "Stock request submitted"}, http.StatusCreated)
}

func (h *StockHandler) GetRequests(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	requests, err := h.service.List(c.Request.Context(), s)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"requests": requests}, http.StatusOK)
}

func (h *StockHandler) Fulfill(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var input models.FulfillmentInput
	if !bindJSON(c, h.logger, &input) {
		return
	}
	input.RequestID = c.Param("request_id")
	if err := h.service.Fulfill(c.Request.Context(), s, input); err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"message": "Stock request fulfilled"}, http.StatusOK)
}

func (h *StockHandler) Complete(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var input models.CompletionInput
	if !bindJSON(c, h.logger, &input) {
		return
	}
	input.RequestID = c.Param("request_id")
	if err := h.service.Complete(c.Request.Context(), s, input); err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"message": "Stock order completed"}, http.StatusOK)
}
