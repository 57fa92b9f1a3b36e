package handlers

import (
	"CareDesk/middlewares"
	"CareDesk/models"
	"CareDesk/services"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ApprovalService interface {
	ListPending(ctx context.Context, session models.SessionContext) ([]models.Appointment, error)
	Resolve(ctx context.Context, session models.SessionContext, appointmentID string, input services.ApprovalInput) (*services.ApprovalResult, error)
}

type ApprovalHandler struct {
	service ApprovalService
	logger  *zap.Logger
}

func NewApprovalHandler(service ApprovalService, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{service: service, logger: logger}
}

func (h *ApprovalHandler) GetPending(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	pending, err := h.service.ListPending(c.Request.Context(), s)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"appointments": pending}, http.StatusOK)
}

// Resolve approves or rejects an appointment. Failed actions still carry the
// re-fetched pending list so the caller can redraw without a second request.
func (h *ApprovalHandler) Resolve(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var input services.ApprovalInput
	if !bindJSON(c, h.logger, &input) {
		return
	}
	result, err := h.service.Resolve(c.Request.Context(), s, c.Param("appointment_id"), input)
	if err != nil {
		var extra gin.H
		if result != nil {
			extra = gin.H{"pending": result.Pending}
		}
		middlewares.HttpErrorWith(c, h.logger, err, extra)
		return
	}
	middlewares.RespondJSON(c, gin.H{"appointment": result.Appointment, "pending": result.Pending}, http.StatusOK)
}
