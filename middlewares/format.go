package middlewares

import (
	"CareDesk/exceptions"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response to the client.
func RespondJSON(c *gin.Context, data interface{}, status int) {
	c.JSON(status, data)
}

// HttpError logs err and writes its JSON error body. Errors outside the
// exceptions taxonomy become a 500 without internal detail.
func HttpError(c *gin.Context, logger *zap.Logger, err error) {
	HttpErrorWith(c, logger, err, nil)
}

// HttpErrorWith is HttpError with extra keys merged into the body.
func HttpErrorWith(c *gin.Context, logger *zap.Logger, err error, extra gin.H) {
	e, ok := exceptions.As(err)
	if !ok {
		logger.Error("Unhandled error",
			zap.String("request_id", RequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "step": "internal", "recovery": "retry"})
		return
	}

	fields := []zap.Field{
		zap.String("request_id", RequestID(c)),
		zap.String("kind", string(e.Kind)),
		zap.String("step", e.Step),
		zap.Int("status", e.Status),
		zap.Error(err),
	}
	if e.Status >= http.StatusInternalServerError {
		logger.Error("Request failed", fields...)
	} else {
		logger.Info("Request rejected", fields...)
	}

	body := gin.H{
		"error":    e.Message,
		"kind":     e.Kind,
		"step":     e.Step,
		"recovery": e.Recovery,
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	if e.PaymentID != "" {
		body["paymentId"] = e.PaymentID
	}
	if e.AttemptID != "" {
		body["attemptId"] = e.AttemptID
	}
	if e.AppointmentID != "" {
		body["appointmentId"] = e.AppointmentID
	}
	if e.Kind == exceptions.KindApprovalAction {
		body["stale"] = e.Stale
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(e.Status, body)
}
