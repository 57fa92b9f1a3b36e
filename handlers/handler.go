package handlers

import (
	"CareDesk/exceptions"
	"CareDesk/middlewares"
	"CareDesk/models"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// session returns the caller's session or writes a 401 and returns false.
func session(c *gin.Context) (models.SessionContext, bool) {
	s, ok := middlewares.SessionFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing session"})
	}
	return s, ok
}

// bindJSON decodes the request body or writes a validation error.
func bindJSON(c *gin.Context, logger *zap.Logger, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		middlewares.HttpError(c, logger, exceptions.Invalid("body", "malformed JSON: "+err.Error()))
		return false
	}
	return true
}
