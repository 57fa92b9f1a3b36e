package middlewares

import (
	"CareDesk/models"
	"CareDesk/utils"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	SessionTokenHeader = "X-Session-Token"
	sessionCookie      = "accessToken"
	sessionQueryParam  = "accessToken"
	sessionKey         = "session"
)

func sessionToken(c *gin.Context) string {
	if token := c.GetHeader(SessionTokenHeader); token != "" {
		return token
	}
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		return token
	}
	return c.Query(sessionQueryParam)
}

// SessionAuthMiddleware decrypts the session token and stores the session
// in the gin context.
func SessionAuthMiddleware(key []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing access token"})
			return
		}

		session, err := utils.ValidateSessionToken(key, token, time.Now())
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, utils.ErrTokenExpired) {
				message = "Token expired"
			}
			logger.Debug("Session token rejected", zap.String("request_id", RequestID(c)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		c.Set(sessionKey, *session)
		c.Next()
	}
}

// RequireOperation lets through only sessions whose role grants op.
func RequireOperation(op models.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := SessionFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session not found in context"})
			return
		}
		if !session.Can(op) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: insufficient privileges"})
			return
		}
		c.Next()
	}
}

// SessionFromContext retrieves the session stored by SessionAuthMiddleware.
func SessionFromContext(c *gin.Context) (models.SessionContext, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return models.SessionContext{}, false
	}
	session, ok := value.(models.SessionContext)
	return session, ok
}
