package controllers

import (
	"CareDesk/handlers"
	"net/http"

	"github.com/gin-gonic/gin"
)

func rootHandler(c *gin.Context) {
	c.String(http.StatusOK, "CareDesk appointment service")
}

// SetupRootRoute registers the root route and the health check. Neither
// needs a session.
func SetupRootRoute(router *gin.Engine, api *gin.RouterGroup, healthHandler *handlers.HealthHandler) {
	router.GET("/", rootHandler)
	api.GET("/health", healthHandler.Health)
}
