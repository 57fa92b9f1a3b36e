package routes

import (
	"CareDesk/config"
	"CareDesk/controllers"
	"CareDesk/handlers"
	"CareDesk/middlewares"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes.
type Handlers struct {
	Directory    *handlers.DirectoryHandler
	Booking      *handlers.BookingHandler
	Approval     *handlers.ApprovalHandler
	Prescription *handlers.PrescriptionHandler
	Stock        *handlers.StockHandler
	Health       *handlers.HealthHandler
}

// SetupRoutes initializes the routes and middleware for the server
func SetupRoutes(cfg *config.AppConfig, h Handlers, logger *zap.Logger) http.Handler {
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.LoggingMiddleware(logger))

	router.Use(middlewares.CorsMiddleware(&middlewares.CorsConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middlewares.SessionTokenHeader, middlewares.RequestIDHeader},
		ExposedHeaders:   []string{middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAgeSeconds:    600,
	}))

	router.Use(middlewares.NewRateLimiterMiddleware(middlewares.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	api := router.Group("/api/v1", middlewares.ValidateBearerToken(cfg.GetBearerToken()))
	controllers.SetupRootRoute(router, api, h.Health)

	authed := api.Group("", middlewares.SessionAuthMiddleware([]byte(cfg.SymmetricKey), logger))
	appointmentController := &controllers.AppointmentController{
		Directory:    h.Directory,
		Booking:      h.Booking,
		Approval:     h.Approval,
		Prescription: h.Prescription,
	}
	appointmentController.RegisterRoutes(authed)
	controllers.SetupStockRoutes(authed, h.Stock)

	return router
}
