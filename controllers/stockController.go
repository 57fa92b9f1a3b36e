package controllers

import (
	"CareDesk/handlers"
	"CareDesk/middlewares"
	"CareDesk/models"

	"github.com/gin-gonic/gin"
)

func SetupStockRoutes(api *gin.RouterGroup, stockHandler *handlers.StockHandler) {
	stock := api.Group("/stock/requests")
	stock.POST("", middlewares.RequireOperation(models.OpStockRequest), stockHandler.CreateRequest)
	stock.GET("", middlewares.RequireOperation(models.OpStockRead), stockHandler.GetRequests)
	stock.POST("/:request_id/fulfill", middlewares.RequireOperation(models.OpStockFulfill), stockHandler.Fulfill)
	stock.POST("/:request_id/complete", middlewares.RequireOperation(models.OpStockComplete), stockHandler.Complete)
}
