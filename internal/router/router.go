package router

import (
	"storefront-order-service/internal/auth"
	"storefront-order-service/internal/handlers"
	"storefront-order-service/internal/middleware"

	"github.com/gin-contrib/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
)

type Options struct {
	// GuestCheckout lets POST /orders through without a token.
	GuestCheckout bool
	AllowOrigins  []string
}

func Router(orderHandler *handlers.OrderHandler, verifier auth.Verifier, opt Options, log *zap.Logger) *gin.Engine {
	r := gin.Default()

	origins := opt.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", handlers.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api/v1")

	createAuth := middleware.AuthRequired(verifier, log)
	if opt.GuestCheckout {
		createAuth = middleware.AuthOptional(verifier, log)
	}
	api.POST("/orders", createAuth, orderHandler.CreateOrder)

	orders := api.Group("/orders", middleware.AuthRequired(verifier, log))
	{
		orders.GET("", orderHandler.ListMyOrders)
		orders.GET("/:number", orderHandler.GetOrder)
		orders.POST("/:number/cancel", orderHandler.CancelOrder)
	}

	admin := api.Group("/admin", middleware.AuthRequired(verifier, log), middleware.AdminOnly())
	{
		admin.GET("/orders/recent", orderHandler.ListRecentOrders)
		admin.GET("/users/:id/orders", orderHandler.ListUserOrders)
		admin.GET("/customers", orderHandler.ListCustomers)
		admin.PUT("/orders/:number/status", orderHandler.UpdateOrderStatus)
		admin.PUT("/orders/:number/payment", orderHandler.UpdatePaymentStatus)
		admin.PATCH("/orders/:number", orderHandler.UpdateFulfillment)
		admin.DELETE("/orders/:number", orderHandler.DeleteOrder)
	}

	return r
}
