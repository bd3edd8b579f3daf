package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	middleware "github.com/Skotchmaster/order_lifecycle/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler   *OrderHTTP
	AdminHandler   *AdminHTTP
	WebhookHandler *WebhookHTTP
	JWTSecret      []byte
	DB             *gorm.DB
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", ready(d.DB))

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)

	orders := e.Group("/orders", authMW.RequireAuth)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:order_id", d.OrderHandler.GetOrder)
	orders.GET("/:order_id/items/:item_id/transitions", d.OrderHandler.AvailableTransitions)
	orders.POST("/:order_id/items/:item_id/cancel", d.OrderHandler.CancelItem)
	orders.POST("/:order_id/items/:item_id/return", d.OrderHandler.RequestReturn)
	orders.POST("/:order_id/items/:item_id/refund", d.OrderHandler.RequestRefund)

	admin := e.Group("/admin", authMW.RequireAdmin)
	admin.POST("/orders", d.AdminHandler.CreateOrder)
	admin.GET("/orders/:order_id", d.AdminHandler.GetOrder)
	admin.GET("/orders/:order_id/items/:item_id/transitions", d.AdminHandler.AvailableTransitions)
	admin.POST("/orders/:order_id/items/:item_id/transition", d.AdminHandler.ApplyTransition)
	admin.POST("/orders/:order_id/items/:item_id/refund/approve", d.AdminHandler.ApproveRefund)
	admin.POST("/orders/:order_id/items/:item_id/refund/reject", d.AdminHandler.RejectRefund)
	admin.POST("/orders/:order_id/shipment/create", d.AdminHandler.CreateShipment)
	admin.POST("/orders/:order_id/shipment/awb", d.AdminHandler.AssignAWB)
	admin.POST("/orders/:order_id/shipment/pickup", d.AdminHandler.GeneratePickup)
	admin.GET("/audit/transitions", d.AdminHandler.SearchTransitions)

	hooks := e.Group("/webhooks/carrier")
	hooks.POST("/order", d.WebhookHandler.Order)
	hooks.POST("/return", d.WebhookHandler.Return)
	hooks.POST("/tracking", d.WebhookHandler.Tracking)
}

func ready(db *gorm.DB) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return c.NoContent(http.StatusOK)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}
