package routes

import (
	"net/http"

	"github.com/Dhoini/comics-billing/internal/app"
	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupRoutes настраивает все маршруты API для Gin роутера
func SetupRoutes(router *gin.Engine, app *app.App, log *logger.Logger) {
	router.Use(app.LoggerMiddleware)
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(app.MetricsHandler))

	api := router.Group("/api/v1")
	{
		// Публичные маршруты
		api.POST("/webhooks/stripe", app.WebhookHandler.HandleStripeWebhook)
		api.GET("/health", app.HealthHandler.Health)

		subscriptions := api.Group("/subscriptions")
		subscriptions.Use(app.AuthMiddleware.RequireAuth())
		{
			subscriptions.POST("/checkout", app.SubscriptionHandler.CreateCheckout)
			subscriptions.POST("/portal", app.SubscriptionHandler.CreatePortal)
			subscriptions.GET("/me", app.SubscriptionHandler.GetMine)
			// Проверка доступа к премиум контенту: 204 или 403
			subscriptions.GET("/access", app.SubscriptionGate, func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
		}

		admin := api.Group("/subscriptions")
		admin.Use(app.AuthMiddleware.RequireAuth(middleware.ScopeAdmin))
		{
			admin.GET("/active-count", app.SubscriptionHandler.ActiveCount)
		}
	}

	log.Infow("API routes successfully configured")
}
