package app

import (
	"net/http"

	"github.com/Dhoini/comics-billing/internal/http/handlers"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/internal/services"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps - собранные в main сервисы биллинга.
type Deps struct {
	Verifier     handlers.EventVerifier
	Dispatcher   handlers.EventDispatcher
	Sessions     handlers.SessionCreator
	Gate         *services.AccessGate
	Validator    middleware.TokenValidator
	Metrics      metrics.BillingMetrics
	Registry     *prometheus.Registry
	HealthChecks map[string]handlers.HealthCheck
}

// App представляет собой контейнер HTTP компонентов приложения
type App struct {
	WebhookHandler      *handlers.WebhookHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	HealthHandler       *handlers.HealthHandler
	AuthMiddleware      *middleware.JWTMiddleware
	SubscriptionGate    gin.HandlerFunc
	LoggerMiddleware    gin.HandlerFunc
	MetricsHandler      http.Handler
	Logger              *logger.Logger
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(deps Deps, log *logger.Logger) *App {
	metricsHandler := promhttp.Handler()
	if deps.Registry != nil {
		metricsHandler = promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry})
	}

	return &App{
		WebhookHandler:      handlers.NewWebhookHandler(deps.Verifier, deps.Dispatcher, deps.Metrics, log),
		SubscriptionHandler: handlers.NewSubscriptionHandler(deps.Sessions, deps.Gate, log),
		HealthHandler:       handlers.NewHealthHandler(deps.HealthChecks, log),
		AuthMiddleware:      middleware.NewJWTMiddleware(log, deps.Validator),
		SubscriptionGate:    middleware.RequireSubscription(deps.Gate, log),
		LoggerMiddleware:    middleware.RequestLogger(log),
		MetricsHandler:      metricsHandler,
		Logger:              log,
	}
}
