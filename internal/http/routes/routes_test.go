package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/comics-billing/internal/app"
	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/internal/services"
	"github.com/Dhoini/comics-billing/internal/stripe"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "routes-test-secret"

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, domain.BillingEvent) (services.Outcome, error) {
	return services.OutcomeIgnored, nil
}

type stubSessions struct{}

func (stubSessions) CreateCheckoutSession(context.Context, string, string) (string, error) {
	return "https://checkout.example/s", nil
}

func (stubSessions) CreatePortalSession(context.Context, string) (string, error) {
	return "https://portal.example/s", nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	subs := repository.NewInMemorySubscriptionRepository(log)
	end := time.Now().Add(30 * 24 * time.Hour)
	_, err := subs.Upsert(context.Background(), &models.Subscription{
		ID:                     "sub-1",
		UserID:                 "user_789",
		PlanID:                 "premium",
		Status:                 domain.StatusActive,
		EndDate:                &end,
		ExternalSubscriptionID: "sub_123",
		LastEventAt:            time.Now(),
	})
	require.NoError(t, err)

	verifier, err := stripe.NewVerifier("whsec_test")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewBillingMetrics(reg, log)
	application := app.NewApp(app.Deps{
		Verifier:   verifier,
		Dispatcher: noopDispatcher{},
		Sessions:   stubSessions{},
		Gate:       services.NewAccessGate(subs, services.RevokeImmediately, m, log),
		Validator:  middleware.NewTokenValidator(jwtSecret),
		Metrics:    m,
		Registry:   reg,
	}, log)

	router := gin.New()
	SetupRoutes(router, application, log)
	return router
}

func bearer(t *testing.T, sub, scope string) string {
	t.Helper()
	claims := middleware.TokenClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func serve(r http.Handler, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_Public(t *testing.T) {
	r := newRouter(t)

	w := serve(r, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/webhooks/stripe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_Authenticated(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/subscriptions/me", "").Code)

	w := serve(r, http.MethodGet, "/api/v1/subscriptions/me", bearer(t, "user_789", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subscribed":true`)

	w = serve(r, http.MethodPost, "/api/v1/subscriptions/checkout", bearer(t, "user_789", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "checkout.example")

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/subscriptions/portal", bearer(t, "user_789", "")).Code)
}

func TestRoutes_AccessProbe(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/v1/subscriptions/access", bearer(t, "user_789", "")).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/v1/subscriptions/access", bearer(t, "user_new", "")).Code)
}

func TestRoutes_AdminScope(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/v1/subscriptions/active-count", bearer(t, "user_789", "")).Code)

	w := serve(r, http.MethodGet, "/api/v1/subscriptions/active-count", bearer(t, "ops", "admin"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active":1}`, w.Body.String())
}
