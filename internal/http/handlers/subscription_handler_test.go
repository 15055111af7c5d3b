package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/services"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubSessions struct {
	err      error
	gotUser  string
	gotPrice string
}

func (s *stubSessions) CreateCheckoutSession(_ context.Context, userID, priceID string) (string, error) {
	s.gotUser, s.gotPrice = userID, priceID
	if s.err != nil {
		return "", s.err
	}
	return "https://checkout.stripe.test/c/1", nil
}

func (s *stubSessions) CreatePortalSession(_ context.Context, userID string) (string, error) {
	s.gotUser = userID
	if s.err != nil {
		return "", s.err
	}
	return "https://billing.stripe.test/p/1", nil
}

type stubAccess struct {
	status services.AccessStatus
	count  int
	err    error
}

func (s stubAccess) Status(context.Context, string) (services.AccessStatus, error) { return s.status, s.err }
func (s stubAccess) CountActive(context.Context) (int, error)                     { return s.count, s.err }

func newSubscriptionRouter(sessions SessionCreator, access AccessReader) *gin.Engine {
	h := NewSubscriptionHandler(sessions, access, logger.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(middleware.ContextUserIDKey), "user_789")
		c.Next()
	})
	r.POST("/checkout", h.CreateCheckout)
	r.POST("/portal", h.CreatePortal)
	r.GET("/me", h.GetMine)
	r.GET("/active-count", h.ActiveCount)
	return r
}

func TestCreateCheckout(t *testing.T) {
	sessions := &stubSessions{}
	r := newSubscriptionRouter(sessions, stubAccess{})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"price_id":"price_gold"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"url":"https://checkout.stripe.test/c/1"}`, w.Body.String())
	assert.Equal(t, "user_789", sessions.gotUser)
	assert.Equal(t, "price_gold", sessions.gotPrice)

	// пустое тело - цена по умолчанию
	w = serve(r, httptest.NewRequest(http.MethodPost, "/checkout", http.NoBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sessions.gotPrice)
}

func TestCreateCheckout_InvalidBody(t *testing.T) {
	r := newSubscriptionRouter(&stubSessions{}, stubAccess{})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"price_id":`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"price_id":"`+strings.Repeat("x", 300)+`"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSessionErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: no price", domain.ErrConfiguration), http.StatusBadRequest},
		{fmt.Errorf("%w: never subscribed", domain.ErrNotEligible), http.StatusBadRequest},
		{fmt.Errorf("%w: ghost", domain.ErrUserNotFound), http.StatusNotFound},
		{&domain.GatewayError{Kind: domain.ErrGatewayRejected}, http.StatusBadGateway},
		{&domain.GatewayError{Kind: domain.ErrGatewayUnavailable}, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: db", domain.ErrTransientStore), http.StatusInternalServerError},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newSubscriptionRouter(&stubSessions{err: tc.err}, stubAccess{})
			assert.Equal(t, tc.status, serve(r, httptest.NewRequest(http.MethodPost, "/checkout", http.NoBody)).Code)
			assert.Equal(t, tc.status, serve(r, httptest.NewRequest(http.MethodPost, "/portal", http.NoBody)).Code)
		})
	}
}

func TestGetMine(t *testing.T) {
	end := time.Unix(1700000000, 0).UTC()
	access := stubAccess{status: services.AccessStatus{
		Subscribed: true,
		Subscription: &models.Subscription{
			ID:                     "sub-1",
			UserID:                 "user_789",
			PlanID:                 "premium",
			Status:                 domain.StatusActive,
			EndDate:                &end,
			ExternalSubscriptionID: "sub_123",
		},
	}}
	r := newSubscriptionRouter(&stubSessions{}, access)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subscribed":true`)
	assert.Contains(t, w.Body.String(), `"end_date":"2023-11-14T22:13:20Z"`)
	assert.NotContains(t, w.Body.String(), "last_event_at")

	w = serve(newSubscriptionRouter(&stubSessions{}, stubAccess{}), httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.JSONEq(t, `{"subscribed":false}`, w.Body.String())
}

func TestActiveCount(t *testing.T) {
	r := newSubscriptionRouter(&stubSessions{}, stubAccess{count: 42})
	w := serve(r, httptest.NewRequest(http.MethodGet, "/active-count", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active":42}`, w.Body.String())

	r = newSubscriptionRouter(&stubSessions{}, stubAccess{err: fmt.Errorf("%w: db", domain.ErrTransientStore)})
	assert.Equal(t, http.StatusInternalServerError, serve(r, httptest.NewRequest(http.MethodGet, "/active-count", nil)).Code)
}

func TestHealth(t *testing.T) {
	ok := NewHealthHandler(map[string]HealthCheck{"postgres": func(context.Context) error { return nil }}, logger.NewNop())
	down := NewHealthHandler(map[string]HealthCheck{"postgres": func(context.Context) error { return errors.New("refused") }}, logger.NewNop())

	r := gin.New()
	r.GET("/ok", ok.Health)
	r.GET("/down", down.Health)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"up"}}`, w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"down"}}`, w.Body.String())
}
