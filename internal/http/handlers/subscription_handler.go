package handlers

import (
	"context"
	"net/http"

	"github.com/Dhoini/comics-billing/internal/middleware"
	"github.com/Dhoini/comics-billing/internal/services"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/Dhoini/comics-billing/pkg/req"
	"github.com/Dhoini/comics-billing/pkg/res"

	"github.com/gin-gonic/gin"
)

// SessionCreator создает сессии шлюза для пользователя.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
}

// AccessReader отдает решение о доступе и агрегаты.
type AccessReader interface {
	Status(ctx context.Context, userID string) (services.AccessStatus, error)
	CountActive(ctx context.Context) (int, error)
}

// SubscriptionHandler обрабатывает запросы пользователя к биллингу.
type SubscriptionHandler struct {
	sessions SessionCreator
	access   AccessReader
	log      *logger.Logger
}

// NewSubscriptionHandler создает новый экземпляр SubscriptionHandler.
func NewSubscriptionHandler(sessions SessionCreator, access AccessReader, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		sessions: sessions,
		access:   access,
		log:      log,
	}
}

// CheckoutRequest - тело POST /subscriptions/checkout. Пустое тело допустимо.
type CheckoutRequest struct {
	PriceID string `json:"price_id" validate:"omitempty,max=255,printascii"`
}

// ActiveCountResponse - ответ GET /subscriptions/active-count.
type ActiveCountResponse struct {
	Active int `json:"active"`
}

// CreateCheckout обрабатывает POST /subscriptions/checkout
func (h *SubscriptionHandler) CreateCheckout(c *gin.Context) {
	body, err := req.Decode[CheckoutRequest](c.Request.Body)
	if err != nil {
		h.log.Warnw("Failed to decode checkout request", "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request format", ErrorCode: http.StatusUnprocessableEntity}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}
	if err := req.IsValid(body); err != nil {
		res.JsonResponse(c.Writer, res.ErrorResponse{
			Error:     "Invalid request data",
			ErrorCode: http.StatusUnprocessableEntity,
			Details:   err.Error(),
		}, http.StatusUnprocessableEntity)
		c.Abort()
		return
	}

	url, err := h.sessions.CreateCheckoutSession(c.Request.Context(), middleware.UserID(c), body.PriceID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, res.URLResponse{URL: url}, http.StatusOK)
}

// CreatePortal обрабатывает POST /subscriptions/portal
func (h *SubscriptionHandler) CreatePortal(c *gin.Context) {
	url, err := h.sessions.CreatePortalSession(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, res.URLResponse{URL: url}, http.StatusOK)
}

// GetMine обрабатывает GET /subscriptions/me
func (h *SubscriptionHandler) GetMine(c *gin.Context) {
	status, err := h.access.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, status, http.StatusOK)
}

// ActiveCount обрабатывает GET /subscriptions/active-count
func (h *SubscriptionHandler) ActiveCount(c *gin.Context) {
	n, err := h.access.CountActive(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res.JsonResponse(c.Writer, ActiveCountResponse{Active: n}, http.StatusOK)
}
