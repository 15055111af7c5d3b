package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/services"
	"github.com/Dhoini/comics-billing/internal/stripe"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/Dhoini/comics-billing/pkg/res"

	"github.com/gin-gonic/gin"
)

// Ограничение на размер тела вебхука
const maxWebhookBodySize = int64(1 << 20)

// EventVerifier проверяет подпись и разбирает событие.
type EventVerifier interface {
	Verify(payload []byte, sigHeader string) (domain.BillingEvent, error)
}

// EventDispatcher обрабатывает проверенное событие.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event domain.BillingEvent) (services.Outcome, error)
}

// WebhookHandler принимает вебхуки Stripe.
type WebhookHandler struct {
	verifier   EventVerifier
	dispatcher EventDispatcher
	metrics    metrics.BillingMetrics
	log        *logger.Logger
}

// NewWebhookHandler создает новый экземпляр WebhookHandler.
func NewWebhookHandler(verifier EventVerifier, dispatcher EventDispatcher, m metrics.BillingMetrics, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
	}
}

// HandleStripeWebhook - POST /api/v1/webhooks/stripe. Подпись проверяется
// над сырыми байтами тела, поэтому тело читается один раз и целиком.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	start := time.Now()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warnw("Webhook body too large", "limit", tooLarge.Limit)
			h.metrics.ObserveWebhook("unknown", "too_large", time.Since(start))
			res.JsonError(c.Writer, "Request body too large", http.StatusRequestEntityTooLarge)
			c.Abort()
			return
		}
		h.log.Errorw("Failed to read webhook request body", "error", err)
		h.metrics.ObserveWebhook("unknown", "unreadable", time.Since(start))
		res.JsonError(c.Writer, "Cannot read request body", http.StatusBadRequest)
		c.Abort()
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader(stripe.SignatureHeader))
	if err != nil {
		result := "invalid_signature"
		if errors.Is(err, domain.ErrMalformedEvent) {
			result = "malformed"
		}
		h.metrics.ObserveWebhook("unknown", result, time.Since(start))
		writeError(c, h.log, err)
		return
	}

	meta := event.Meta()
	kind := string(event.Kind())
	h.log.Infow("Received verified Stripe event", "eventID", meta.ID, "eventType", meta.Type, "kind", kind)

	outcome, err := h.dispatcher.Dispatch(c.Request.Context(), event)
	if err != nil {
		h.metrics.ObserveWebhook(kind, "error", time.Since(start))
		writeError(c, h.log, err)
		return
	}

	h.metrics.ObserveWebhook(kind, string(outcome), time.Since(start))
	res.JsonResponse(c.Writer, res.ReceivedResponse{
		Received:  true,
		Duplicate: outcome == services.OutcomeDuplicate,
	}, http.StatusOK)
}
