package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/Dhoini/comics-billing/pkg/res"

	"github.com/gin-gonic/gin"
)

// statusFor сопоставляет ошибку домена с HTTP статусом.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid),
		errors.Is(err, domain.ErrMalformedEvent),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrNotEligible):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage - текст ошибки для клиента без внутренних деталей.
func publicMessage(status int, err error) string {
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		return "Webhook signature verification failed"
	case errors.Is(err, domain.ErrMalformedEvent):
		return "Malformed webhook event"
	case errors.Is(err, domain.ErrConfiguration):
		return "Price reference is missing"
	case errors.Is(err, domain.ErrNotEligible):
		return "No billing account for this user"
	case errors.Is(err, domain.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, domain.ErrGatewayRejected):
		return "Payment provider rejected the request"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "Payment provider is unavailable, try again later"
	}
	return http.StatusText(status)
}

func writeError(c *gin.Context, log *logger.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	} else {
		log.Warnw("Request rejected", "path", c.Request.URL.Path, "status", status, "error", err)
	}
	_ = c.Error(err)
	res.JsonError(c.Writer, publicMessage(status, err), status)
	c.Abort()
}
