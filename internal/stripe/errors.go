package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/stripe/stripe-go/v82"
)

const errorTypeAPIConnection = "api_connection_error"

// translateError переводит ошибку SDK в *domain.GatewayError.
// Повторяемы: 429, ошибки соединения, 5xx кроме 501.
func translateError(op string, err error) *domain.GatewayError {
	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		return gerr
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		kind := domain.ErrGatewayRejected
		if isRetryableStatus(stripeErr.HTTPStatusCode) || string(stripeErr.Type) == errorTypeAPIConnection {
			kind = domain.ErrGatewayUnavailable
		}
		return &domain.GatewayError{
			Op:         op,
			Kind:       kind,
			Code:       string(stripeErr.Code),
			StatusCode: stripeErr.HTTPStatusCode,
			RequestID:  stripeErr.RequestID,
			Err:        errors.New(stripeErr.Msg),
		}
	}

	// Сеть, таймауты, отмена контекста: ответа от Stripe нет.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.GatewayError{Op: op, Kind: domain.ErrGatewayUnavailable, Err: err}
	}
	return &domain.GatewayError{Op: op, Kind: domain.ErrGatewayUnavailable, Err: errors.New(err.Error())}
}

func isRetryableStatus(code int) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return code >= http.StatusInternalServerError && code != http.StatusNotImplemented
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
		return
	}
	log.Errorw("Non-Stripe error during Stripe operation",
		"operation", operation,
		"error", err,
	)
}
