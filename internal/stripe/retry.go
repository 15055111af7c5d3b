package stripe

import (
	"context"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy задает экспоненциальные повторы вызовов Stripe.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.MaxElapsedTime = p.MaxElapsedTime
	bo.Reset()
	return backoff.WithContext(bo, ctx)
}

// do выполняет вызов Stripe с повторами. Наружу уходит только
// *domain.GatewayError, ошибки SDK дальше не передаются.
func (g *Gateway) do(ctx context.Context, op string, call func() error) error {
	attempt := 0
	var lastErr *domain.GatewayError
	err := backoff.Retry(func() error {
		attempt++
		err := call()
		if err == nil {
			return nil
		}
		logStripeError(g.log, op, err)
		lastErr = translateError(op, err)
		if lastErr.Retryable() && ctx.Err() == nil {
			g.log.Warnw("Retryable Stripe error, retrying", "operation", op, "attempt", attempt)
			return lastErr
		}
		return backoff.Permanent(lastErr)
	}, g.retry.backOff(ctx))
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return translateError(op, err)
}
