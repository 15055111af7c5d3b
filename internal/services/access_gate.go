package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/internal/config"
	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/pkg/logger"
)

// CancelPolicy решает, дает ли отмененная подписка доступ до конца оплаченного периода.
type CancelPolicy int

const (
	// RevokeImmediately - доступ только у active и trialing.
	RevokeImmediately CancelPolicy = iota
	// HonorPaidPeriod - canceled тоже дает доступ, пока не истек end_date.
	HonorPaidPeriod
)

// ParseCancelPolicy разбирает значение billing.cancel_policy. Пустая строка - RevokeImmediately.
func ParseCancelPolicy(s string) (CancelPolicy, error) {
	switch s {
	case "", config.CancelPolicyRevokeImmediately:
		return RevokeImmediately, nil
	case config.CancelPolicyHonorPaidPeriod:
		return HonorPaidPeriod, nil
	default:
		return RevokeImmediately, fmt.Errorf("%w: unknown cancel policy %q", domain.ErrConfiguration, s)
	}
}

func (p CancelPolicy) String() string {
	if p == HonorPaidPeriod {
		return config.CancelPolicyHonorPaidPeriod
	}
	return config.CancelPolicyRevokeImmediately
}

// EntitlingStatuses - статусы, которые при будущем end_date дают доступ.
func (p CancelPolicy) EntitlingStatuses() []domain.SubscriptionStatus {
	if p == HonorPaidPeriod {
		return []domain.SubscriptionStatus{domain.StatusActive, domain.StatusTrialing, domain.StatusCanceled}
	}
	return []domain.SubscriptionStatus{domain.StatusActive, domain.StatusTrialing}
}

// AccessStatus - ответ для самого пользователя.
type AccessStatus struct {
	Subscribed   bool                 `json:"subscribed"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// AccessGate отвечает на вопрос "есть ли у пользователя оплаченный доступ".
type AccessGate struct {
	subs    repository.SubscriptionRepository
	policy  CancelPolicy
	now     func() time.Time
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// GateOption настраивает AccessGate.
type GateOption func(*AccessGate)

// WithGateClock подменяет часы (тесты).
func WithGateClock(now func() time.Time) GateOption {
	return func(g *AccessGate) { g.now = now }
}

// NewAccessGate создает проверку доступа с заданной политикой отмены.
func NewAccessGate(subs repository.SubscriptionRepository, policy CancelPolicy, m metrics.BillingMetrics, log *logger.Logger, opts ...GateOption) *AccessGate {
	g := &AccessGate{
		subs:    subs,
		policy:  policy,
		now:     time.Now,
		metrics: m,
		log:     log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy возвращает действующую политику отмены.
func (g *AccessGate) Policy() CancelPolicy { return g.policy }

// IsUserSubscribed: есть ли запись в разрешенном политикой статусе с end_date
// строго позже текущего момента. Запись без end_date доступа не дает.
func (g *AccessGate) IsUserSubscribed(ctx context.Context, userID string) (bool, error) {
	sub, err := g.latestEntitling(ctx, userID)
	if err != nil {
		return false, err
	}
	subscribed := sub != nil && sub.ActiveAt(g.now())
	g.metrics.IncAccessCheck(subscribed)
	return subscribed, nil
}

// Status возвращает решение о доступе и запись, на которой оно основано.
// Если разрешенной записи нет, показывается самая новая запись пользователя.
func (g *AccessGate) Status(ctx context.Context, userID string) (AccessStatus, error) {
	sub, err := g.latestEntitling(ctx, userID)
	if err != nil {
		return AccessStatus{}, err
	}
	if sub != nil {
		return AccessStatus{Subscribed: sub.ActiveAt(g.now()), Subscription: sub}, nil
	}

	all, err := g.subs.ListByUserID(ctx, userID)
	if err != nil {
		return AccessStatus{}, storeError("list subscriptions", err)
	}
	if len(all) == 0 {
		return AccessStatus{}, nil
	}
	return AccessStatus{Subscription: &all[0]}, nil
}

// CountActive - число записей в статусе active.
func (g *AccessGate) CountActive(ctx context.Context) (int, error) {
	n, err := g.subs.CountByStatus(ctx, domain.StatusActive)
	if err != nil {
		return 0, storeError("count active subscriptions", err)
	}
	return n, nil
}

func (g *AccessGate) latestEntitling(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := g.subs.FindLatestByUserID(ctx, userID, g.policy.EntitlingStatuses())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		g.log.Errorw("Access check failed", "userID", userID, "error", err)
		return nil, storeError("find latest subscription", err)
	}
	return sub, nil
}
