package services

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/internal/stripe"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	testNow       = time.Date(2023, 11, 1, 12, 0, 0, 0, time.UTC)
	testPeriodEnd = time.Unix(1700000000, 0).UTC()
)

func newTestMetrics() metrics.BillingMetrics {
	return metrics.NewBillingMetrics(prometheus.NewRegistry(), logger.NewNop())
}

func strPtr(s string) *string { return &s }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeGateway записывает вызовы шлюза.
type fakeGateway struct {
	mu            sync.Mutex
	customerID    string
	customerErr   error
	checkoutErr   error
	portalErr     error
	customerCalls []stripe.CustomerInput
	checkoutCalls []stripe.CheckoutInput
	portalCalls   []string
	returnURLs    []string
}

func (g *fakeGateway) CreateCustomer(_ context.Context, in stripe.CustomerInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerCalls = append(g.customerCalls, in)
	if g.customerErr != nil {
		return "", g.customerErr
	}
	return g.customerID, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, in stripe.CheckoutInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkoutCalls = append(g.checkoutCalls, in)
	if g.checkoutErr != nil {
		return "", g.checkoutErr
	}
	return "https://checkout.stripe.test/c/" + in.CustomerID, nil
}

func (g *fakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.portalCalls = append(g.portalCalls, customerID)
	g.returnURLs = append(g.returnURLs, returnURL)
	if g.portalErr != nil {
		return "", g.portalErr
	}
	return "https://billing.stripe.test/p/" + customerID, nil
}

type fakeFetcher struct {
	facts map[string]domain.SubscriptionFacts
	err   error
	calls int
}

func (f *fakeFetcher) GetSubscription(_ context.Context, id string) (domain.SubscriptionFacts, error) {
	f.calls++
	if f.err != nil {
		return domain.SubscriptionFacts{}, f.err
	}
	facts, ok := f.facts[id]
	if !ok {
		return domain.SubscriptionFacts{}, &domain.GatewayError{Op: "GetSubscription", Kind: domain.ErrGatewayRejected, StatusCode: 404}
	}
	return facts, nil
}

type fakeLedger struct {
	seen    map[string]bool
	seenErr error
	markErr error
}

func newFakeLedger() *fakeLedger { return &fakeLedger{seen: make(map[string]bool)} }

func (l *fakeLedger) Seen(_ context.Context, id string) (bool, error) {
	if l.seenErr != nil {
		return false, l.seenErr
	}
	return l.seen[id], nil
}

func (l *fakeLedger) MarkProcessed(_ context.Context, id string) error {
	if l.markErr != nil {
		return l.markErr
	}
	l.seen[id] = true
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.SubscriptionReconciled
	err    error
}

func (p *fakePublisher) PublishReconciled(_ context.Context, e domain.SubscriptionReconciled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

// countingReconciler считает вызовы настоящей сверки.
type countingReconciler struct {
	Reconciler
	calls int
}

func (c *countingReconciler) Reconcile(ctx context.Context, facts domain.SubscriptionFacts, at time.Time) (Outcome, error) {
	c.calls++
	return c.Reconciler.Reconcile(ctx, facts, at)
}

// failingSubs - хранилище подписок, которое всегда падает.
type failingSubs struct {
	repository.SubscriptionRepository
	err error
}

func (f failingSubs) Upsert(context.Context, *models.Subscription) (repository.UpsertOutcome, error) {
	return repository.UpsertStale, f.err
}

func (f failingSubs) FindLatestByUserID(context.Context, string, []domain.SubscriptionStatus) (*models.Subscription, error) {
	return nil, f.err
}

func (f failingSubs) CountByStatus(context.Context, domain.SubscriptionStatus) (int, error) {
	return 0, f.err
}

func testPlanFor(priceID string) string {
	if priceID == "price_gold" {
		return "gold"
	}
	return "premium"
}

type fixture struct {
	subs       *repository.InMemorySubscriptionRepository
	users      *repository.InMemoryUserRepository
	publisher  *fakePublisher
	reconciler *SubscriptionReconciler
}

func newFixture() *fixture {
	log := logger.NewNop()
	f := &fixture{
		subs: repository.NewInMemorySubscriptionRepository(log),
		users: repository.NewInMemoryUserRepository(log,
			models.User{ID: "user_789", Email: "reader@example.com", StripeCustomerID: strPtr("cus_456")},
			models.User{ID: "user_new", Email: "new@example.com", Name: "New Reader"},
		),
		publisher: &fakePublisher{},
	}
	f.reconciler = NewSubscriptionReconciler(f.subs, f.users, testPlanFor, f.publisher, newTestMetrics(), log,
		WithReconcilerClock(fixedClock(testNow)),
		WithIDGenerator(func() string { return "fixed" }),
	)
	return f
}

func (f *fixture) gate(policy CancelPolicy, now time.Time) *AccessGate {
	return NewAccessGate(f.subs, policy, newTestMetrics(), logger.NewNop(), WithGateClock(fixedClock(now)))
}

func activeFacts() domain.SubscriptionFacts {
	end := testPeriodEnd
	return domain.SubscriptionFacts{
		ExternalSubscriptionID: "sub_123",
		ExternalCustomerID:     "cus_456",
		Status:                 domain.StatusActive,
		ExternalPriceID:        "price_basic",
		PeriodEnd:              &end,
		GatewayStatus:          "active",
	}
}
