package stripe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

const (
	// Ключ метаданных для связи Stripe Customer и Checkout Session с UserID
	metadataUserIDKey = "user_id"
)

// CustomerInput - данные пользователя для создания клиента в Stripe.
type CustomerInput struct {
	UserID string
	Email  string
	Name   string
}

// CheckoutInput - параметры hosted checkout сессии.
type CheckoutInput struct {
	UserID     string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Gateway - клиент Stripe API. Создается один раз при старте процесса
// и передается сервисам явно.
type Gateway struct {
	client *client.API
	log    *logger.Logger
	retry  RetryPolicy
}

type options struct {
	backendURL string
	httpClient *http.Client
	retry      RetryPolicy
}

// Option настраивает Gateway.
type Option func(*options)

// WithBackendURL направляет запросы SDK на другой адрес (stripe-mock, тесты).
func WithBackendURL(url string, httpClient *http.Client) Option {
	return func(o *options) {
		o.backendURL = url
		o.httpClient = httpClient
	}
}

// WithRetryPolicy переопределяет политику повторов.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// NewStripeClient создает клиент Stripe. Повторы выполняет сам Gateway,
// встроенные повторы SDK отключены.
func NewStripeClient(apiKey string, log *logger.Logger, opts ...Option) *Gateway {
	o := options{retry: defaultRetryPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if o.backendURL != "" {
		cfg.URL = stripe.String(o.backendURL)
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	sc := &client.API{}
	sc.Init(apiKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Gateway{
		client: sc,
		log:    log,
		retry:  o.retry,
	}
}

// CreateCustomer создает клиента в Stripe и возвращает его ID.
// Ключ идемпотентности привязан к пользователю, поэтому параллельные
// первые оформления схлопываются в одного клиента.
func (g *Gateway) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	var customerID string
	err := g.do(ctx, "CreateCustomer", func() error {
		params := &stripe.CustomerParams{
			Email: stripe.String(in.Email),
		}
		if in.Name != "" {
			params.Name = stripe.String(in.Name)
		}
		params.AddMetadata(metadataUserIDKey, in.UserID)
		params.SetIdempotencyKey("customer-create-" + in.UserID)
		params.Context = ctx

		cus, err := g.client.Customers.New(params)
		if err != nil {
			return err
		}
		customerID = cus.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	g.log.Infow("Stripe customer created", "userID", in.UserID, "stripeCustomerID", customerID)
	return customerID, nil
}

// CreateCheckoutSession создает hosted checkout сессию в режиме подписки
// и возвращает URL для редиректа.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	var url string
	err := g.do(ctx, "CreateCheckoutSession", func() error {
		params := &stripe.CheckoutSessionParams{
			Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
			Customer:           stripe.String(in.CustomerID),
			PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
			LineItems: []*stripe.CheckoutSessionLineItemParams{
				{
					Price:    stripe.String(in.PriceID),
					Quantity: stripe.Int64(1),
				},
			},
			SuccessURL: stripe.String(in.SuccessURL),
			CancelURL:  stripe.String(in.CancelURL),
		}
		params.AddMetadata(metadataUserIDKey, in.UserID)
		params.Context = ctx

		sess, err := g.client.CheckoutSessions.New(params)
		if err != nil {
			return err
		}
		url = sess.URL
		return nil
	})
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", &domain.GatewayError{Op: "CreateCheckoutSession", Kind: domain.ErrGatewayRejected, Err: fmt.Errorf("session has no url")}
	}
	return url, nil
}

// CreatePortalSession создает сессию billing portal для клиента.
func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	var url string
	err := g.do(ctx, "CreatePortalSession", func() error {
		params := &stripe.BillingPortalSessionParams{
			Customer:  stripe.String(customerID),
			ReturnURL: stripe.String(returnURL),
		}
		params.Context = ctx

		sess, err := g.client.BillingPortalSessions.New(params)
		if err != nil {
			return err
		}
		url = sess.URL
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// GetSubscription читает подписку из Stripe. Ответ разбирается тем же
// кодом, что и объект подписки из вебхука.
func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string) (domain.SubscriptionFacts, error) {
	var raw []byte
	err := g.do(ctx, "GetSubscription", func() error {
		params := &stripe.SubscriptionParams{}
		params.Context = ctx

		sub, err := g.client.Subscriptions.Get(subscriptionID, params)
		if err != nil {
			return err
		}
		if sub.LastResponse != nil {
			raw = sub.LastResponse.RawJSON
		}
		return nil
	})
	if err != nil {
		return domain.SubscriptionFacts{}, err
	}

	facts, err := parseSubscription(raw)
	if err != nil {
		return domain.SubscriptionFacts{}, &domain.GatewayError{Op: "GetSubscription", Kind: domain.ErrGatewayRejected, Err: err}
	}
	return facts, nil
}
