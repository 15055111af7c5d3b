package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STRIPE_API_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("STRIPE_DEFAULT_PRICE_ID", "price_default")
	t.Setenv("APP_FRONTEND_URL", "https://comics.example")
	t.Setenv("DATABASE_DSN", "postgres://localhost/comics")
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sk_test_123", cfg.Stripe.APIKey)
	assert.Equal(t, "whsec_test", cfg.Stripe.WebhookSecret)
	assert.Equal(t, "price_default", cfg.Stripe.DefaultPriceID)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "premium", cfg.Billing.PlanID)
	assert.Equal(t, CancelPolicyRevokeImmediately, cfg.Billing.CancelPolicy)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_FileAndPlans(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	yaml := `
app:
  port: "9000"
billing:
  cancel_policy: honor_paid_period
  plans:
    price_annual: premium-annual
    price_1NxGoldAbC: gold
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, CancelPolicyHonorPaidPeriod, cfg.Billing.CancelPolicy)
	assert.Equal(t, "premium-annual", cfg.PlanFor("price_annual"))
	assert.Equal(t, "gold", cfg.PlanFor("price_1NxGoldAbC"))
	assert.Equal(t, "premium", cfg.PlanFor("price_other"))
}

func TestPlanFor_MixedCasePriceID(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	yaml := `
billing:
  plans:
    price_1NxAnnualAbC: premium-annual
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "premium-annual", cfg.PlanFor("price_1NxAnnualAbC"))
	assert.Equal(t, "premium", cfg.PlanFor("price_1NxMonthlyAbC"))
}

func TestValidate_ListsMissingKeys(t *testing.T) {
	cfg := &Config{}
	cfg.Billing.CancelPolicy = CancelPolicyRevokeImmediately
	cfg.Stripe.APIKey = "sk_test_123"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "stripe.webhook_secret")
	assert.Contains(t, err.Error(), "stripe.default_price_id")
	assert.NotContains(t, err.Error(), "stripe.api_key")
}

func TestValidate_UnknownCancelPolicy(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Billing.CancelPolicy = "forever"

	err = cfg.Validate()
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
