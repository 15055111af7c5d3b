package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Политики доступа после отмены подписки (billing.cancel_policy).
const (
	CancelPolicyRevokeImmediately = "revoke_immediately"
	CancelPolicyHonorPaidPeriod   = "honor_paid_period"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port        string `mapstructure:"port"`
		Env         string `mapstructure:"env"`
		FrontendURL string `mapstructure:"frontend_url"`
	} `mapstructure:"app"`
	Database struct {
		DSN      string `mapstructure:"dsn"`
		MaxConns int32  `mapstructure:"max_conns"`
		MinConns int32  `mapstructure:"min_conns"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey         string `mapstructure:"api_key"`
		WebhookSecret  string `mapstructure:"webhook_secret"`
		DefaultPriceID string `mapstructure:"default_price_id"`
	} `mapstructure:"stripe"`
	Billing struct {
		PlanID       string            `mapstructure:"plan_id"`
		CancelPolicy string            `mapstructure:"cancel_policy"`
		Plans        map[string]string `mapstructure:"plans"`
	} `mapstructure:"billing"`
	GRPC struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"grpc"`
	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
}

// LoadConfig загружает конфигурацию из config.yaml в каталоге dir (если есть),
// .env (вне production) и переменных окружения. Переменные окружения
// перекрывают файл: STRIPE_WEBHOOK_SECRET -> stripe.webhook_secret.
func LoadConfig(dir string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env не обязателен
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	return &cfg, nil
}

// Каждый ключ должен иметь значение по умолчанию, иначе AutomaticEnv
// не подхватит его при Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.frontend_url", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "subscription.reconciled")
	v.SetDefault("stripe.api_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.default_price_id", "")
	v.SetDefault("billing.plan_id", "premium")
	v.SetDefault("billing.cancel_policy", CancelPolicyRevokeImmediately)
	v.SetDefault("billing.plans", map[string]string{})
	v.SetDefault("grpc.port", "9090")
	v.SetDefault("auth.jwt_secret", "")
}

// Validate проверяет обязательные настройки. Ошибка оборачивает
// domain.ErrConfiguration и перечисляет все отсутствующие ключи.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"stripe.api_key", c.Stripe.APIKey},
		{"stripe.webhook_secret", c.Stripe.WebhookSecret},
		{"stripe.default_price_id", c.Stripe.DefaultPriceID},
		{"app.frontend_url", c.App.FrontendURL},
		{"database.dsn", c.Database.DSN},
		{"auth.jwt_secret", c.Auth.JWTSecret},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}

	switch c.Billing.CancelPolicy {
	case CancelPolicyRevokeImmediately, CancelPolicyHonorPaidPeriod:
	default:
		return fmt.Errorf("%w: unknown billing.cancel_policy %q", domain.ErrConfiguration, c.Billing.CancelPolicy)
	}
	return nil
}

// PlanFor возвращает метку плана для цены шлюза. Viper приводит ключи
// карт к нижнему регистру, поэтому ID цены сравнивается без учета регистра.
func (c *Config) PlanFor(priceID string) string {
	if plan, ok := c.Billing.Plans[priceID]; ok && plan != "" {
		return plan
	}
	if plan, ok := c.Billing.Plans[strings.ToLower(priceID)]; ok && plan != "" {
		return plan
	}
	return c.Billing.PlanID
}

// KAFKA_BROKERS приходит из окружения одной строкой через запятую.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
