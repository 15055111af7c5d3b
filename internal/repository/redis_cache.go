package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	customerUserKeyPrefix   = "customer_user:"
	processedEventKeyPrefix = "processed_event:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
	// Stripe повторяет доставку до трех суток
	processedEventTTL = 72 * time.Hour
)

// RedisCacheRepository хранит в Redis кэш привязки клиент шлюза -> пользователь
// и журнал уже обработанных событий вебхука.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return NewRedisCacheRepositoryFromClient(client, log), nil
}

// NewRedisCacheRepositoryFromClient оборачивает готовый клиент.
func NewRedisCacheRepositoryFromClient(client *redis.Client, log *logger.Logger) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}
}

// Ping проверяет доступность Redis.
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheUserByCustomer кэширует пользователя по ID клиента шлюза.
// Привязка неизменяема, поэтому инвалидация не нужна.
func (r *RedisCacheRepository) CacheUserByCustomer(ctx context.Context, customerID string, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := r.client.Set(ctx, customerUserKeyPrefix+customerID, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache user in Redis", "error", err, "stripeCustomerID", customerID)
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// GetCachedUserByCustomer возвращает (nil, nil), если ключа нет.
func (r *RedisCacheRepository) GetCachedUserByCustomer(ctx context.Context, customerID string) (*models.User, error) {
	data, err := r.client.Get(ctx, customerUserKeyPrefix+customerID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.log.Errorw("Error getting user from Redis", "error", err, "stripeCustomerID", customerID)
		return nil, fmt.Errorf("failed to get user from cache: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}
	return &user, nil
}

// Seen сообщает, было ли событие уже успешно обработано.
func (r *RedisCacheRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, processedEventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed отмечает событие обработанным. Вызывается только после
// успешной обработки, иначе повтор от шлюза был бы потерян.
func (r *RedisCacheRepository) MarkProcessed(ctx context.Context, eventID string) error {
	if err := r.client.SetNX(ctx, processedEventKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), processedEventTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
