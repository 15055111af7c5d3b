package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic - топик уведомлений о сверке подписок.
const DefaultTopic = "subscription.reconciled"

// Publisher публикует уведомления о сверке подписок.
type Publisher interface {
	PublishReconciled(ctx context.Context, event domain.SubscriptionReconciled) error
	Close() error
}

// messageWriter - часть *kafka.Writer, которой пользуется продюсер.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *logger.Logger
}

// NewKafkaPublisher создает продюсер поверх segmentio/kafka-go.
func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}

	// Hash по ключу: все уведомления одной подписки попадают в одну партицию.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka publisher initialized", "brokers", brokers, "topic", topic)
	return newPublisher(writer, topic, log), nil
}

func newPublisher(w messageWriter, topic string, log *logger.Logger) *kafkaPublisher {
	return &kafkaPublisher{writer: w, topic: topic, log: log}
}

// PublishReconciled отправляет уведомление с ключом external_subscription_id.
func (k *kafkaPublisher) PublishReconciled(ctx context.Context, event domain.SubscriptionReconciled) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	msg := kafka.Message{
		Topic: k.topic,
		Key:   []byte(event.ExternalSubscriptionID),
		Value: value,
		Time:  time.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, msg); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", k.topic,
				"externalSubscriptionID", event.ExternalSubscriptionID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", k.topic,
			"externalSubscriptionID", event.ExternalSubscriptionID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published reconciliation notification", "topic", k.topic,
		"externalSubscriptionID", event.ExternalSubscriptionID, "outcome", event.Outcome)
	return nil
}

// Close закрывает writer. Вызывается при graceful shutdown.
func (k *kafkaPublisher) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka publisher closed")
	return nil
}
