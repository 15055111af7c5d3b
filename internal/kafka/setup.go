package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/Dhoini/comics-billing/pkg/logger"

	kafkaGo "github.com/segmentio/kafka-go"
)

// Topic - параметры создаваемого топика.
type Topic struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// EnsureTopics создает отсутствующие топики через контроллер кластера.
func EnsureTopics(ctx context.Context, brokers []string, topics []Topic, log *logger.Logger) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	broker := strings.TrimSpace(brokers[0])
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}

	conn, err := kafkaGo.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	ctrlAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrl, err := kafkaGo.DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer ctrl.Close()

	partitions, err := ctrl.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}
	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	missing := missingTopics(topics, existing)
	if len(missing) == 0 {
		log.Debugw("Kafka topics already exist", "topics", topicNames(topics))
		return nil
	}

	if err := ctrl.CreateTopics(missing...); err != nil && !errors.Is(err, kafkaGo.TopicAlreadyExists) {
		return fmt.Errorf("kafka create topics failed: %w", err)
	}
	log.Infow("Kafka topics created", "topics", configNames(missing))
	return nil
}

func missingTopics(topics []Topic, existing map[string]bool) []kafkaGo.TopicConfig {
	var out []kafkaGo.TopicConfig
	for _, t := range topics {
		if existing[t.Name] {
			continue
		}
		partitions, replicas := t.NumPartitions, t.ReplicationFactor
		if partitions <= 0 {
			partitions = 1
		}
		if replicas <= 0 {
			replicas = 1
		}
		out = append(out, kafkaGo.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     partitions,
			ReplicationFactor: replicas,
		})
	}
	return out
}

func topicNames(topics []Topic) []string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return names
}

func configNames(cfgs []kafkaGo.TopicConfig) []string {
	names := make([]string, len(cfgs))
	for i, c := range cfgs {
		names[i] = c.Topic
	}
	return names
}
