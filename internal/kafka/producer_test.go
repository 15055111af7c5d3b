package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishReconciled_KeyedBySubscription(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, DefaultTopic, logger.NewNop())

	end := time.Unix(1700000000, 0).UTC()
	err := p.PublishReconciled(context.Background(), domain.SubscriptionReconciled{
		ExternalSubscriptionID: "sub_123",
		UserID:                 "user_789",
		Status:                 domain.StatusActive,
		EndDate:                &end,
		Outcome:                "created",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, "sub_123", string(msg.Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "user_789", body["user_id"])
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "2023-11-14T22:13:20Z", body["end_date"])
}

func TestPublishReconciled_WriteFailure(t *testing.T) {
	p := newPublisher(&fakeWriter{err: errors.New("broker down")}, DefaultTopic, logger.NewNop())

	err := p.PublishReconciled(context.Background(), domain.SubscriptionReconciled{ExternalSubscriptionID: "sub_1"})
	assert.Error(t, err)
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "", logger.NewNop())
	assert.Error(t, err)
}

func TestMissingTopics(t *testing.T) {
	got := missingTopics([]Topic{
		{Name: DefaultTopic, NumPartitions: 3},
		{Name: "already.there"},
	}, map[string]bool{"already.there": true})

	require.Len(t, got, 1)
	assert.Equal(t, DefaultTopic, got[0].Topic)
	assert.Equal(t, 3, got[0].NumPartitions)
	assert.Equal(t, 1, got[0].ReplicationFactor)
}
