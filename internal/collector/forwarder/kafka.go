// Package forwarder publishes stored collector events to Kafka so downstream
// consumers can follow issuances without polling /logs.
package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"pdftrack/internal/collector/models"
)

// DefaultTopic receives one record per stored event.
const DefaultTopic = "pdf-tracking-events"

// KafkaForwarder produces events keyed by recipient email, so every event for
// one recipient lands on the same partition in order.
type KafkaForwarder struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer to brokers.
func NewKafka(brokers []string, topic string) (*KafkaForwarder, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(0),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaForwarder{client: client, topic: topic}, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (f *KafkaForwarder) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(f.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, f.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", f.topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Forward produces ev synchronously.
func (f *KafkaForwarder) Forward(ctx context.Context, ev models.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: f.topic,
		Key:   []byte(ev.User.Email),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(ev.Event)},
			{Key: "tracking_id", Value: []byte(ev.TrackingID)},
		},
	}
	if err := f.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", f.topic, err)
	}
	return nil
}

// Health pings the cluster.
func (f *KafkaForwarder) Health(ctx context.Context) error {
	return f.client.Ping(ctx)
}

func (f *KafkaForwarder) Close() {
	f.client.Close()
}
