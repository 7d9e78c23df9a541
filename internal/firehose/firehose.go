// Package firehose publishes every dispatched event to a Kafka topic so
// downstream consumers (indexers, archival, analytics) can follow engine
// activity without holding a WebSocket open. The firehose is optional; the
// daemon runs without it when no brokers are configured.
package firehose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"dcbridge/internal/bridge"
	"dcbridge/internal/events"
	"dcbridge/internal/metrics"
	"dcbridge/pkg/logging"
)

// Config describes the Kafka connection.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Publisher streams bridge events to Kafka.
type Publisher struct {
	client  *kgo.Client
	logger  logging.Logger
	metrics *metrics.Metrics // optional
	topic   string
}

// New connects a publisher. The connection is lazy; broker availability is
// surfaced through the health check, not here.
func New(cfg Config, logger logging.Logger, m *metrics.Metrics) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("firehose: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("firehose: no topic configured")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "dcbridge"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("firehose: create client: %w", err)
	}
	return &Publisher{client: client, logger: logger, metrics: m, topic: cfg.Topic}, nil
}

// Client exposes the Kafka client for health checking.
func (p *Publisher) Client() *kgo.Client { return p.client }

// Run drains the stream into Kafka until ctx is done or the stream closes.
func (p *Publisher) Run(ctx context.Context, stream *bridge.Stream) {
	p.logger.WithField("topic", p.topic).Info("Firehose started")
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, bridge.ErrStreamClosed) {
				p.logger.WithError(err).Error("Firehose stream error")
			}
			return
		}
		p.publish(ctx, ev)
	}
}

func (p *Publisher) publish(ctx context.Context, ev events.Event) {
	record, err := Record(p.topic, ev)
	if err != nil {
		p.logger.WithError(err).WithField("event_kind", ev.Kind).Error("Failed to encode firehose record")
		return
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.WithError(err).WithField("event_kind", ev.Kind).Error("Failed to publish event")
			if p.metrics != nil {
				p.metrics.FirehoseMessages.WithLabelValues("error").Inc()
			}
			return
		}
		if p.metrics != nil {
			p.metrics.FirehoseMessages.WithLabelValues("ok").Inc()
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WithError(err).Warn("Firehose flush failed")
	}
	p.client.Close()
}

// wireEvent is the record value shape.
type wireEvent struct {
	Event     events.Kind    `json:"event"`
	Data      events.Payload `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Record builds the Kafka record for one event. Records are keyed by kind so
// per-kind ordering survives partitioning.
func Record(topic string, ev events.Event) (*kgo.Record, error) {
	value, err := json.Marshal(wireEvent{Event: ev.Kind, Data: ev.Payload, Timestamp: ev.Time})
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(ev.Kind),
		Value: value,
	}, nil
}
