package main

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

// sink delivers one outbox row to a broker and returns once it is acknowledged.
type sink interface {
	Name() string
	Ping(context.Context) error
	Send(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error
}

func eventAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	return map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
}

type pubSubPublisher interface {
	Ping(context.Context) error
	Publish(context.Context, pubsub.Message) (string, error)
}

// pubSubSink orders messages by aggregate id when the client has ordering enabled.
type pubSubSink struct {
	client pubSubPublisher
}

func newPubSubSink(client pubSubPublisher) *pubSubSink {
	return &pubSubSink{client: client}
}

func (s *pubSubSink) Name() string { return "pubsub" }

func (s *pubSubSink) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("pubsub client not configured")
	}
	return s.client.Ping(ctx)
}

func (s *pubSubSink) Send(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	if s.client == nil {
		return errNonRetryable{errors.New("pubsub client not configured")}
	}
	_, err := s.client.Publish(ctx, pubsub.Message{
		Data:        event.Payload,
		Attributes:  eventAttributes(event, envelope),
		OrderingKey: event.AggregateID.String(),
	})
	return err
}

type kafkaProducer interface {
	Ping(context.Context) error
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// kafkaSink keys messages by aggregate id so one aggregate's events stay ordered.
type kafkaSink struct {
	producer kafkaProducer
}

func newKafkaSink(producer kafkaProducer) *kafkaSink {
	return &kafkaSink{producer: producer}
}

func (s *kafkaSink) Name() string { return "kafka" }

func (s *kafkaSink) Ping(ctx context.Context) error {
	return s.producer.Ping(ctx)
}

func (s *kafkaSink) Send(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	return s.producer.Publish(ctx, []byte(event.AggregateID.String()), event.Payload, eventAttributes(event, envelope))
}

type errNonRetryable struct{ err error }

func (e errNonRetryable) Error() string { return e.err.Error() }
func (e errNonRetryable) Unwrap() error { return e.err }
