package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newEvent(t, "event-one", 0),
			newEvent(t, "event-two", 0),
		},
	}
	pub := &fakePubSub{errs: []error{errors.New("transient"), nil}}
	service := newTestService(t, repo, newPubSubSink(pub))

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestPubSubSinkSetsAttributes(t *testing.T) {
	event := newEvent(t, "event-attrs", 0)
	pub := &fakePubSub{}
	sink := newPubSubSink(pub)

	if err := sink.Send(context.Background(), event, outbox.PayloadEnvelope{EventID: "event-attrs"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_id"] != "event-attrs" {
		t.Fatalf("unexpected event_id %q", attrs["event_id"])
	}
	if attrs["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id %q", attrs["aggregate_id"])
	}
	if pub.messages[0].OrderingKey != event.AggregateID.String() {
		t.Fatalf("expected ordering key by aggregate, got %q", pub.messages[0].OrderingKey)
	}
}

func TestKafkaSinkKeysByAggregate(t *testing.T) {
	event := newEvent(t, "event-kafka", 0)
	producer := &fakeKafkaProducer{}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, newKafkaSink(producer))

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(producer.keys) != 1 || producer.keys[0] != event.AggregateID.String() {
		t.Fatalf("unexpected kafka keys %v", producer.keys)
	}
	if producer.headers[0]["event_id"] != "event-kafka" {
		t.Fatalf("unexpected headers %v", producer.headers[0])
	}
	if len(repo.published) != 1 {
		t.Fatalf("expected event to be marked published")
	}
}

func TestServiceProcessBatchParksUndecodablePayload(t *testing.T) {
	event := newEvent(t, "bad", 0)
	event.Payload = json.RawMessage(`not-json`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	producer := &fakeKafkaProducer{}
	service := newTestService(t, repo, newKafkaSink(producer))

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected event to be parked, got %v", repo.terminal)
	}
	if len(producer.keys) != 0 {
		t.Fatalf("undecodable payload must not be sent")
	}
}

func TestServiceProcessBatchParksOnMaxAttempts(t *testing.T) {
	event := newEvent(t, "event-max", 4)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	producer := &fakeKafkaProducer{err: errors.New("broker down")}
	service := newTestService(t, repo, newKafkaSink(producer))

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark, got %d", len(repo.terminal))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal event must not be marked failed")
	}
}

func TestServiceProcessBatchEmpty(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, newKafkaSink(&fakeKafkaProducer{}))
	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if processed {
		t.Fatalf("empty batch should not report processed")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("unexpected backoff %s", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("backoff should cap, got %s", got)
	}
}

func TestServiceReportsOutcomesAndBacklog(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(t, "ok", 0), newEvent(t, "flaky", 0)}}
	pub := &fakePubSub{errs: []error{nil, errors.New("deadline exceeded")}}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, newPubSubSink(pub))
	service.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	values := map[string]float64{}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" {
					key += ":" + lp.GetValue()
				}
			}
			values[key] = m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	if values["outbox_events_total:"+metrics.OutboxRetry] != 1 || values["outbox_events_total:"+metrics.OutboxPublished] != 1 {
		t.Fatalf("unexpected outcome counters %v", values)
	}
	if values["outbox_backlog"] != 1 {
		t.Fatalf("expected backlog of 1, got %v", values["outbox_backlog"])
	}
}

func newTestService(t *testing.T, repo outboxRepository, s sink) *Service {
	t.Helper()
	cfg := &config.Config{
		Outbox: config.OutboxConfig{
			BatchSize:      2,
			PollIntervalMS: 100,
			MaxAttempts:    5,
		},
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		Sink:       s,
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newEvent(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) CountPending(*gorm.DB, int) (int64, error) {
	return int64(len(f.events) - len(f.published) - len(f.terminal)), nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSub struct {
	errs     []error
	messages []pubsub.Message
}

func (f *fakePubSub) Ping(context.Context) error { return nil }

func (f *fakePubSub) Publish(_ context.Context, msg pubsub.Message) (string, error) {
	f.messages = append(f.messages, msg)
	if len(f.errs) == 0 {
		return "srv-1", nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return "srv-1", err
}

type fakeKafkaProducer struct {
	err     error
	keys    []string
	headers []map[string]string
}

func (f *fakeKafkaProducer) Ping(context.Context) error { return nil }

func (f *fakeKafkaProducer) Publish(_ context.Context, key, _ []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, string(key))
	f.headers = append(f.headers, headers)
	return nil
}
