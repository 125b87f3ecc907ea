package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducerValidatesConfig(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Brokers: []string{" "}, Topic: "events"}, nil)
	assert.ErrorIs(t, err, errNoBrokers)

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: ""}, nil)
	assert.ErrorIs(t, err, errNoTopic)

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "events", p.Topic())
	require.NoError(t, p.Close())
}

func TestPublishCarriesKeyAndHeaders(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{w: w, topic: "events"}

	err := p.Publish(context.Background(), []byte("order-1"), []byte(`{"a":1}`), map[string]string{"event_type": "order_created"})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "order_created", string(w.msgs[0].Headers[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{w: &recordingWriter{err: boom}}
	err := p.Publish(context.Background(), nil, []byte("x"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestPingReportsUnreachableBrokers(t *testing.T) {
	boom := errors.New("refused")
	p := &Producer{
		brokers: []string{"a:9092", "b:9092"},
		dial: func(context.Context, string, string) (*kafka.Conn, error) {
			return nil, boom
		},
	}
	err := p.Ping(context.Background())
	assert.ErrorIs(t, err, boom)
}
