package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errNoBrokers = errors.New("kafka brokers are required")
	errNoTopic   = errors.New("kafka topic is required")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes domain events synchronously so callers only mark rows published after the broker acks.
type Producer struct {
	w       messageWriter
	brokers []string
	topic   string
	dial    func(ctx context.Context, network, address string) (*kafka.Conn, error)
}

func NewProducer(cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		return nil, errNoTopic
	}

	p := &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		brokers: brokers,
		topic:   topic,
		dial:    kafka.DialContext,
	}
	if logg != nil {
		ctx := logg.WithFields(context.Background(), map[string]any{"topic": topic, "brokers": brokers})
		logg.Info(ctx, "kafka producer initialized")
	}
	return p, nil
}

// Topic returns the configured topic name.
func (p *Producer) Topic() string {
	return p.topic
}

// Publish writes one keyed message. Messages sharing a key land on the same partition.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return errors.New("kafka producer not initialized")
	}
	msg := kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now().UTC(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Ping dials the first reachable broker.
func (p *Producer) Ping(ctx context.Context) error {
	if p == nil {
		return errors.New("kafka producer not initialized")
	}
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := p.dial(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}
