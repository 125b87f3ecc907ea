package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	CountPending(tx *gorm.DB, maxAttempts int) (int64, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Sink       sink
	Repository outboxRepository
	Metrics    *metrics.OutboxMetrics
}

// Service relays committed outbox rows to the configured broker, oldest first.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	sink        sink
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Sink == nil:
		return nil, errors.New("publish sink is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	}
	cfg := p.Config.Outbox
	s := &Service{
		logg:        p.Logger,
		db:          p.DB,
		repo:        p.Repository,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		poll:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
	if s.poll <= 0 {
		s.poll = defaultPoll
	}
	return s, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is cancelled. Full batches are followed immediately by the next poll;
// batch errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, s.sink.Name(): s.sink.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, "outbox.dependency_unavailable", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	wait := s.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = nextBackoff(wait, s.poll, maxBackoff)
		case processed:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeTerminal
)

func (o outcome) label() string {
	switch o {
	case outcomePublished:
		return metrics.OutboxPublished
	case outcomeRetry:
		return metrics.OutboxRetry
	}
	return metrics.OutboxTerminal
}

// processBatch sends each locked row and records the result on it within the same transaction.
// One row failing does not stop the rest of the batch.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.relay(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil && processed {
		s.reportBacklog(ctx)
	}
	return processed, err
}

func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	envelope, decodeErr := outbox.DecodeEnvelope(event.Payload)
	fields := s.eventFields(event, envelope)

	var sendErr error
	result := outcomeTerminal
	if decodeErr != nil {
		sendErr = fmt.Errorf("decode envelope: %w", decodeErr)
	} else {
		result, sendErr = s.send(ctx, event, envelope)
	}
	s.metrics.Observe(s.sink.Name(), string(event.EventType), result.label())

	logCtx := s.logg.WithFields(ctx, fields)
	switch result {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(logCtx, "outbox.published")
	case outcomeRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "error", sendErr.Error()), "outbox.publish_failed")
		if err := s.repo.MarkFailedTx(tx, event.ID, sendErr); err != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, err)
		}
	case outcomeTerminal:
		s.logg.Warn(s.logg.WithField(logCtx, "error", sendErr.Error()), "outbox.parked")
		if err := s.repo.MarkTerminalTx(tx, event.ID, sendErr, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

// send classifies a delivery attempt. Non-retryable sink errors and the last allowed attempt park
// the row; anything else is retried on a later poll.
func (s *Service) send(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) (outcome, error) {
	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := s.sink.Send(sendCtx, event, envelope)
	var nonRetry errNonRetryable
	switch {
	case err == nil:
		return outcomePublished, nil
	case errors.As(err, &nonRetry):
		return outcomeTerminal, err
	case event.AttemptCount+1 >= s.maxAttempts:
		return outcomeTerminal, fmt.Errorf("max publish attempts reached: %w", err)
	}
	return outcomeRetry, err
}

func (s *Service) reportBacklog(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.repo.CountPending(nil, s.maxAttempts)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox.backlog_unavailable")
		return
	}
	s.metrics.SetBacklog(n)
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"sink":           s.sink.Name(),
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
