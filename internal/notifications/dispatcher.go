package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
)

const (
	sendTimeout       = 15 * time.Second
	maxRecentFailures = 8
)

var errClosed = errors.New("dispatcher closed")

type emailLookup interface {
	FindEmail(ctx context.Context, id uuid.UUID) (string, error)
}

// Notification is addressed to a user and resolved to an email address by the worker.
type Notification struct {
	UserID  uuid.UUID
	Subject string
	Text    string
	HTML    string
}

// Notifier is what lifecycle services depend on. Enqueue never blocks.
type Notifier interface {
	Enqueue(ctx context.Context, n Notification) bool
}

// Dispatcher is a bounded queue drained by a fixed set of workers.
type Dispatcher struct {
	queue   chan Notification
	workers int
	sender  mailer.Sender
	emails  emailLookup
	logg    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(cfg config.NotificationsConfig, sender mailer.Sender, emails emailLookup, logg *logger.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if emails == nil {
		return nil, fmt.Errorf("email lookup required")
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan Notification, size),
		workers: workers,
		sender:  sender,
		emails:  emails,
		logg:    logg,
	}, nil
}

// Enqueue drops the notification when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(ctx context.Context, n Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.warn(ctx, n, "notification.dropped_closed")
		return false
	}
	select {
	case d.queue <- n:
		return true
	default:
		d.warn(ctx, n, "notification.dropped_queue_full")
		return false
	}
}

// Run starts the workers and blocks until Close is called and the queue is drained.
// Send failures are logged as they happen; the returned error reports how many
// failed and carries the most recent ones.
func (d *Dispatcher) Run(ctx context.Context) error {
	var (
		group    errgroup.Group
		failures sendFailures
	)
	for i := 0; i < d.workers; i++ {
		group.Go(func() error {
			for n := range d.queue {
				if err := d.deliver(ctx, n); err != nil {
					failures.record(err)
				}
			}
			return nil
		})
	}
	_ = group.Wait()
	return failures.err()
}

// sendFailures counts every failure but keeps only the last few errors.
type sendFailures struct {
	mu     sync.Mutex
	count  int
	recent []error
}

func (f *sendFailures) record(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if len(f.recent) == maxRecentFailures {
		f.recent = append(f.recent[:0], f.recent[1:]...)
	}
	f.recent = append(f.recent, err)
}

func (f *sendFailures) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == 0 {
		return nil
	}
	return fmt.Errorf("%d notifications failed: %w", f.count, multierr.Combine(f.recent...))
}

// Close stops accepting notifications. Queued ones are still delivered by Run.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.queue)
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	email, err := d.emails.FindEmail(sendCtx, n.UserID)
	if err != nil {
		d.fail(ctx, n, "notification.lookup_failed", err)
		return err
	}
	err = d.sender.Send(sendCtx, mailer.Message{
		ToEmail: email,
		Subject: n.Subject,
		Text:    n.Text,
		HTML:    n.HTML,
	})
	if err != nil {
		d.fail(ctx, n, "notification.send_failed", err)
		return err
	}
	if d.logg != nil {
		d.logg.Info(d.logg.WithFields(ctx, fields(n)), "notification.sent")
	}
	return nil
}

func (d *Dispatcher) warn(ctx context.Context, n Notification, msg string) {
	if d.logg != nil {
		d.logg.Warn(d.logg.WithFields(ctx, fields(n)), msg)
	}
}

func (d *Dispatcher) fail(ctx context.Context, n Notification, msg string, err error) {
	if d.logg != nil {
		d.logg.Error(d.logg.WithFields(ctx, fields(n)), msg, err)
	}
}

func fields(n Notification) map[string]any {
	return map[string]any{"user_id": n.UserID.String(), "subject": n.Subject}
}
