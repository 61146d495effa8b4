package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"donationhub/internal/domain"
	"donationhub/internal/metrics"
)

// ErrQueueFull is returned by Notify when the dispatcher cannot accept more
// work without blocking the caller.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned by Notify after Close.
var ErrClosed = errors.New("notification dispatcher closed")

// Sender delivers one donation to a downstream system.
type Sender interface {
	Send(ctx context.Context, r domain.DonationRecord) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, r domain.DonationRecord) error

func (f SenderFunc) Send(ctx context.Context, r domain.DonationRecord) error { return f(ctx, r) }

// Dispatcher hands donations to a Sender on a background goroutine so the
// webhook response never waits on the network.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics

	queue chan domain.DonationRecord
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sender Sender, size int, timeout time.Duration, logger zerolog.Logger, m *metrics.Metrics) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &Dispatcher{
		sender:  sender,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		queue:   make(chan domain.DonationRecord, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues r without blocking.
func (d *Dispatcher) Notify(_ context.Context, r domain.DonationRecord) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- r:
		return nil
	default:
		d.metrics.IncrementDropped("queue_full")
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for r := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.sender.Send(ctx, r)
		cancel()
		if err != nil {
			d.metrics.IncrementDropped("send_failed")
			d.logger.Warn().Err(err).Str("donation_id", r.ID).Msg("donation notification failed")
			continue
		}
		d.logger.Debug().Str("donation_id", r.ID).Msg("donation notification sent")
	}
}

// Close stops accepting work and waits for queued notifications to drain or
// ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
