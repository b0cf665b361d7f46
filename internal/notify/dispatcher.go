package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig sizes the queue and worker pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher is a Notifier backed by a bounded queue and a worker pool.
type Dispatcher struct {
	channels []Channel
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration

	queue chan Message
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts cfg.Workers workers delivering to channels.
// recorder may be nil.
func NewDispatcher(cfg DispatcherConfig, channels []Channel, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		channels: channels,
		recorder: recorder,
		logger:   logger,
		timeout:  cfg.SendTimeout,
		queue:    make(chan Message, cfg.QueueSize),
	}

	for i := range cfg.Workers {
		d.wg.Add(1)
		go d.worker(i)
	}

	logger.Info("notification dispatcher started",
		"workers", cfg.Workers,
		"queue_size", cfg.QueueSize,
		"channels", len(channels),
	)
	return d
}

// Notify enqueues msg without blocking. A full or closed queue drops it.
func (d *Dispatcher) Notify(_ context.Context, msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "dispatcher closed")
		return
	}

	select {
	case d.queue <- msg:
	default:
		d.drop(msg, "queue full")
	}
}

func (d *Dispatcher) drop(msg Message, reason string) {
	d.logger.Warn("notification dropped",
		"reason", reason,
		"kind", msg.Kind,
		"user_id", msg.Recipient.UserID,
	)
	if d.recorder != nil {
		d.recorder.NotificationDropped(string(msg.Kind))
	}
}

func (d *Dispatcher) worker(n int) {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
	d.logger.Debug("notification worker stopped", "worker", n)
}

// deliver tries every channel once. Channels are independent.
func (d *Dispatcher) deliver(msg Message) {
	for _, ch := range d.channels {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := ch.Deliver(ctx, msg)
		cancel()

		if d.recorder != nil {
			d.recorder.NotificationDelivered(string(msg.Kind), ch.Name(), err)
		}
		if err != nil {
			d.logger.Warn("notification delivery failed",
				"channel", ch.Name(),
				"kind", msg.Kind,
				"user_id", msg.Recipient.UserID,
				"error", err,
			)
			continue
		}
		d.logger.Debug("notification delivered",
			"channel", ch.Name(),
			"kind", msg.Kind,
			"user_id", msg.Recipient.UserID,
		)
	}
}

// Shutdown stops accepting messages and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		d.logger.Warn("notification dispatcher shutdown timed out", "pending", len(d.queue))
		return ctx.Err()
	}
}
