package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher delivers alerts in the background so that breaker callbacks never block on
// the network. Alerts beyond the buffer are dropped and logged.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan Alert
	done   chan struct{}
}

// NewDispatcher starts a dispatcher. timeout bounds each delivery.
func NewDispatcher(n Notifier, buffer int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		notifier: n,
		timeout:  timeout,
		logger:   logger,
		queue:    make(chan Alert, buffer),
		done:     make(chan struct{}),
	}
	go d.loop()
	return d
}

// Enqueue queues alert and reports whether it was accepted.
func (d *Dispatcher) Enqueue(alert Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- alert:
		return true
	default:
		d.logger.Warn("alert dropped, queue full",
			slog.String("circuit", alert.Circuit),
			slog.String("to", alert.To))
		return false
	}
}

// Close stops accepting alerts and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for alert := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.notifier.Notify(ctx, alert); err != nil {
			d.logger.Error("circuit alert failed",
				slog.String("circuit", alert.Circuit),
				slog.Any("error", err))
		}
		cancel()
	}
}
