// Package workers moves completion reports and analytics events off the
// game path. Engines hand them to a Dispatcher without blocking; a single
// worker goroutine persists reports and publishes events.
package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/playpcd/pcdtrainer/internal/engine"
)

// ErrQueueFull is returned when an item is dropped because the worker has
// fallen behind.
var ErrQueueFull = errors.New("dispatch queue full")

// ResultWriter persists completion reports.
type ResultWriter interface {
	SaveResult(ctx context.Context, r engine.Report) error
}

// EventPublisher delivers analytics events.
type EventPublisher interface {
	Publish(ctx context.Context, ev engine.Event) error
}

type Dispatcher struct {
	results   ResultWriter
	publisher EventPublisher
	logger    *slog.Logger
	reports   chan engine.Report
	events    chan engine.Event
	flush     time.Duration
}

type NewDispatcherOptions struct {
	Results   ResultWriter
	Publisher EventPublisher
	Logger    *slog.Logger
	// Buffer is the capacity of each queue. Defaults to 256.
	Buffer int
	// FlushTimeout bounds how long Start spends draining the queues after
	// its context is cancelled. Defaults to 5s.
	FlushTimeout time.Duration
}

func NewDispatcher(opts NewDispatcherOptions) *Dispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		results:   opts.Results,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		reports:   make(chan engine.Report, opts.Buffer),
		events:    make(chan engine.Event, opts.Buffer),
		flush:     opts.FlushTimeout,
	}
}

// ReportGame queues r for persistence.
func (d *Dispatcher) ReportGame(r engine.Report) error {
	select {
	case d.reports <- r:
		return nil
	default:
		d.logger.Warn("dropping game report", "game", r.GameID, "error", ErrQueueFull)
		return ErrQueueFull
	}
}

// Track queues ev for publishing.
func (d *Dispatcher) Track(ev engine.Event) error {
	select {
	case d.events <- ev:
		return nil
	default:
		d.logger.Warn("dropping analytics event", "event", ev.Name, "game", ev.GameID, "error", ErrQueueFull)
		return ErrQueueFull
	}
}

// Start processes queued items until ctx is cancelled, then drains what is
// left using a fresh context bounded by the flush timeout.
func (d *Dispatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return nil
		case r := <-d.reports:
			d.saveResult(ctx, r)
		case ev := <-d.events:
			d.publish(ctx, ev)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.flush)
	defer cancel()

	var n int
	for {
		select {
		case r := <-d.reports:
			d.saveResult(ctx, r)
		case ev := <-d.events:
			d.publish(ctx, ev)
		default:
			if n > 0 {
				d.logger.Info("dispatcher flushed", "items", n)
			}
			return
		}
		n++
	}
}

func (d *Dispatcher) saveResult(ctx context.Context, r engine.Report) {
	if d.results == nil {
		return
	}
	if err := d.results.SaveResult(ctx, r); err != nil {
		d.logger.Error("failed to save game result", "game", r.GameID, "error", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev engine.Event) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, ev); err != nil {
		d.logger.Error("failed to publish analytics event", "event", ev.Name, "game", ev.GameID, "error", err)
	}
}
