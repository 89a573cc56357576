package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// dropLogEvery throttles the dropped-event warning under sustained overload.
const dropLogEvery = 1000

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled      bool
	BufferSize   int
	DropIfFull   bool
	// CloseTimeout bounds Close. Events still queued when it elapses are
	// abandoned and counted as dropped. Zero waits for the sink.
	CloseTimeout time.Duration
	Logger       *zap.Logger
}

// Dispatcher forwards login, logout, and rejection events to a sink from a
// single background goroutine so request paths never wait on audit I/O.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	log       *zap.Logger
	ch        chan Event
	done      chan struct{}
	stopped   chan struct{}
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher. It returns nil when audit is disabled;
// every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		log:     log,
		ch:      make(chan Event, cfg.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)

	for {
		select {
		case event := <-d.ch:
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the dispatcher from a panicking sink.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("audit sink panicked",
				zap.String("event_type", event.EventType),
				zap.Any("panic", r),
			)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull a full buffer drops the event; otherwise
// Emit waits for space or for ctx.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.drop(event, 1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.drop(event, 1)
	case <-d.done:
	}
}

func (d *Dispatcher) drop(event Event, n uint64) {
	total := d.dropped.Add(n)
	if total == n || total/dropLogEvery != (total-n)/dropLogEvery {
		d.log.Warn("audit events dropped",
			zap.String("event_type", event.EventType),
			zap.Uint64("dropped_total", total),
		)
	}
}

// Close stops accepting events and flushes the queue, waiting at most
// CloseTimeout for the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)

		if d.cfg.CloseTimeout <= 0 {
			<-d.stopped
			return
		}
		timer := time.NewTimer(d.cfg.CloseTimeout)
		defer timer.Stop()
		select {
		case <-d.stopped:
		case <-timer.C:
			pending := uint64(len(d.ch))
			if pending > 0 {
				d.dropped.Add(pending)
			}
			d.log.Warn("audit flush timed out",
				zap.Duration("timeout", d.cfg.CloseTimeout),
				zap.Uint64("abandoned", pending),
			)
		}
	})
}

// Dropped returns the number of events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
