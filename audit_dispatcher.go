package goSession

import (
	"context"
	"sync"
	"sync/atomic"
)

// lifecycleEvents mark a change in who is signed in. They wait for queue room
// even when DropIfFull is set.
var lifecycleEvents = map[string]bool{
	auditEventLoginSuccess:        true,
	auditEventOAuthCodeExchanged:  true,
	auditEventCredentialsRestored: true,
	auditEventLogout:              true,
	auditEventSessionReset:        true,
}

// auditDispatcher feeds the sink from one writer goroutine.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool

	// mu guards closed and the send side of queue.
	mu      sync.RWMutex
	closed  bool
	queue   chan AuditEvent
	flushed chan struct{}
	dropped atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, cfg.BufferSize),
		flushed:    make(chan struct{}),
	}
	go d.write()
	return d
}

// write runs until Close closes the queue, then drains what is left.
func (d *auditDispatcher) write() {
	defer close(d.flushed)
	for event := range d.queue {
		ctx := context.Background()
		if event.CorrelationID != "" {
			ctx = WithCorrelationID(ctx, event.CorrelationID)
		}
		d.sink.Emit(ctx, event)
	}
}

// Emit queues event. With DropIfFull a full queue drops routine events and
// counts them. Lifecycle events, and every event without DropIfFull, wait for
// room; a cancelled ctx drops and counts the event.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull && !lifecycleEvents[event.EventType] {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits for the queue to reach the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.flushed
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
