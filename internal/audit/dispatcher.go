package audit

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// KeepFailures exempts unsuccessful outcomes from DropIfFull. They wait
	// for buffer space the way every event does without DropIfFull.
	KeepFailures bool
}

// unknownType is the tally key for events without an event type.
const unknownType = "unknown"

// Tally counts events per event type by disposition.
type Tally struct {
	Delivered map[string]uint64
	Dropped   map[string]uint64
}

// Dispatcher hands session events to a sink from a single goroutine so
// request handlers never wait on sink I/O. A nil *Dispatcher is valid and
// discards everything.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	queue   chan Event
	stop    chan struct{}
	wg      sync.WaitGroup
	closing atomic.Bool
	once    sync.Once

	lost      atomic.Uint64
	mu        sync.Mutex
	delivered map[string]uint64
	dropped   map[string]uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
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

	d := &Dispatcher{
		cfg:       cfg,
		sink:      sink,
		queue:     make(chan Event, cfg.BufferSize),
		stop:      make(chan struct{}),
		delivered: make(map[string]uint64),
		dropped:   make(map[string]uint64),
	}

	d.wg.Add(1)
	go d.loop()

	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
	d.record(d.delivered, event.EventType)
}

func (d *Dispatcher) drop(event Event) {
	d.lost.Add(1)
	d.record(d.dropped, event.EventType)
}

func (d *Dispatcher) record(counts map[string]uint64, eventType string) {
	if eventType == "" {
		eventType = unknownType
	}
	d.mu.Lock()
	counts[eventType]++
	d.mu.Unlock()
}

// Emit queues event, stamping it with the current time when it has none.
// With DropIfFull a saturated buffer drops the event unless it is a failure
// and KeepFailures is set. Otherwise Emit waits for room; an event whose ctx
// ends first counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull && (event.Success || !d.cfg.KeepFailures) {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.drop(event)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	case <-d.stop:
	}
}

// Close stops accepting events and drains the buffer into the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Pending reports how many events are buffered but not yet delivered.
func (d *Dispatcher) Pending() int {
	if d == nil {
		return 0
	}
	return len(d.queue)
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.lost.Load()
}

// Tally returns a copy of the per-type delivery and drop counts.
func (d *Dispatcher) Tally() Tally {
	if d == nil {
		return Tally{Delivered: map[string]uint64{}, Dropped: map[string]uint64{}}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return Tally{Delivered: maps.Clone(d.delivered), Dropped: maps.Clone(d.dropped)}
}
