package dashboard

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// queue is an unbounded FIFO of events. The signal channel has room for one
// token, so bursts of Dispatch calls collapse into a single wakeup.
type queue struct {
	mu     sync.Mutex
	events []Event
	signal chan struct{}
}

func newQueue() *queue {
	return &queue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

func (q *queue) push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	ev := q.events[0]
	q.events[0] = nil
	q.events = q.events[1:]
	return ev, true
}

// Dispatcher feeds events to a Store one at a time from a single queue.
// UI input and debounce timer fires share that queue, so transitions never
// interleave. Subscribers get a State snapshot after every applied event.
type Dispatcher struct {
	store  *Store
	queue  *queue
	logger *slog.Logger

	mu   sync.Mutex
	subs []func(State)
}

// NewDispatcher binds store's timer events to the new dispatcher's queue.
// A nil logger discards output.
func NewDispatcher(store *Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &Dispatcher{store: store, queue: newQueue(), logger: logger}
	store.bind(d.Dispatch)
	return d
}

// Subscribe registers fn to receive snapshots. fn runs on the dispatch
// goroutine and must not block.
func (d *Dispatcher) Subscribe(fn func(State)) {
	d.mu.Lock()
	d.subs = append(d.subs, fn)
	d.mu.Unlock()
}

// Dispatch enqueues an event. Safe to call from any goroutine.
func (d *Dispatcher) Dispatch(ev Event) {
	d.queue.push(ev)
}

// Run applies queued events until ctx is done
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("dispatcher started")
	for {
		d.ProcessPending()
		select {
		case <-ctx.Done():
			d.logger.Debug("dispatcher stopped")
			return ctx.Err()
		case <-d.queue.signal:
		}
	}
}

// ProcessPending applies every queued event and returns how many ran
func (d *Dispatcher) ProcessPending() int {
	n := 0
	for {
		ev, ok := d.queue.pop()
		if !ok {
			return n
		}
		d.store.Apply(ev)
		d.notify(d.store.State())
		n++
	}
}

func (d *Dispatcher) notify(st State) {
	d.mu.Lock()
	subs := make([]func(State), len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}
