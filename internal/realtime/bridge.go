// Package realtime fans out row change events to subscribers filtered by table,
// event type and a single column value.
package realtime

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrClosed = errors.New("realtime bridge closed")
	// ErrLagged ends a subscription whose buffer filled up. The subscriber has missed
	// events and must resubscribe and reload.
	ErrLagged = errors.New("realtime subscriber lagged behind")
)

// CloseCodeLagged is the websocket close code used to end a lagged subscription.
const CloseCodeLagged = 4001

type Event string

const (
	EventInsert Event = "INSERT"
	EventUpdate Event = "UPDATE"
	EventAll    Event = "*"
)

type Filter struct {
	Column string
	Value  string
}

type Spec struct {
	Table  string
	Event  Event
	Filter Filter
}

func (s Spec) matches(c Change) bool {
	if s.Table != c.Table {
		return false
	}
	if s.Event != EventAll && s.Event != "" && s.Event != c.Event {
		return false
	}
	if s.Filter.Column == "" {
		return true
	}
	return c.Record[s.Filter.Column] == s.Filter.Value
}

// Change is the minimal row event. Record only carries key columns; consumers fetch
// the full row by id.
type Change struct {
	Table    string            `json:"table"`
	Event    Event             `json:"event"`
	Record   map[string]string `json:"record"`
	CommitAt time.Time         `json:"commit_timestamp"`
}

type Subscription struct {
	id     uint64
	spec   Spec
	ch     chan Change
	bridge *Bridge

	mu     sync.Mutex
	err    error
	closed bool
}

// Changes is closed when the subscription ends. Err reports why.
func (s *Subscription) Changes() <-chan Change {
	return s.ch
}

func (s *Subscription) Spec() Spec {
	return s.spec
}

// Err is nil while the subscription is live or after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) Close() {
	s.bridge.remove(s.id, nil)
}

// finish must be called with the bridge lock held.
func (s *Subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

type Bridge struct {
	log    *slog.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func NewBridge(log *slog.Logger, buffer int) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Bridge{
		log:    log,
		buffer: buffer,
		subs:   make(map[uint64]*Subscription),
	}
}

func (b *Bridge) Subscribe(spec Spec) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		spec:   spec,
		ch:     make(chan Change, b.buffer),
		bridge: b,
	}
	b.subs[sub.id] = sub

	b.log.Debug("realtime subscription opened",
		slog.Uint64("subscription", sub.id),
		slog.String("table", spec.Table),
		slog.String("filter", spec.Filter.Column+"="+spec.Filter.Value),
	)
	return sub, nil
}

// Publish delivers c to every matching subscriber and returns how many received it.
// Publish never blocks on a subscriber.
func (b *Bridge) Publish(c Change) int {
	if c.CommitAt.IsZero() {
		c.CommitAt = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}

	delivered := 0
	for id, sub := range b.subs {
		if !sub.spec.matches(c) {
			continue
		}
		select {
		case sub.ch <- c:
			delivered++
		default:
			b.log.Warn("realtime subscriber lagged, closing", slog.Uint64("subscription", id))
			delete(b.subs, id)
			sub.finish(ErrLagged)
		}
	}
	return delivered
}

func (b *Bridge) remove(id uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	sub.finish(err)
}

func (b *Bridge) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription with ErrClosed.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.finish(ErrClosed)
	}
}
