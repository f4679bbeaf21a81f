package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
)

// Hub is an in-process broadcast channel. Every endpoint joined to a hub
// receives the envelopes the others publish. Options let tests inject the
// duplication, reordering and loss a real network produces.
type Hub struct {
	mu        sync.Mutex
	endpoints map[string]*Loopback
	pending   []delivery

	echo       bool
	duplicates int
	hold       bool
	rng        *rand.Rand
	drop       func(from, to string, env events.Envelope) bool
}

type delivery struct {
	to  *Loopback
	env events.Envelope
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithEcho delivers envelopes back to the publishing endpoint as well.
func WithEcho() HubOption {
	return func(h *Hub) { h.echo = true }
}

// WithDuplicates delivers every envelope n extra times.
func WithDuplicates(n int) HubOption {
	return func(h *Hub) { h.duplicates = n }
}

// WithHold queues deliveries until Flush is called.
func WithHold() HubOption {
	return func(h *Hub) { h.hold = true }
}

// WithShuffle queues deliveries and releases them in a random order on Flush.
func WithShuffle(seed int64) HubOption {
	return func(h *Hub) {
		h.hold = true
		h.rng = rand.New(rand.NewSource(seed))
	}
}

// WithDrop discards deliveries for which drop returns true.
func WithDrop(drop func(from, to string, env events.Envelope) bool) HubOption {
	return func(h *Hub) { h.drop = drop }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{endpoints: make(map[string]*Loopback)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join returns the endpoint for identity, creating it if needed.
func (h *Hub) Join(identity string) *Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ep, ok := h.endpoints[identity]; ok {
		return ep
	}
	ep := &Loopback{hub: h, identity: identity, handlers: make(map[int]Handler)}
	h.endpoints[identity] = ep
	return ep
}

// Pending returns the number of queued deliveries.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Flush releases queued deliveries and returns how many were made.
func (h *Hub) Flush() int {
	h.mu.Lock()
	batch := h.pending
	h.pending = nil
	if h.rng != nil {
		h.rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
	}
	h.mu.Unlock()

	for _, d := range batch {
		d.to.deliver(d.env)
	}
	return len(batch)
}

func (h *Hub) publish(from *Loopback, env events.Envelope) error {
	// Round-trip through the wire codec so in-process delivery sees exactly
	// what a network peer would.
	data, err := events.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	wire, err := events.Unmarshal(data)
	if err != nil {
		return err
	}

	h.mu.Lock()
	var now []delivery
	for id, ep := range h.endpoints {
		if ep == from && !h.echo {
			continue
		}
		if h.drop != nil && h.drop(from.identity, id, wire) {
			continue
		}
		for i := 0; i <= h.duplicates; i++ {
			d := delivery{to: ep, env: wire}
			if h.hold {
				h.pending = append(h.pending, d)
			} else {
				now = append(now, d)
			}
		}
	}
	h.mu.Unlock()

	for _, d := range now {
		d.to.deliver(d.env)
	}
	return nil
}

// Loopback is one participant's endpoint on a Hub.
type Loopback struct {
	hub      *Hub
	identity string

	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int
	closed   bool
}

// Publish broadcasts env to the other endpoints of the hub.
func (l *Loopback) Publish(ctx context.Context, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return l.hub.publish(l, env)
}

// Subscribe registers h for envelopes delivered to this endpoint.
func (l *Loopback) Subscribe(h Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	id := l.nextID
	l.nextID++
	l.handlers[id] = h
	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}, nil
}

// Close stops delivery to this endpoint.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.handlers = make(map[int]Handler)
	return nil
}

func (l *Loopback) deliver(env events.Envelope) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(l.handlers))
	for _, h := range l.handlers {
		handlers = append(handlers, h)
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
}
