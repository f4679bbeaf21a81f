// Package transport carries session envelopes between participants. Delivery
// is best effort: envelopes may be lost, duplicated or reordered, and callers
// must tolerate all three.
package transport

import (
	"context"
	"errors"

	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
)

// ErrClosed is returned when publishing on a closed transport.
var ErrClosed = errors.New("transport closed")

// Handler receives envelopes from other participants. It must not block for
// long; implementations call it from their delivery goroutine.
type Handler func(events.Envelope)

// Transport is a broadcast channel shared by every participant of a room.
type Transport interface {
	Publish(ctx context.Context, env events.Envelope) error
	Subscribe(h Handler) (unsubscribe func(), err error)
	Close() error
}
