package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
)

// NATSConfig holds configuration for the NATS broadcast transport
type NATSConfig struct {
	URL           string
	Room          string
	Name          string // client name shown in NATS monitoring
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS transport configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Room:          "lobby",
		Name:          "buzzquiz",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Subject returns the subject every participant of room publishes on.
func Subject(room string) string {
	return "quiz." + room + ".events"
}

// NATS broadcasts envelopes over core NATS pub/sub. The connection is opened
// with NoEcho, so a participant never receives its own envelopes back.
type NATS struct {
	nc       *nats.Conn
	subject  string
	recorder metrics.Recorder
}

// NewNATS connects to the server in config.
func NewNATS(config NATSConfig, recorder metrics.Recorder) (*NATS, error) {
	if config.Room == "" {
		return nil, fmt.Errorf("room is required")
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.NoEcho(),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("subject", Subject(config.Room)).
		Msg("connected to NATS")

	return &NATS{nc: nc, subject: Subject(config.Room), recorder: recorder}, nil
}

// Publish sends env to every other participant in the room.
func (t *NATS) Publish(ctx context.Context, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.nc.IsClosed() {
		return ErrClosed
	}
	data, err := events.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := t.nc.Publish(t.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	return nil
}

// Subscribe delivers every well-formed envelope on the room subject to h.
// Envelopes that fail to decode are logged and dropped.
func (t *NATS) Subscribe(h Handler) (func(), error) {
	sub, err := t.nc.Subscribe(t.subject, func(msg *nats.Msg) {
		env, err := events.Unmarshal(msg.Data)
		if err != nil {
			log.Warn().
				Err(err).
				Str("subject", msg.Subject).
				Msg("dropping malformed envelope")
			t.recorder.RecordReceived("unknown", metrics.OutcomeMalformed)
			return
		}
		h(env)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", t.subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Str("subject", t.subject).Msg("failed to unsubscribe")
		}
	}, nil
}

// Close drains pending publishes and closes the connection.
func (t *NATS) Close() error {
	if t.nc == nil || t.nc.IsClosed() {
		return nil
	}
	if err := t.nc.Drain(); err != nil {
		t.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
