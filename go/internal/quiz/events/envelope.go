package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload is returned when an envelope payload is missing a
// required field or cannot be decoded.
var ErrMalformedPayload = errors.New("malformed envelope payload")

// Type identifies the kind of session event carried by an envelope.
type Type string

const (
	TypeParticipantJoined Type = "participant.joined"

	TypeSessionStarted   Type = "session.started"
	TypeRoundsConfigured Type = "session.rounds_configured"
	TypeContentSet       Type = "session.content_set"
	TypeSessionEnded     Type = "session.ended"
	TypeSessionReset     Type = "session.reset"

	TypeNewQuestion     Type = "round.question"
	TypeResponseAttempt Type = "round.response_attempt"
	TypeResponseWinner  Type = "round.response_winner"
	TypeAnswerSubmitted Type = "round.answer_submitted"
	TypeScoreReady      Type = "round.score_ready"
	TypeRoundAdvanced   Type = "round.advanced"
)

// Known reports whether t is an envelope type this build understands.
func (t Type) Known() bool {
	switch t {
	case TypeParticipantJoined, TypeSessionStarted, TypeRoundsConfigured, TypeContentSet,
		TypeSessionEnded, TypeSessionReset, TypeNewQuestion, TypeResponseAttempt,
		TypeResponseWinner, TypeAnswerSubmitted, TypeScoreReady, TypeRoundAdvanced:
		return true
	}
	return false
}

// Envelope is the wire-level unit of replication between participants.
type Envelope struct {
	Type      Type            `json:"type"`
	Origin    string          `json:"origin"`
	EmittedAt int64           `json:"emitted_at"` // unix milliseconds on the origin's clock
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope stamped with origin and the given local time.
func New(t Type, origin string, now time.Time, payload any) (Envelope, error) {
	env := Envelope{
		Type:      t,
		Origin:    origin,
		EmittedAt: now.UnixMilli(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Emitted returns the emission time on the origin's clock.
func (e Envelope) Emitted() time.Time {
	return time.UnixMilli(e.EmittedAt)
}

// Key is the dedup identity of the envelope.
func (e Envelope) Key() string {
	return fmt.Sprintf("%s/%s/%d", e.Type, e.Origin, e.EmittedAt)
}

// Marshal encodes the envelope for the wire.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes a wire envelope and checks the header fields.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if e.Type == "" || e.Origin == "" {
		return Envelope{}, fmt.Errorf("%w: missing type or origin", ErrMalformedPayload)
	}
	return e, nil
}
