package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

func TestNew_StampsOriginAndTime(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	env, err := New(TypeResponseAttempt, "alice", now, ResponseAttemptPayload{Timestamp: now.UnixMilli()})
	require.NoError(t, err)

	assert.Equal(t, TypeResponseAttempt, env.Type)
	assert.Equal(t, "alice", env.Origin)
	assert.Equal(t, int64(1_700_000_000_123), env.EmittedAt)
	assert.True(t, env.Emitted().Equal(now))
}

func TestUnmarshal_RejectsMissingHeader(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"round.question"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	_, err = Unmarshal([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestWireRoundTrip(t *testing.T) {
	q := models.Question{ID: "q1", Content: "Explain emergence.", Topic: "complexity"}
	env, err := New(TypeNewQuestion, "host", time.UnixMilli(42), NewQuestionPayload{Question: q})
	require.NoError(t, err)

	data, err := Marshal(env)
	require.NoError(t, err)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)

	payload, err := Decode[NewQuestionPayload](decoded)
	require.NoError(t, err)
	assert.Equal(t, q, payload.Question)
	assert.Equal(t, env.Key(), decoded.Key())
}

func TestDecode_ValidatesRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		fn   func(Envelope) error
	}{
		{
			name: "score without result",
			env:  Envelope{Type: TypeScoreReady, Origin: "a", Payload: []byte(`{"responder":"a"}`)},
			fn:   func(e Envelope) error { _, err := Decode[ScoreReadyPayload](e); return err },
		},
		{
			name: "winner without identity",
			env:  Envelope{Type: TypeResponseWinner, Origin: "a", Payload: []byte(`{}`)},
			fn:   func(e Envelope) error { _, err := Decode[ResponseWinnerPayload](e); return err },
		},
		{
			name: "question without content",
			env:  Envelope{Type: TypeNewQuestion, Origin: "a", Payload: []byte(`{"question":{"id":"q"}}`)},
			fn:   func(e Envelope) error { _, err := Decode[NewQuestionPayload](e); return err },
		},
		{
			name: "advance without round",
			env:  Envelope{Type: TypeRoundAdvanced, Origin: "a"},
			fn:   func(e Envelope) error { _, err := Decode[RoundAdvancedPayload](e); return err },
		},
		{
			name: "rounds with garbage",
			env:  Envelope{Type: TypeRoundsConfigured, Origin: "a", Payload: []byte(`{"total_rounds":"five"}`)},
			fn:   func(e Envelope) error { _, err := Decode[RoundsConfiguredPayload](e); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.env)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDecode_EmptyPayloadForOptionalTypes(t *testing.T) {
	_, err := Decode[SessionStartedPayload](Envelope{Type: TypeSessionStarted, Origin: "a"})
	assert.NoError(t, err)
}

func TestType_Known(t *testing.T) {
	assert.True(t, TypeScoreReady.Known())
	assert.False(t, Type("round.bogus").Known())
}
