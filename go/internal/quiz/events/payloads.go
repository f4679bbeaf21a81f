package events

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

// Payloads carried by session envelopes. Each type validates its own
// required fields so the engine never sees a half-decoded event.

// ParticipantJoinedPayload announces a participant's presence.
type ParticipantJoinedPayload struct {
	Identity string `json:"identity"`
}

func (p ParticipantJoinedPayload) validate() error {
	if p.Identity == "" {
		return missing("identity")
	}
	return nil
}

// SessionStartedPayload claims the coordinator role for a new session.
type SessionStartedPayload struct {
	Coordinator string `json:"coordinator,omitempty"`
}

func (p SessionStartedPayload) validate() error { return nil }

// RoundsConfiguredPayload sets how many rounds the session runs.
type RoundsConfiguredPayload struct {
	TotalRounds int `json:"total_rounds"`
}

func (p RoundsConfiguredPayload) validate() error {
	if p.TotalRounds < 1 {
		return missing("total_rounds")
	}
	return nil
}

// ContentSetPayload binds the session to uploaded content.
type ContentSetPayload struct {
	ContentID string `json:"content_id"`
}

func (p ContentSetPayload) validate() error {
	if p.ContentID == "" {
		return missing("content_id")
	}
	return nil
}

// NewQuestionPayload installs the question for a round.
type NewQuestionPayload struct {
	Question models.Question `json:"question"`
}

func (p NewQuestionPayload) validate() error {
	if !p.Question.Valid() {
		return missing("question")
	}
	return nil
}

// ResponseAttemptPayload records a buzz with the origin's local timestamp.
type ResponseAttemptPayload struct {
	QuestionID string `json:"question_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

func (p ResponseAttemptPayload) validate() error {
	if p.Timestamp <= 0 {
		return missing("timestamp")
	}
	return nil
}

// ResponseWinnerPayload announces the resolved winner of a race.
type ResponseWinnerPayload struct {
	QuestionID string `json:"question_id,omitempty"`
	Winner     string `json:"winner"`
}

func (p ResponseWinnerPayload) validate() error {
	if p.Winner == "" {
		return missing("winner")
	}
	return nil
}

// AnswerSubmittedPayload carries the responder's transcript.
type AnswerSubmittedPayload struct {
	Responder  string `json:"responder"`
	Transcript string `json:"transcript"`
}

func (p AnswerSubmittedPayload) validate() error {
	if p.Responder == "" {
		return missing("responder")
	}
	return nil
}

// ScoreReadyPayload carries the rubric result for a responder.
type ScoreReadyPayload struct {
	Responder string               `json:"responder"`
	Result    *models.RubricResult `json:"result"`
}

func (p ScoreReadyPayload) validate() error {
	if p.Responder == "" {
		return missing("responder")
	}
	if p.Result == nil {
		return missing("result")
	}
	return nil
}

// RoundAdvancedPayload carries the round the coordinator advanced to.
type RoundAdvancedPayload struct {
	Round int `json:"round"`
}

func (p RoundAdvancedPayload) validate() error {
	if p.Round < 1 {
		return missing("round")
	}
	return nil
}

// SessionEndedPayload explains why a session was ended.
type SessionEndedPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (p SessionEndedPayload) validate() error { return nil }

// SessionResetPayload is empty; the type alone carries the meaning.
type SessionResetPayload struct{}

func (p SessionResetPayload) validate() error { return nil }

type validator interface {
	validate() error
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformedPayload, field)
}

// Decode unmarshals the envelope payload into T and validates it.
func Decode[T validator](e Envelope) (T, error) {
	var p T
	if len(e.Payload) == 0 {
		if err := p.validate(); err != nil {
			return p, err
		}
		return p, nil
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, e.Type, err)
	}
	if err := p.validate(); err != nil {
		return p, err
	}
	return p, nil
}
