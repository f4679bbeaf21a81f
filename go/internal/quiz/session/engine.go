// Package session holds a participant's replica of a shared quiz session and
// the deterministic engine that applies session events to it.
package session

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/race"
)

// Timing holds the countdown lengths the engine installs on stage changes.
type Timing struct {
	DisplaySeconds  int
	ResponseSeconds int
}

// DefaultTiming is the 10 second display and 90 second response window.
var DefaultTiming = Timing{DisplaySeconds: 10, ResponseSeconds: 90}

// Effects tells the caller which timers to start or stop after an envelope
// has been applied. The engine itself never touches a clock.
type Effects struct {
	// Ignored is set when the envelope left the replica unchanged.
	Ignored bool
	// Duplicate is set when a score increment was skipped by a ledger.
	Duplicate bool

	StartCountdown      bool
	StartResponseWindow bool
	StopCountdown       bool
	OpenRaceWindow      bool
}

var ignored = Effects{Ignored: true}

// Engine applies envelopes to a replica. It owns the score ledgers, so one
// engine serves exactly one replica.
type Engine struct {
	identity      string
	timing        Timing
	scores        *Ledger
	confirmations *Ledger
}

// NewEngine creates the engine for the participant named identity.
func NewEngine(identity string, timing Timing) *Engine {
	if timing.DisplaySeconds <= 0 {
		timing.DisplaySeconds = DefaultTiming.DisplaySeconds
	}
	if timing.ResponseSeconds <= 0 {
		timing.ResponseSeconds = DefaultTiming.ResponseSeconds
	}
	return &Engine{
		identity:      identity,
		timing:        timing,
		scores:        NewLedger(RemoteScoreLedgerSize),
		confirmations: NewLedger(LocalScoreLedgerSize),
	}
}

// Identity returns the local participant identity.
func (e *Engine) Identity() string { return e.identity }

// Timing returns the countdown lengths in use.
func (e *Engine) Timing() Timing { return e.timing }

// Apply applies an envelope received from the broadcast channel. Envelopes
// that originated locally are ignored, except response attempts, whose echo
// is absorbed by the one-attempt-per-identity rule.
func (e *Engine) Apply(r *Replica, env events.Envelope) (Effects, error) {
	if env.Origin == e.identity && env.Type != events.TypeResponseAttempt {
		return ignored, nil
	}
	return e.apply(r, env, false)
}

// ApplyLocal applies an envelope produced by a local action before it is
// emitted.
func (e *Engine) ApplyLocal(r *Replica, env events.Envelope) (Effects, error) {
	return e.apply(r, env, true)
}

func (e *Engine) apply(r *Replica, env events.Envelope, local bool) (Effects, error) {
	switch env.Type {
	case events.TypeParticipantJoined:
		p, err := events.Decode[events.ParticipantJoinedPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		r.EnsureParticipant(p.Identity)
		return Effects{}, nil

	case events.TypeSessionStarted:
		p, err := events.Decode[events.SessionStartedPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.startSession(r, env, p), nil

	case events.TypeRoundsConfigured:
		p, err := events.Decode[events.RoundsConfiguredPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.configureRounds(r, env, p), nil

	case events.TypeContentSet:
		p, err := events.Decode[events.ContentSetPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		if !r.CanControl(env.Origin) {
			return ignored, nil
		}
		r.ActiveContentID = p.ContentID
		return Effects{}, nil

	case events.TypeNewQuestion:
		p, err := events.Decode[events.NewQuestionPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.newQuestion(r, env, p), nil

	case events.TypeResponseAttempt:
		p, err := events.Decode[events.ResponseAttemptPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.responseAttempt(r, env, p), nil

	case events.TypeResponseWinner:
		p, err := events.Decode[events.ResponseWinnerPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.responseWinner(r, p), nil

	case events.TypeAnswerSubmitted:
		p, err := events.Decode[events.AnswerSubmittedPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.answerSubmitted(r, p), nil

	case events.TypeScoreReady:
		p, err := events.Decode[events.ScoreReadyPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.scoreReady(r, env, p, local), nil

	case events.TypeRoundAdvanced:
		p, err := events.Decode[events.RoundAdvancedPayload](env)
		if err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		return e.advanceRound(r, env, p), nil

	case events.TypeSessionEnded:
		if _, err := events.Decode[events.SessionEndedPayload](env); err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		if !r.CanControl(env.Origin) || r.Stage == StageGameOver {
			return ignored, nil
		}
		r.Stage = StageGameOver
		r.Countdown = 0
		return Effects{StopCountdown: true}, nil

	case events.TypeSessionReset:
		if _, err := events.Decode[events.SessionResetPayload](env); err != nil {
			return Effects{}, err
		}
		r.EnsureParticipant(env.Origin)
		if !local && !r.CanControl(env.Origin) {
			return ignored, nil
		}
		r.reset()
		e.scores.Clear()
		e.confirmations.Clear()
		return Effects{StopCountdown: true}, nil

	default:
		log.Warn().
			Str("event_type", string(env.Type)).
			Str("origin", env.Origin).
			Msg("unknown event type - ignoring")
		return ignored, nil
	}
}

func (e *Engine) startSession(r *Replica, env events.Envelope, p events.SessionStartedPayload) Effects {
	// A fixed coordinator means this is a redelivery or a losing claim.
	if r.Coordinator != "" {
		return ignored
	}
	coordinator := p.Coordinator
	if coordinator == "" {
		coordinator = env.Origin
	}
	r.EnsureParticipant(coordinator)
	r.Coordinator = coordinator
	r.Active = true
	if r.Round < 1 {
		r.Round = 1
	}
	// A question that overtook the start message stays installed.
	if r.CurrentQuestion == nil {
		r.Stage = StageWaiting
	}
	return Effects{}
}

func (e *Engine) configureRounds(r *Replica, env events.Envelope, p events.RoundsConfiguredPayload) Effects {
	if !r.CanControl(env.Origin) {
		return ignored
	}
	total := p.TotalRounds
	if total > MaxTotalRounds {
		total = MaxTotalRounds
	}
	r.TotalRounds = total
	if r.Round > r.TotalRounds && r.Stage != StageGameOver {
		r.Stage = StageGameOver
		r.Countdown = 0
		return Effects{StopCountdown: true}
	}
	return Effects{}
}

func (e *Engine) newQuestion(r *Replica, env events.Envelope, p events.NewQuestionPayload) Effects {
	if !r.CanControl(env.Origin) || r.Stage == StageGameOver {
		return ignored
	}
	if r.QuestionID() == p.Question.ID {
		return ignored
	}
	r.clearRound()
	q := p.Question
	r.CurrentQuestion = &q
	r.Active = true
	r.Stage = StageQuestionDisplay
	r.Countdown = e.timing.DisplaySeconds
	return Effects{StartCountdown: true}
}

func (e *Engine) responseAttempt(r *Replica, env events.Envelope, p events.ResponseAttemptPayload) Effects {
	if r.Stage != StageBuzzing {
		return ignored
	}
	if p.QuestionID != "" && p.QuestionID != r.QuestionID() {
		return ignored
	}
	if race.Contains(r.Attempts, env.Origin) {
		return ignored
	}
	r.Attempts = append(r.Attempts, race.Attempt{Identity: env.Origin, Timestamp: p.Timestamp})
	return Effects{OpenRaceWindow: len(r.Attempts) == 1}
}

func (e *Engine) responseWinner(r *Replica, p events.ResponseWinnerPayload) Effects {
	if r.CurrentResponder != "" {
		return ignored
	}
	if r.Stage != StageQuestionDisplay && r.Stage != StageBuzzing {
		return ignored
	}
	if p.QuestionID != "" && p.QuestionID != r.QuestionID() {
		return ignored
	}
	r.CurrentResponder = p.Winner
	r.EnsureParticipant(p.Winner).IsResponding = true
	r.Stage = StageAnswering
	r.Countdown = e.timing.ResponseSeconds
	return Effects{StopCountdown: true, StartResponseWindow: true}
}

func (e *Engine) answerSubmitted(r *Replica, p events.AnswerSubmittedPayload) Effects {
	if r.Stage != StageAnswering && r.Stage != StageBuzzing {
		return ignored
	}
	if r.CurrentResponder != "" && r.CurrentResponder != p.Responder {
		return ignored
	}
	r.CurrentResponder = p.Responder
	r.LastAnswer = &Answer{Responder: p.Responder, Transcript: p.Transcript}
	r.Stage = StageScoring
	r.Countdown = 0
	return Effects{StopCountdown: true}
}

func (e *Engine) scoreReady(r *Replica, env events.Envelope, p events.ScoreReadyPayload, local bool) Effects {
	result := *p.Result
	result.Dimensions = append(result.Dimensions[:0:0], p.Result.Dimensions...)
	result.Normalize()

	fx := Effects{}
	if p.Responder == e.identity {
		// The local total is added once, when the local scoring call returns.
		if local {
			if e.confirmations.Observe(ScoreKey(p.Responder, env.EmittedAt)) {
				fx.Duplicate = true
			} else {
				e.award(r, p.Responder, result.TotalScore)
			}
		}
	} else {
		if e.scores.Observe(ScoreKey(p.Responder, env.EmittedAt)) {
			fx.Duplicate = true
		} else {
			e.award(r, p.Responder, result.TotalScore)
		}
	}

	r.LastScore = &result
	// Only a round in progress moves to scoring.
	switch r.Stage {
	case StageBuzzing, StageAnswering, StageScoring:
		r.Stage = StageScoring
		r.Countdown = 0
		fx.StopCountdown = true
	}
	return fx
}

func (e *Engine) award(r *Replica, identity string, points int) {
	p := r.EnsureParticipant(identity)
	p.Score += points
	if p.Score < 0 {
		p.Score = 0
	}
	p.IsResponding = false
	p.HasAnsweredThisRound = true
}

func (e *Engine) advanceRound(r *Replica, env events.Envelope, p events.RoundAdvancedPayload) Effects {
	// A reset session has no coordinator, so only Active keeps a delayed
	// advance from the previous game out.
	if !r.Active || !r.CanControl(env.Origin) || r.Stage == StageGameOver {
		return ignored
	}
	if p.Round <= r.Round {
		return ignored
	}
	r.Countdown = 0
	if p.Round > r.TotalRounds {
		r.Stage = StageGameOver
		return Effects{StopCountdown: true}
	}
	r.Round = p.Round
	r.Stage = StageWaiting
	return Effects{StopCountdown: true}
}

// EndDisplay moves the replica from QUESTION_DISPLAY to BUZZING once the
// display countdown for questionID has run out. It reports whether the stage
// changed.
func (e *Engine) EndDisplay(r *Replica, questionID string) bool {
	if r.Stage != StageQuestionDisplay || r.QuestionID() != questionID {
		return false
	}
	r.Stage = StageBuzzing
	r.Countdown = 0
	return true
}

// Tick decrements the visible countdown, stopping at zero.
func (e *Engine) Tick(r *Replica) int {
	if r.Countdown > 0 {
		r.Countdown--
	}
	return r.Countdown
}

// ScoreKey is the ledger key of a score-ready envelope.
func ScoreKey(responder string, emittedAt int64) string {
	return fmt.Sprintf("%s/%d", responder, emittedAt)
}
