package node

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/models"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/race"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/session"
)

// Actions issued from the wrong stage, or by a participant that is not the
// coordinator, are ignored and return nil.

// StartGame claims the coordinator role, configures the number of rounds and
// generates the first question. totalRounds <= 0 uses the configured default.
func (n *Node) StartGame(ctx context.Context, totalRounds int) error {
	if totalRounds <= 0 {
		totalRounds = n.cfg.TotalRounds
	}
	if totalRounds > session.MaxTotalRounds {
		totalRounds = session.MaxTotalRounds
	}

	started := false
	err := n.call(ctx, func() error {
		if n.replica.Coordinator != "" {
			return nil
		}
		fx, err := n.emit(events.TypeSessionStarted, events.SessionStartedPayload{Coordinator: n.cfg.Identity})
		if err != nil || fx.Ignored {
			return err
		}
		if _, err := n.emit(events.TypeRoundsConfigured, events.RoundsConfiguredPayload{TotalRounds: totalRounds}); err != nil {
			return err
		}
		started = true
		return nil
	})
	if err != nil || !started {
		return err
	}

	log.Info().
		Str("identity", n.cfg.Identity).
		Int("total_rounds", totalRounds).
		Msg("game started")

	return n.GenerateQuestion(ctx)
}

// SetContent binds the session to uploaded content so later questions are
// drawn from its pool.
func (n *Node) SetContent(ctx context.Context, contentID string) error {
	if contentID == "" {
		return fmt.Errorf("content id is required")
	}
	return n.call(ctx, func() error {
		if !n.replica.CanControl(n.cfg.Identity) {
			return nil
		}
		_, err := n.emit(events.TypeContentSet, events.ContentSetPayload{ContentID: contentID})
		return err
	})
}

// GenerateQuestion asks the question source for the next question and
// installs it. Only the coordinator generates, and only while WAITING.
func (n *Node) GenerateQuestion(ctx context.Context) error {
	if n.questions == nil {
		return fmt.Errorf("generate question: %w", ErrNoCollaborator)
	}

	var contentID string
	allowed := false
	err := n.call(ctx, func() error {
		allowed = n.canGenerate()
		contentID = n.replica.ActiveContentID
		return nil
	})
	if err != nil || !allowed {
		return err
	}

	start := n.clock.Now()
	q, err := n.questions.GenerateQuestion(ctx, n.cfg.Difficulty, contentID)
	n.recorder.RecordCollaborator("generate_question", err == nil, n.clock.Since(start))
	if err != nil {
		return fmt.Errorf("failed to generate question: %w", err)
	}
	if q.ContentID == "" {
		q.ContentID = contentID
	}

	return n.call(ctx, func() error {
		if !n.canGenerate() {
			return nil
		}
		fx, err := n.emit(events.TypeNewQuestion, events.NewQuestionPayload{Question: q})
		if err != nil {
			return err
		}
		if !fx.Ignored {
			log.Info().
				Str("question_id", q.ID).
				Str("topic", q.Topic).
				Int("round", n.replica.Round).
				Msg("question installed")
		}
		return nil
	})
}

func (n *Node) canGenerate() bool {
	r := n.replica
	return r.Active && r.Stage == session.StageWaiting && r.CanControl(n.cfg.Identity)
}

// Buzz records the local participant's attempt to respond.
func (n *Node) Buzz(ctx context.Context) error {
	return n.call(ctx, func() error {
		r := n.replica
		if r.Stage != session.StageBuzzing || race.Contains(r.Attempts, n.cfg.Identity) {
			return nil
		}
		_, err := n.emit(events.TypeResponseAttempt, events.ResponseAttemptPayload{
			QuestionID: r.QuestionID(),
			Timestamp:  n.clock.Now().UnixMilli(),
		})
		return err
	})
}

// SubmitAnswer submits transcript as the local responder's answer and scores
// it. A scoring failure is returned; the session stays in SCORING.
func (n *Node) SubmitAnswer(ctx context.Context, transcript string) error {
	var (
		a  pendingAnswer
		ok bool
	)
	err := n.call(ctx, func() error {
		a, ok = n.beginAnswer(transcript)
		return nil
	})
	if err != nil || !ok {
		return err
	}
	return n.scoreAnswer(ctx, a, transcript)
}

// SubmitAudio transcribes recorded audio and submits the transcript.
func (n *Node) SubmitAudio(ctx context.Context, audio []byte, filename string) error {
	if n.transcriber == nil {
		return fmt.Errorf("transcribe: %w", ErrNoCollaborator)
	}

	responding := false
	if err := n.call(ctx, func() error {
		responding = n.isResponding()
		return nil
	}); err != nil || !responding {
		return err
	}

	start := n.clock.Now()
	transcript, err := n.transcriber.Transcribe(ctx, audio, filename)
	n.recorder.RecordCollaborator("transcribe", err == nil, n.clock.Since(start))
	if err != nil {
		return fmt.Errorf("failed to transcribe answer: %w", err)
	}
	return n.SubmitAnswer(ctx, transcript)
}

func (n *Node) isResponding() bool {
	r := n.replica
	return r.Stage == session.StageAnswering && r.CurrentResponder == n.cfg.Identity && r.CurrentQuestion != nil
}

// pendingAnswer identifies the question being scored and the replica
// generation it was submitted in.
type pendingAnswer struct {
	question   models.Question
	generation uint64
}

// beginAnswer runs on the actor: it records the answer locally and emits it.
func (n *Node) beginAnswer(transcript string) (pendingAnswer, bool) {
	if !n.isResponding() {
		return pendingAnswer{}, false
	}
	a := pendingAnswer{question: *n.replica.CurrentQuestion, generation: n.replica.Generation()}
	fx, err := n.emit(events.TypeAnswerSubmitted, events.AnswerSubmittedPayload{
		Responder:  n.cfg.Identity,
		Transcript: transcript,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to submit answer")
		return pendingAnswer{}, false
	}
	return a, !fx.Ignored
}

// scoreAnswer calls the scorer off the actor, then adds the result to the
// local score and broadcasts it. Scoring outlives the caller's cancellation
// and is bounded by scoreTimeout instead.
func (n *Node) scoreAnswer(ctx context.Context, a pendingAnswer, transcript string) error {
	if n.scorer == nil {
		return fmt.Errorf("score answer: %w", ErrNoCollaborator)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scoreTimeout)
	defer cancel()

	q := a.question
	start := n.clock.Now()
	result, err := n.scorer.Score(ctx, q, transcript)
	n.recorder.RecordCollaborator("score", err == nil, n.clock.Since(start))
	if err != nil {
		return fmt.Errorf("failed to score answer: %w", err)
	}
	result.Normalize()

	return n.call(ctx, func() error {
		r := n.replica
		if r.Generation() != a.generation || r.QuestionID() != q.ID {
			log.Info().
				Str("question_id", q.ID).
				Msg("session moved on while scoring - discarding score")
			return nil
		}
		_, err := n.emit(events.TypeScoreReady, events.ScoreReadyPayload{
			Responder: n.cfg.Identity,
			Result:    &result,
		})
		if err != nil {
			return err
		}
		log.Info().
			Str("question_id", q.ID).
			Int("score", result.TotalScore).
			Int("max_score", result.TotalMaxScore).
			Msg("answer scored")
		return nil
	})
}

// NextRound advances to the next round and generates its question. Repeated
// calls while an advance is still in flight are ignored. Once the advance is
// applied the replica sits in WAITING, then QUESTION_DISPLAY, and the stage
// check rejects a second call; advancing only matters if the new question's
// display ends before this call has returned.
func (n *Node) NextRound(ctx context.Context) error {
	advanced, gameOver := false, false
	err := n.call(ctx, func() error {
		r := n.replica
		if n.advancing || !r.CanControl(n.cfg.Identity) {
			return nil
		}
		switch r.Stage {
		case session.StageBuzzing, session.StageAnswering, session.StageScoring:
		default:
			return nil
		}

		fx, err := n.emit(events.TypeRoundAdvanced, events.RoundAdvancedPayload{Round: r.Round + 1})
		if err != nil || fx.Ignored {
			return err
		}
		advanced = true
		gameOver = r.Stage == session.StageGameOver
		n.advancing = !gameOver
		return nil
	})
	if err != nil || !advanced {
		return err
	}
	if gameOver {
		log.Info().Str("identity", n.cfg.Identity).Msg("game over")
		return nil
	}

	defer n.post(func() { n.advancing = false })
	return n.GenerateQuestion(ctx)
}

// EndGame ends the session for every participant.
func (n *Node) EndGame(ctx context.Context) error {
	return n.call(ctx, func() error {
		r := n.replica
		if !r.CanControl(n.cfg.Identity) || r.Stage == session.StageGameOver {
			return nil
		}
		_, err := n.emit(events.TypeSessionEnded, events.SessionEndedPayload{Reason: "ended by coordinator"})
		return err
	})
}

// Reset returns every replica to WAITING with scores zeroed.
func (n *Node) Reset(ctx context.Context) error {
	return n.call(ctx, func() error {
		n.advancing = false
		_, err := n.emit(events.TypeSessionReset, events.SessionResetPayload{})
		return err
	})
}
