package node

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/race"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/session"
)

type phase int

const (
	phaseDisplay phase = iota
	phaseResponse
)

func (p phase) String() string {
	if p == phaseDisplay {
		return "display"
	}
	return "response"
}

// startCountdown replaces any running countdown with a chain of one-second
// ticks for the installed question.
func (n *Node) startCountdown(ph phase) {
	n.stopCountdown()
	gen := n.countdownGen
	n.scheduleTick(gen, ph, n.replica.QuestionID())

	log.Debug().
		Str("phase", ph.String()).
		Int("seconds", n.replica.Countdown).
		Msg("countdown started")
}

func (n *Node) scheduleTick(gen uint64, ph phase, questionID string) {
	n.countdown = n.clock.AfterFunc(time.Second, func() {
		n.post(func() { n.tick(gen, ph, questionID) })
	})
}

func (n *Node) tick(gen uint64, ph phase, questionID string) {
	// A tick from a cancelled chain may still be in the inbox.
	if gen != n.countdownGen {
		return
	}
	if n.engine.Tick(n.replica) > 0 {
		n.scheduleTick(gen, ph, questionID)
		return
	}
	n.countdown = nil

	switch ph {
	case phaseDisplay:
		if n.engine.EndDisplay(n.replica, questionID) {
			log.Debug().Str("question_id", questionID).Msg("responses open")
		}
	case phaseResponse:
		n.responseWindowExpired(questionID)
	}
}

// stopCountdown cancels the running countdown, if any. Ticks already queued
// are discarded by the generation check.
func (n *Node) stopCountdown() {
	if n.countdown != nil {
		n.countdown.Stop()
		n.countdown = nil
	}
	n.countdownGen++
}

// openRaceWindow starts the fixed collection window for questionID. The
// window is never restarted or cancelled; closeRaceWindow re-checks the
// replica when it fires.
func (n *Node) openRaceWindow(questionID string) {
	n.clock.AfterFunc(n.cfg.RaceWindow, func() {
		n.post(func() { n.closeRaceWindow(questionID) })
	})
	log.Debug().
		Str("question_id", questionID).
		Dur("window", n.cfg.RaceWindow).
		Msg("race window opened")
}

func (n *Node) closeRaceWindow(questionID string) {
	r := n.replica
	contenders := len(r.Attempts)

	// Only contenders declare; everyone else adopts the announced winner.
	if r.QuestionID() != questionID || r.Stage != session.StageBuzzing || !race.Contains(r.Attempts, n.cfg.Identity) {
		n.recorder.RecordRace(contenders, false)
		return
	}
	winner, ok := race.Resolve(r.Attempts)
	if !ok {
		n.recorder.RecordRace(0, false)
		return
	}

	if _, err := n.emit(events.TypeResponseWinner, events.ResponseWinnerPayload{
		QuestionID: questionID,
		Winner:     winner.Identity,
	}); err != nil {
		log.Error().Err(err).Msg("failed to declare race winner")
		n.recorder.RecordRace(contenders, false)
		return
	}
	n.recorder.RecordRace(contenders, true)

	log.Info().
		Str("question_id", questionID).
		Str("winner", winner.Identity).
		Int("contenders", contenders).
		Msg("race resolved")
}

// responseWindowExpired submits an empty answer when the local participant
// ran out of time to respond.
func (n *Node) responseWindowExpired(questionID string) {
	r := n.replica
	if r.Stage != session.StageAnswering || r.CurrentResponder != n.cfg.Identity || r.QuestionID() != questionID {
		return
	}
	log.Info().Str("question_id", questionID).Msg("response window expired - submitting empty answer")

	a, ok := n.beginAnswer("")
	if !ok {
		return
	}
	ctx := n.runCtx
	go func() {
		if err := n.scoreAnswer(ctx, a, ""); err != nil {
			log.Error().Err(err).Str("question_id", questionID).Msg("failed to score expired answer")
		}
	}()
}
