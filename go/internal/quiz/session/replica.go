package session

import (
	"github.com/mcdev12/buzzquiz/go/internal/models"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/race"
)

// Stage is the position of a session in its round state machine.
type Stage string

const (
	StageWaiting         Stage = "WAITING"
	StageQuestionDisplay Stage = "QUESTION_DISPLAY"
	StageBuzzing         Stage = "BUZZING"
	StageAnswering       Stage = "ANSWERING"
	StageScoring         Stage = "SCORING"
	StageGameOver        Stage = "GAME_OVER"
)

const (
	DefaultTotalRounds = 5
	MaxTotalRounds     = 20
)

// Participant is one identity known to the replica.
type Participant struct {
	Identity             string `json:"identity"`
	Score                int    `json:"score"`
	IsResponding         bool   `json:"is_responding"`
	HasAnsweredThisRound bool   `json:"has_answered_this_round"`
}

// Answer is the transcript submitted by the current responder.
type Answer struct {
	Responder  string `json:"responder"`
	Transcript string `json:"transcript"`
}

// Replica is one participant's local view of the shared session. It is owned
// by a single goroutine and never locked.
type Replica struct {
	Identity string

	Stage            Stage
	Round            int
	TotalRounds      int
	Coordinator      string
	Active           bool
	Countdown        int
	CurrentQuestion  *models.Question
	CurrentResponder string
	Attempts         []race.Attempt
	LastAnswer       *Answer
	LastScore        *models.RubricResult
	ActiveContentID  string

	participants map[string]*Participant
	order        []string
	generation   uint64
}

// NewReplica creates the initial WAITING view for identity.
func NewReplica(identity string) *Replica {
	r := &Replica{
		Identity:     identity,
		Stage:        StageWaiting,
		TotalRounds:  DefaultTotalRounds,
		participants: make(map[string]*Participant),
	}
	r.EnsureParticipant(identity)
	return r
}

// EnsureParticipant returns the participant for identity, registering it on
// first sight.
func (r *Replica) EnsureParticipant(identity string) *Participant {
	if p, ok := r.participants[identity]; ok {
		return p
	}
	p := &Participant{Identity: identity}
	r.participants[identity] = p
	r.order = append(r.order, identity)
	return p
}

// Participant returns a copy of the participant for identity.
func (r *Replica) Participant(identity string) (Participant, bool) {
	p, ok := r.participants[identity]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Participants returns copies of all known participants in the order they
// were first observed.
func (r *Replica) Participants() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

// CanControl reports whether identity may advance or configure the session:
// either no coordinator has been claimed yet or identity is the coordinator.
func (r *Replica) CanControl(identity string) bool {
	return r.Coordinator == "" || r.Coordinator == identity
}

// QuestionID returns the installed question's ID or "".
func (r *Replica) QuestionID() string {
	if r.CurrentQuestion == nil {
		return ""
	}
	return r.CurrentQuestion.ID
}

func (r *Replica) clearRound() {
	r.CurrentQuestion = nil
	r.CurrentResponder = ""
	r.Attempts = nil
	r.LastAnswer = nil
	r.LastScore = nil
	r.Countdown = 0
	for _, p := range r.participants {
		p.IsResponding = false
		p.HasAnsweredThisRound = false
	}
}

// reset returns the replica to its initial view while keeping every known
// participant identity.
func (r *Replica) reset() {
	r.generation++
	r.Stage = StageWaiting
	r.Round = 0
	r.TotalRounds = DefaultTotalRounds
	r.Coordinator = ""
	r.Active = false
	r.clearRound()
	for _, p := range r.participants {
		p.Score = 0
	}
}

// Generation counts the resets applied to the replica. Work started before a
// reset carries a stale generation.
func (r *Replica) Generation() uint64 { return r.generation }

// Snapshot is an immutable copy of a replica suitable for rendering.
type Snapshot struct {
	Identity         string               `json:"identity"`
	Stage            Stage                `json:"stage"`
	Round            int                  `json:"round"`
	TotalRounds      int                  `json:"total_rounds"`
	Coordinator      string               `json:"coordinator,omitempty"`
	IsCoordinator    bool                 `json:"is_coordinator"`
	Active           bool                 `json:"active"`
	Countdown        int                  `json:"countdown"`
	CurrentQuestion  *models.Question     `json:"current_question,omitempty"`
	CurrentResponder string               `json:"current_responder,omitempty"`
	Attempts         []race.Attempt       `json:"attempts"`
	LastAnswer       *Answer              `json:"last_answer,omitempty"`
	LastScore        *models.RubricResult `json:"last_score,omitempty"`
	ActiveContentID  string               `json:"active_content_id,omitempty"`
	Participants     []Participant        `json:"participants"`
}

// Snapshot copies the replica.
func (r *Replica) Snapshot() Snapshot {
	s := Snapshot{
		Identity:         r.Identity,
		Stage:            r.Stage,
		Round:            r.Round,
		TotalRounds:      r.TotalRounds,
		Coordinator:      r.Coordinator,
		IsCoordinator:    r.CanControl(r.Identity),
		Active:           r.Active,
		Countdown:        r.Countdown,
		CurrentResponder: r.CurrentResponder,
		Attempts:         append([]race.Attempt(nil), r.Attempts...),
		ActiveContentID:  r.ActiveContentID,
		Participants:     r.Participants(),
	}
	if r.CurrentQuestion != nil {
		q := *r.CurrentQuestion
		s.CurrentQuestion = &q
	}
	if r.LastAnswer != nil {
		a := *r.LastAnswer
		s.LastAnswer = &a
	}
	if r.LastScore != nil {
		score := *r.LastScore
		score.Dimensions = append([]models.RubricDimension(nil), r.LastScore.Dimensions...)
		s.LastScore = &score
	}
	return s
}
