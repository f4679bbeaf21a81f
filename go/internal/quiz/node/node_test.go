package node

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/models"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/session"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/transport"
)

// MockQuestionSource is a mock for QuestionSource
type MockQuestionSource struct {
	mock.Mock
}

func (m *MockQuestionSource) GenerateQuestion(ctx context.Context, difficulty models.Difficulty, contentID string) (models.Question, error) {
	args := m.Called(ctx, difficulty, contentID)
	return args.Get(0).(models.Question), args.Error(1)
}

// MockScorer is a mock for Scorer
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, question models.Question, transcript string) (models.RubricResult, error) {
	args := m.Called(ctx, question, transcript)
	return args.Get(0).(models.RubricResult), args.Error(1)
}

// MockTranscriber is a mock for Transcriber
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	args := m.Called(ctx, audio, filename)
	return args.String(0), args.Error(1)
}

type countingRecorder struct {
	metrics.NoOp
	mu        sync.Mutex
	malformed int
}

func (r *countingRecorder) RecordReceived(eventType string, outcome metrics.Outcome) {
	if outcome == metrics.OutcomeMalformed {
		r.mu.Lock()
		r.malformed++
		r.mu.Unlock()
	}
}

func (r *countingRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.malformed
}

var testTiming = session.Timing{DisplaySeconds: 1, ResponseSeconds: 2}

type harness struct {
	t     *testing.T
	clock *clockwork.FakeClock
	hub   *transport.Hub
}

func newHarness(t *testing.T, opts ...transport.HubOption) *harness {
	return &harness{t: t, clock: clockwork.NewFakeClock(), hub: transport.NewHub(opts...)}
}

func (h *harness) start(identity string, opts ...Option) *Node {
	h.t.Helper()
	n, err := New(Config{
		Identity:   identity,
		Timing:     testTiming,
		RaceWindow: 200 * time.Millisecond,
	}, h.hub.Join(identity), append([]Option{WithClock(h.clock)}, opts...)...)
	require.NoError(h.t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx)
	}()
	h.t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-n.Ready():
	case <-done:
		h.t.Fatalf("node %s stopped before subscribing", identity)
	case <-time.After(2 * time.Second):
		h.t.Fatalf("node %s did not subscribe", identity)
	}
	return n
}

// peer is a raw endpoint that can impersonate any origin.
type peer struct {
	h  *harness
	ep *transport.Loopback

	mu  sync.Mutex
	got []events.Envelope
}

func (h *harness) peer() *peer {
	p := &peer{h: h, ep: h.hub.Join("peer")}
	_, err := p.ep.Subscribe(func(env events.Envelope) {
		p.mu.Lock()
		p.got = append(p.got, env)
		p.mu.Unlock()
	})
	require.NoError(h.t, err)
	return p
}

func (p *peer) send(typ events.Type, origin string, payload any) {
	p.h.t.Helper()
	env, err := events.New(typ, origin, p.h.clock.Now(), payload)
	require.NoError(p.h.t, err)
	require.NoError(p.h.t, p.ep.Publish(context.Background(), env))
}

func (p *peer) received(typ events.Type) []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Envelope
	for _, env := range p.got {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func waitFor(t *testing.T, n *Node, cond func(s session.Snapshot) bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := n.Snapshot(context.Background())
		return err == nil && cond(s)
	}, 2*time.Second, 5*time.Millisecond, msg)
}

func snapshot(t *testing.T, n *Node) session.Snapshot {
	t.Helper()
	s, err := n.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func stageIs(stage session.Stage) func(session.Snapshot) bool {
	return func(s session.Snapshot) bool { return s.Stage == stage }
}

func score(s session.Snapshot, identity string) int {
	for _, p := range s.Participants {
		if p.Identity == identity {
			return p.Score
		}
	}
	return -1
}

func question(id string) models.Question {
	return models.Question{ID: id, Content: "Explain " + id, Topic: "concurrency", Difficulty: models.DifficultyMedium}
}

func rubric(points ...int) models.RubricResult {
	r := models.RubricResult{}
	for i, p := range points {
		r.Dimensions = append(r.Dimensions, models.RubricDimension{
			Name:     models.DefaultRubric[i].Name,
			Score:    p,
			MaxScore: models.DefaultRubric[i].MaxScore,
		})
	}
	return r
}

// remoteQuestion drives n into BUZZING for a question sent by a remote
// coordinator.
func remoteQuestion(t *testing.T, h *harness, p *peer, n *Node, id string) {
	t.Helper()
	p.send(events.TypeSessionStarted, "coord", events.SessionStartedPayload{})
	p.send(events.TypeNewQuestion, "coord", events.NewQuestionPayload{Question: question(id)})
	waitFor(t, n, stageIs(session.StageQuestionDisplay), "question displayed")
	h.clock.Advance(time.Second)
	waitFor(t, n, stageIs(session.StageBuzzing), "responses open")
}

// localQuestion starts a one-player game coordinated by n and opens
// responses.
func localQuestion(t *testing.T, h *harness, n *Node, rounds int) {
	t.Helper()
	require.NoError(t, n.StartGame(context.Background(), rounds))
	waitFor(t, n, stageIs(session.StageQuestionDisplay), "question displayed")
	h.clock.Advance(time.Second)
	waitFor(t, n, stageIs(session.StageBuzzing), "responses open")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, transport.NewHub().Join("x"))
	assert.Error(t, err)
	_, err = New(Config{Identity: "x"}, nil)
	assert.Error(t, err)
}

func TestNode_AnnouncesItself(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	h.start("alice")

	require.Eventually(t, func() bool {
		return len(p.received(events.TypeParticipantJoined)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNode_RaceWinnerIsEarliestTimestamp(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	alice := h.start("alice")
	remoteQuestion(t, h, p, alice, "q1")

	base := h.clock.Now().UnixMilli()
	require.NoError(t, alice.Buzz(context.Background()))
	p.send(events.TypeResponseAttempt, "bob", events.ResponseAttemptPayload{QuestionID: "q1", Timestamp: base - 20})
	p.send(events.TypeResponseAttempt, "carol", events.ResponseAttemptPayload{QuestionID: "q1", Timestamp: base - 10})
	waitFor(t, alice, func(s session.Snapshot) bool { return len(s.Attempts) == 3 }, "attempts collected")

	h.clock.Advance(200 * time.Millisecond)

	waitFor(t, alice, func(s session.Snapshot) bool {
		return s.Stage == session.StageAnswering && s.CurrentResponder == "bob"
	}, "bob adopted as responder")

	require.Eventually(t, func() bool {
		winners := p.received(events.TypeResponseWinner)
		if len(winners) != 1 {
			return false
		}
		payload, err := events.Decode[events.ResponseWinnerPayload](winners[0])
		return err == nil && payload.Winner == "bob" && winners[0].Origin == "alice"
	}, time.Second, 5*time.Millisecond)
}

func TestNode_NoAttemptsNoWinner(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	alice := h.start("alice")
	remoteQuestion(t, h, p, alice, "q1")

	h.clock.Advance(5 * time.Second)

	s := snapshot(t, alice)
	assert.Equal(t, session.StageBuzzing, s.Stage)
	assert.Empty(t, s.CurrentResponder)
	assert.Never(t, func() bool {
		return len(p.received(events.TypeResponseWinner)) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNode_NonContenderOnlyAdopts(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	alice := h.start("alice")
	remoteQuestion(t, h, p, alice, "q1")

	base := h.clock.Now().UnixMilli()
	p.send(events.TypeResponseAttempt, "bob", events.ResponseAttemptPayload{QuestionID: "q1", Timestamp: base})
	p.send(events.TypeResponseAttempt, "carol", events.ResponseAttemptPayload{QuestionID: "q1", Timestamp: base + 5})
	waitFor(t, alice, func(s session.Snapshot) bool { return len(s.Attempts) == 2 }, "attempts collected")

	h.clock.Advance(200 * time.Millisecond)
	assert.Never(t, func() bool {
		return len(p.received(events.TypeResponseWinner)) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, session.StageBuzzing, snapshot(t, alice).Stage)

	p.send(events.TypeResponseWinner, "bob", events.ResponseWinnerPayload{QuestionID: "q1", Winner: "bob"})
	waitFor(t, alice, func(s session.Snapshot) bool { return s.CurrentResponder == "bob" }, "winner adopted")
}

func TestNode_FullGameAcrossPeers(t *testing.T) {
	h := newHarness(t, transport.WithDuplicates(1))
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q2"), nil).Once()
	scorer := &MockScorer{}
	scorer.On("Score", mock.Anything, question("q1"), "use channels").Return(rubric(20, 20, 15, 10), nil).Once()

	alice := h.start("alice", WithQuestionSource(questions))
	bob := h.start("bob", WithScorer(scorer))
	ctx := context.Background()

	require.NoError(t, alice.StartGame(ctx, 2))
	for _, n := range []*Node{alice, bob} {
		waitFor(t, n, func(s session.Snapshot) bool {
			return s.Stage == session.StageQuestionDisplay && s.CurrentQuestion != nil && s.CurrentQuestion.ID == "q1"
		}, n.Identity()+" shows q1")
	}
	assert.True(t, snapshot(t, alice).IsCoordinator)
	assert.False(t, snapshot(t, bob).IsCoordinator)
	assert.Equal(t, 2, snapshot(t, bob).TotalRounds)

	h.clock.Advance(time.Second)
	waitFor(t, alice, stageIs(session.StageBuzzing), "alice buzzing")
	waitFor(t, bob, stageIs(session.StageBuzzing), "bob buzzing")

	require.NoError(t, bob.Buzz(ctx))
	waitFor(t, alice, func(s session.Snapshot) bool { return len(s.Attempts) == 1 }, "alice saw attempt")
	h.clock.Advance(200 * time.Millisecond)

	for _, n := range []*Node{alice, bob} {
		waitFor(t, n, func(s session.Snapshot) bool {
			return s.Stage == session.StageAnswering && s.CurrentResponder == "bob"
		}, n.Identity()+" sees bob answering")
	}

	require.NoError(t, bob.SubmitAnswer(ctx, "use channels"))
	for _, n := range []*Node{alice, bob} {
		waitFor(t, n, func(s session.Snapshot) bool {
			return s.Stage == session.StageScoring && score(s, "bob") == 65
		}, n.Identity()+" sees bob's score")
	}
	assert.Never(t, func() bool {
		return score(snapshot(t, alice), "bob") != 65
	}, 100*time.Millisecond, 10*time.Millisecond, "duplicated score must apply once")
	require.NotNil(t, snapshot(t, alice).LastAnswer)
	assert.Equal(t, "use channels", snapshot(t, alice).LastAnswer.Transcript)

	require.NoError(t, alice.NextRound(ctx))
	for _, n := range []*Node{alice, bob} {
		waitFor(t, n, func(s session.Snapshot) bool {
			return s.Round == 2 && s.CurrentQuestion != nil && s.CurrentQuestion.ID == "q2"
		}, n.Identity()+" in round 2")
	}

	h.clock.Advance(time.Second)
	waitFor(t, alice, stageIs(session.StageBuzzing), "alice buzzing in round 2")
	require.NoError(t, alice.NextRound(ctx))
	for _, n := range []*Node{alice, bob} {
		waitFor(t, n, func(s session.Snapshot) bool {
			return s.Stage == session.StageGameOver && s.Round == 2
		}, n.Identity()+" game over")
	}

	questions.AssertExpectations(t)
	scorer.AssertExpectations(t)
}

func TestNode_DoubleNextRoundAdvancesOnce(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	release := make(chan struct{})
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").
		Run(func(mock.Arguments) { <-release }).
		Return(question("q2"), nil).Once()

	alice := h.start("alice", WithQuestionSource(questions))
	localQuestion(t, h, alice, 5)

	errCh := make(chan error, 1)
	go func() { errCh <- alice.NextRound(context.Background()) }()
	waitFor(t, alice, func(s session.Snapshot) bool { return s.Round == 2 }, "round advanced")

	require.NoError(t, alice.NextRound(context.Background()))
	assert.Equal(t, 2, snapshot(t, alice).Round)

	close(release)
	require.NoError(t, <-errCh)
	waitFor(t, alice, func(s session.Snapshot) bool {
		return s.CurrentQuestion != nil && s.CurrentQuestion.ID == "q2"
	}, "second question installed")

	assert.Equal(t, 2, snapshot(t, alice).Round)
	require.Eventually(t, func() bool {
		return len(p.received(events.TypeRoundAdvanced)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return len(p.received(events.TypeRoundAdvanced)) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	questions.AssertNumberOfCalls(t, "GenerateQuestion", 2)
}

func TestNode_AutoSubmitsWhenResponseWindowExpires(t *testing.T) {
	h := newHarness(t)
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	scorer := &MockScorer{}
	scorer.On("Score", mock.Anything, question("q1"), "").Return(models.ZeroRubric("no answer"), nil).Once()

	alice := h.start("alice", WithQuestionSource(questions), WithScorer(scorer))
	localQuestion(t, h, alice, 1)

	require.NoError(t, alice.Buzz(context.Background()))
	waitFor(t, alice, func(s session.Snapshot) bool { return len(s.Attempts) == 1 }, "attempt recorded")
	h.clock.Advance(200 * time.Millisecond)
	waitFor(t, alice, func(s session.Snapshot) bool {
		return s.Stage == session.StageAnswering && s.Countdown == testTiming.ResponseSeconds
	}, "alice answering")

	h.clock.Advance(time.Second)
	waitFor(t, alice, func(s session.Snapshot) bool { return s.Countdown == 1 }, "countdown ticking")
	h.clock.Advance(time.Second)

	waitFor(t, alice, func(s session.Snapshot) bool {
		return s.Stage == session.StageScoring && s.LastScore != nil
	}, "empty answer scored")
	s := snapshot(t, alice)
	assert.Zero(t, s.LastScore.TotalScore)
	assert.Zero(t, score(s, "alice"))
	require.NotNil(t, s.LastAnswer)
	assert.Empty(t, s.LastAnswer.Transcript)
	scorer.AssertExpectations(t)
}

func TestNode_ScoringFailureStaysInScoring(t *testing.T) {
	h := newHarness(t)
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	scorer := &MockScorer{}
	scoreErr := errors.New("model unavailable")
	scorer.On("Score", mock.Anything, question("q1"), "goroutines").Return(models.RubricResult{}, scoreErr).Once()

	alice := h.start("alice", WithQuestionSource(questions), WithScorer(scorer))
	localQuestion(t, h, alice, 1)
	require.NoError(t, alice.Buzz(context.Background()))
	h.clock.Advance(200 * time.Millisecond)
	waitFor(t, alice, stageIs(session.StageAnswering), "alice answering")

	err := alice.SubmitAnswer(context.Background(), "goroutines")
	require.ErrorIs(t, err, scoreErr)

	s := snapshot(t, alice)
	assert.Equal(t, session.StageScoring, s.Stage)
	assert.Nil(t, s.LastScore)
	assert.Zero(t, score(s, "alice"))
}

func TestNode_ScoreFromBeforeResetDiscarded(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	release := make(chan struct{})
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q2"), nil).Once()
	scorer := &MockScorer{}
	scorer.On("Score", mock.Anything, question("q1"), "channels").
		Run(func(mock.Arguments) { <-release }).
		Return(rubric(30, 25, 25, 20), nil).Once()

	alice := h.start("alice", WithQuestionSource(questions), WithScorer(scorer))
	localQuestion(t, h, alice, 3)
	require.NoError(t, alice.Buzz(context.Background()))
	h.clock.Advance(200 * time.Millisecond)
	waitFor(t, alice, stageIs(session.StageAnswering), "alice answering")

	errCh := make(chan error, 1)
	go func() { errCh <- alice.SubmitAnswer(context.Background(), "channels") }()
	waitFor(t, alice, stageIs(session.StageScoring), "answer submitted")

	require.NoError(t, alice.Reset(context.Background()))
	require.NoError(t, alice.StartGame(context.Background(), 3))
	waitFor(t, alice, stageIs(session.StageQuestionDisplay), "new game started")

	close(release)
	require.NoError(t, <-errCh)

	s := snapshot(t, alice)
	assert.Equal(t, session.StageQuestionDisplay, s.Stage)
	assert.Equal(t, 1, s.Round)
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "q2", s.CurrentQuestion.ID)
	assert.Zero(t, score(s, "alice"))
	assert.Nil(t, s.LastScore)
	assert.Never(t, func() bool {
		return len(p.received(events.TypeScoreReady)) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	scorer.AssertExpectations(t)
}

func TestNode_ScoringOutlivesCallerCancellation(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	var scoreCtxErr error
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	scorer := &MockScorer{}
	scorer.On("Score", mock.Anything, question("q1"), "mutexes").
		Run(func(args mock.Arguments) {
			<-release
			scoreCtxErr = args.Get(0).(context.Context).Err()
		}).
		Return(rubric(30, 25, 25, 20), nil).Once()

	alice := h.start("alice", WithQuestionSource(questions), WithScorer(scorer))
	localQuestion(t, h, alice, 1)
	require.NoError(t, alice.Buzz(context.Background()))
	h.clock.Advance(200 * time.Millisecond)
	waitFor(t, alice, stageIs(session.StageAnswering), "alice answering")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- alice.SubmitAnswer(ctx, "mutexes") }()
	waitFor(t, alice, stageIs(session.StageScoring), "answer submitted")

	cancel()
	close(release)
	require.NoError(t, <-errCh)
	assert.NoError(t, scoreCtxErr)

	s := snapshot(t, alice)
	assert.Equal(t, 100, score(s, "alice"))
	require.NotNil(t, s.LastScore)
	assert.Equal(t, 100, s.LastScore.TotalScore)
}

func TestNode_SubmitAudio(t *testing.T) {
	h := newHarness(t)
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	transcriber := &MockTranscriber{}
	transcriber.On("Transcribe", mock.Anything, []byte("RIFF"), "answer.webm").Return("select statements", nil).Once()
	scorer := &MockScorer{}
	scorer.On("Score", mock.Anything, question("q1"), "select statements").Return(rubric(30, 25, 25, 20), nil).Once()

	alice := h.start("alice", WithQuestionSource(questions), WithScorer(scorer), WithTranscriber(transcriber))
	localQuestion(t, h, alice, 1)

	// Not the responder yet: audio is ignored.
	require.NoError(t, alice.SubmitAudio(context.Background(), []byte("RIFF"), "answer.webm"))
	transcriber.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, alice.Buzz(context.Background()))
	h.clock.Advance(200 * time.Millisecond)
	waitFor(t, alice, stageIs(session.StageAnswering), "alice answering")

	require.NoError(t, alice.SubmitAudio(context.Background(), []byte("RIFF"), "answer.webm"))
	assert.Equal(t, 100, score(snapshot(t, alice), "alice"))
	transcriber.AssertExpectations(t)
	scorer.AssertExpectations(t)
}

func TestNode_NonCoordinatorActionsIgnored(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	bob := h.start("bob", WithQuestionSource(&MockQuestionSource{}))
	remoteQuestion(t, h, p, bob, "q1")
	ctx := context.Background()

	require.NoError(t, bob.NextRound(ctx))
	require.NoError(t, bob.StartGame(ctx, 3))
	require.NoError(t, bob.EndGame(ctx))
	require.NoError(t, bob.SetContent(ctx, "c1"))
	require.NoError(t, bob.GenerateQuestion(ctx))

	s := snapshot(t, bob)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, "coord", s.Coordinator)
	assert.Equal(t, session.StageBuzzing, s.Stage)
	assert.Empty(t, s.ActiveContentID)
}

func TestNode_ResetBroadcasts(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "").Return(question("q1"), nil).Once()
	alice := h.start("alice", WithQuestionSource(questions))
	localQuestion(t, h, alice, 3)

	require.NoError(t, alice.Reset(context.Background()))

	s := snapshot(t, alice)
	assert.Equal(t, session.StageWaiting, s.Stage)
	assert.Zero(t, s.Round)
	assert.Empty(t, s.Coordinator)
	assert.Nil(t, s.CurrentQuestion)
	require.Eventually(t, func() bool {
		return len(p.received(events.TypeSessionReset)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestNode_ContentBoundQuestions(t *testing.T) {
	h := newHarness(t)
	questions := &MockQuestionSource{}
	questions.On("GenerateQuestion", mock.Anything, models.DifficultyMedium, "c1").Return(question("q1"), nil).Once()
	alice := h.start("alice", WithQuestionSource(questions))

	require.NoError(t, alice.SetContent(context.Background(), "c1"))
	require.NoError(t, alice.StartGame(context.Background(), 1))

	s := snapshot(t, alice)
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "c1", s.CurrentQuestion.ContentID)
	assert.Equal(t, "c1", s.ActiveContentID)
	questions.AssertExpectations(t)
}

func TestNode_MalformedEnvelopeDropped(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	rec := &countingRecorder{}
	alice := h.start("alice", WithRecorder(rec))
	remoteQuestion(t, h, p, alice, "q1")
	before := snapshot(t, alice)

	require.NoError(t, p.ep.Publish(context.Background(), events.Envelope{
		Type:      events.TypeScoreReady,
		Origin:    "mallory",
		EmittedAt: 1,
		Payload:   []byte(`{"responder":"mallory"}`),
	}))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, before, snapshot(t, alice))
}

func TestNode_SubscribeReceivesSnapshots(t *testing.T) {
	h := newHarness(t)
	p := h.peer()
	alice := h.start("alice")
	updates, cancel := alice.Subscribe()
	defer cancel()

	p.send(events.TypeSessionStarted, "coord", events.SessionStartedPayload{})

	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			return s.Coordinator == "coord"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestNode_ActionsAfterStop(t *testing.T) {
	n, err := New(Config{Identity: "alice"}, transport.NewHub().Join("alice"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx)
	}()
	cancel()
	<-done

	_, err = n.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
