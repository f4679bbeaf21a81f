// Package node runs one participant of a quiz session. A single actor
// goroutine owns the session replica; transport deliveries, timer callbacks
// and collaborator continuations are all posted onto its inbox.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/models"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/events"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/race"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/session"
	"github.com/mcdev12/buzzquiz/go/internal/quiz/transport"
)

var (
	// ErrStopped is returned by actions issued after the node has stopped.
	ErrStopped = errors.New("node stopped")
	// ErrNoCollaborator is returned when an action needs a collaborator the
	// node was built without.
	ErrNoCollaborator = errors.New("collaborator not configured")
)

const (
	inboxBufferSize  = 256
	outboxBufferSize = 256
	publishTimeout   = 5 * time.Second
	scoreTimeout     = 2 * time.Minute
)

// Config holds the per-participant settings of a node.
type Config struct {
	Identity    string
	Timing      session.Timing
	RaceWindow  time.Duration
	TotalRounds int
	Difficulty  models.Difficulty
}

// Option configures optional node dependencies.
type Option func(*Node)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(n *Node) { n.clock = c }
}

// WithQuestionSource sets the question generator.
func WithQuestionSource(q QuestionSource) Option {
	return func(n *Node) { n.questions = q }
}

// WithScorer sets the answer scorer.
func WithScorer(s Scorer) Option {
	return func(n *Node) { n.scorer = s }
}

// WithTranscriber sets the speech-to-text collaborator.
func WithTranscriber(t Transcriber) Option {
	return func(n *Node) { n.transcriber = t }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(n *Node) { n.recorder = r }
}

// Node is one participant's view of a quiz session.
type Node struct {
	cfg         Config
	clock       clockwork.Clock
	transport   transport.Transport
	questions   QuestionSource
	scorer      Scorer
	transcriber Transcriber
	recorder    metrics.Recorder

	inbox  chan func()
	outbox chan events.Envelope
	ready  chan struct{}
	done   chan struct{}
	runCtx context.Context

	// Owned by the actor goroutine.
	engine       *session.Engine
	replica      *session.Replica
	countdown    clockwork.Timer
	countdownGen uint64
	advancing    bool

	subsMu      sync.Mutex
	subscribers map[int]chan session.Snapshot
	nextSub     int
}

// New creates a node for cfg.Identity that broadcasts over t.
func New(cfg Config, t transport.Transport, opts ...Option) (*Node, error) {
	if cfg.Identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	if t == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.RaceWindow <= 0 {
		cfg.RaceWindow = race.DefaultWindow
	}
	if cfg.TotalRounds <= 0 {
		cfg.TotalRounds = session.DefaultTotalRounds
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = models.DifficultyMedium
	}

	n := &Node{
		cfg:         cfg,
		clock:       clockwork.NewRealClock(),
		transport:   t,
		recorder:    metrics.NoOp{},
		inbox:       make(chan func(), inboxBufferSize),
		outbox:      make(chan events.Envelope, outboxBufferSize),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		engine:      session.NewEngine(cfg.Identity, cfg.Timing),
		replica:     session.NewReplica(cfg.Identity),
		subscribers: make(map[int]chan session.Snapshot),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Identity returns the local participant identity.
func (n *Node) Identity() string { return n.cfg.Identity }

// Ready is closed once Run has subscribed to the transport. Envelopes
// published before that are not seen by the node.
func (n *Node) Ready() <-chan struct{} { return n.ready }

// Run subscribes to the transport, announces the participant and processes
// the inbox until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	n.runCtx = ctx

	unsubscribe, err := n.transport.Subscribe(func(env events.Envelope) {
		n.post(func() { n.receive(env) })
	})
	if err != nil {
		close(n.done)
		return fmt.Errorf("subscribe to transport: %w", err)
	}
	defer unsubscribe()
	close(n.ready)

	var wg sync.WaitGroup
	wg.Add(1)
	go n.sendLoop(ctx, &wg)

	log.Info().
		Str("identity", n.cfg.Identity).
		Dur("race_window", n.cfg.RaceWindow).
		Msg("quiz node started")

	n.announce()
	n.publishSnapshot()

	for {
		select {
		case <-ctx.Done():
			n.stopCountdown()
			close(n.done)
			wg.Wait()
			n.closeSubscribers()
			log.Info().Str("identity", n.cfg.Identity).Msg("quiz node stopped")
			return nil
		case fn := <-n.inbox:
			fn()
			n.publishSnapshot()
		}
	}
}

// post hands fn to the actor. It gives up once the node has stopped.
func (n *Node) post(fn func()) {
	select {
	case n.inbox <- fn:
	case <-n.done:
	}
}

// call runs fn on the actor and waits for its result.
func (n *Node) call(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case n.inbox <- func() { errCh <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-n.done:
		return ErrStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-n.done:
		return ErrStopped
	}
}

func (n *Node) announce() {
	if _, err := n.emit(events.TypeParticipantJoined, events.ParticipantJoinedPayload{Identity: n.cfg.Identity}); err != nil {
		log.Error().Err(err).Msg("failed to announce participant")
	}
}

// receive applies an envelope delivered by the transport.
func (n *Node) receive(env events.Envelope) {
	fx, err := n.engine.Apply(n.replica, env)
	if err != nil {
		log.Warn().
			Err(err).
			Str("event_type", string(env.Type)).
			Str("origin", env.Origin).
			Msg("dropping malformed envelope")
		n.recorder.RecordReceived(string(env.Type), metrics.OutcomeMalformed)
		return
	}

	switch {
	case fx.Duplicate:
		n.recorder.RecordReceived(string(env.Type), metrics.OutcomeDuplicate)
	case fx.Ignored:
		n.recorder.RecordReceived(string(env.Type), metrics.OutcomeIgnored)
	default:
		n.recorder.RecordReceived(string(env.Type), metrics.OutcomeApplied)
		log.Debug().
			Str("event_type", string(env.Type)).
			Str("origin", env.Origin).
			Str("stage", string(n.replica.Stage)).
			Msg("applied envelope")
	}
	n.handleEffects(fx)
}

// emit applies a locally produced envelope and queues it for broadcast.
// Envelopes the engine ignores are not broadcast.
func (n *Node) emit(t events.Type, payload any) (session.Effects, error) {
	env, err := events.New(t, n.cfg.Identity, n.clock.Now(), payload)
	if err != nil {
		return session.Effects{}, err
	}
	fx, err := n.engine.ApplyLocal(n.replica, env)
	if err != nil {
		return session.Effects{}, fmt.Errorf("failed to apply %s: %w", t, err)
	}
	n.handleEffects(fx)
	if fx.Ignored {
		return fx, nil
	}

	select {
	case n.outbox <- env:
	default:
		log.Warn().Str("event_type", string(t)).Msg("outbox full - dropping envelope")
		n.recorder.RecordEmitted(string(t), false, 0)
	}
	return fx, nil
}

// sendLoop drains the outbox in order. Failures are logged, never retried.
func (n *Node) sendLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-n.outbox:
			start := time.Now()
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := n.transport.Publish(pubCtx, env)
			cancel()
			n.recorder.RecordEmitted(string(env.Type), err == nil, time.Since(start))
			if err != nil {
				log.Error().
					Err(err).
					Str("event_type", string(env.Type)).
					Msg("failed to publish envelope")
			}
		}
	}
}

func (n *Node) handleEffects(fx session.Effects) {
	if fx.StopCountdown {
		n.stopCountdown()
	}
	if fx.StartCountdown {
		n.startCountdown(phaseDisplay)
	}
	if fx.StartResponseWindow {
		n.startCountdown(phaseResponse)
	}
	if fx.OpenRaceWindow {
		n.openRaceWindow(n.replica.QuestionID())
	}
}

// Subscribe returns a channel that receives the latest replica snapshot
// after every change. Slow readers only see the most recent snapshot.
func (n *Node) Subscribe() (<-chan session.Snapshot, func()) {
	ch := make(chan session.Snapshot, 1)
	n.subsMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subscribers[id] = ch
	n.subsMu.Unlock()

	return ch, func() {
		n.subsMu.Lock()
		if _, ok := n.subscribers[id]; ok {
			delete(n.subscribers, id)
			close(ch)
		}
		n.subsMu.Unlock()
	}
}

func (n *Node) publishSnapshot() {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	if len(n.subscribers) == 0 {
		return
	}
	snap := n.replica.Snapshot()
	for _, ch := range n.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (n *Node) closeSubscribers() {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for id, ch := range n.subscribers {
		close(ch)
		delete(n.subscribers, id)
	}
}

// Snapshot returns a copy of the current replica.
func (n *Node) Snapshot(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	err := n.call(ctx, func() error {
		snap = n.replica.Snapshot()
		return nil
	})
	return snap, err
}
