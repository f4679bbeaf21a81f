package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/clients"
	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/models"
)

const (
	DefaultQuestionCount = 15
	MinQuestionCount     = 5
	MaxQuestionCount     = 30

	minQuestionWords = 10
	maxQuestionWords = 100
)

var (
	// ErrNoQualityQuestions is returned when every generated question was
	// filtered out.
	ErrNoQualityQuestions = errors.New("no quality questions generated")
	ErrNoGenerator        = errors.New("question generator not configured")
)

var yesNoOpening = regexp.MustCompile(`^(is|are|do|does|did|can|could|will|would|should)\s`)

// Fetcher retrieves a remote document.
type Fetcher interface {
	Get(ctx context.Context, url string) (*clients.Response, error)
}

// Generator writes questions with a language model.
type Generator interface {
	GenerateQuestions(ctx context.Context, text string, count int) ([]models.DraftQuestion, error)
	GenerateQuestion(ctx context.Context, difficulty models.Difficulty) (models.Question, error)
}

// IngestRequest is raw text or a URL submitted by a user.
type IngestRequest struct {
	Kind    models.ContentKind
	Content string
	Title   string
}

// IngestResult describes stored content.
type IngestResult struct {
	ContentID   string
	CleanedText string
	WordCount   int
	Status      models.ContentStatus
}

// Service ingests content and hands out questions from its pools.
type Service struct {
	store     Store
	fetcher   Fetcher
	generator Generator
	clock     clockwork.Clock
}

type Option func(*Service)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func NewService(store Store, fetcher Fetcher, generator Generator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		fetcher:   fetcher,
		generator: generator,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest normalizes text or the main text of a fetched page and stores it.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	res, err := s.ingest(ctx, req)
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.ContentIngested.WithLabelValues(string(req.Kind), status).Inc()
	return res, err
}

func (s *Service) ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if req.Kind == models.ContentKindURL {
		req.Content = strings.TrimSpace(req.Content)
	}
	if strings.TrimSpace(req.Content) == "" {
		return IngestResult{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	var text string
	switch req.Kind {
	case models.ContentKindText:
		text = Normalize(req.Content)
	case models.ContentKindURL:
		extracted, err := s.fetchPage(ctx, req.Content)
		if err != nil {
			return IngestResult{}, err
		}
		text = extracted
	default:
		return IngestResult{}, fmt.Errorf("%w: kind must be %q or %q", ErrInvalidInput, models.ContentKindText, models.ContentKindURL)
	}

	words := CountWords(text)
	if words < MinWords {
		return IngestResult{}, fmt.Errorf("%w: %d words, minimum %d", ErrContentTooShort, words, MinWords)
	}
	text, words = Truncate(text, MaxWords)

	now := s.clock.Now()
	title := req.Title
	if title == "" {
		if req.Kind == models.ContentKindURL {
			title = req.Content
		} else {
			title = fmt.Sprintf("Text Content (%s)", now.Format("Jan 2, 2006"))
		}
	}

	c := models.Content{
		ID:                 ulid.Make().String(),
		Kind:               req.Kind,
		Title:              title,
		RawContent:         req.Content,
		CleanedText:        text,
		UploadedAt:         now,
		Status:             models.ContentStatusReady,
		WordCount:          words,
		EstimatedQuestions: words / WordsPerQuestion,
	}
	if err := s.store.PutContent(ctx, c); err != nil {
		return IngestResult{}, fmt.Errorf("failed to store content: %w", err)
	}

	log.Info().
		Str("content_id", c.ID).
		Str("kind", string(c.Kind)).
		Int("words", words).
		Msg("Content ingested")

	return IngestResult{
		ContentID:   c.ID,
		CleanedText: text,
		WordCount:   words,
		Status:      c.Status,
	}, nil
}

func (s *Service) fetchPage(ctx context.Context, url string) (string, error) {
	if s.fetcher == nil {
		return "", fmt.Errorf("%w: url ingestion is not configured", ErrInvalidInput)
	}
	resp, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	if !strings.Contains(resp.ContentType, "text/html") {
		return "", ErrNotHTML
	}
	text, err := ExtractText(bytes.NewReader(resp.Body))
	if err != nil {
		return "", err
	}
	return text, nil
}

// Analyze generates a question pool for stored content, replacing any
// existing pool. A count of zero asks for DefaultQuestionCount.
func (s *Service) Analyze(ctx context.Context, contentID string, count int) ([]models.PoolQuestion, error) {
	if count == 0 {
		count = DefaultQuestionCount
	}
	if count < MinQuestionCount || count > MaxQuestionCount {
		return nil, fmt.Errorf("%w: question count must be between %d and %d", ErrInvalidInput, MinQuestionCount, MaxQuestionCount)
	}

	if s.generator == nil {
		return nil, ErrNoGenerator
	}

	c, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	drafts, err := s.generator.GenerateQuestions(ctx, c.CleanedText, count)
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	drafts = FilterDrafts(drafts)
	if len(drafts) == 0 {
		return nil, ErrNoQualityQuestions
	}

	pool := make([]models.PoolQuestion, len(drafts))
	for i, d := range drafts {
		difficulty := d.Difficulty
		if difficulty == "" {
			difficulty = models.DifficultyMedium
		}
		pool[i] = models.PoolQuestion{
			ID:         ulid.Make().String(),
			ContentID:  contentID,
			Question:   d.Question,
			Context:    d.Context,
			Difficulty: difficulty,
		}
	}

	if err := s.store.PutQuestions(ctx, contentID, pool); err != nil {
		return nil, fmt.Errorf("failed to store questions: %w", err)
	}

	log.Info().
		Str("content_id", contentID).
		Int("requested", count).
		Int("stored", len(pool)).
		Msg("Question pool generated")

	return pool, nil
}

// FilterDrafts drops questions that are too short, too long or plain yes/no
// questions.
func FilterDrafts(drafts []models.DraftQuestion) []models.DraftQuestion {
	out := make([]models.DraftQuestion, 0, len(drafts))
	for _, d := range drafts {
		words := CountWords(d.Question)
		if words < minQuestionWords || words > maxQuestionWords {
			continue
		}
		if isYesNo(d.Question) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func isYesNo(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if !yesNoOpening.MatchString(q) {
		return false
	}
	for _, open := range []string{"how", "why", "what", "explain"} {
		if strings.Contains(q, open) {
			return false
		}
	}
	return true
}

// GenerateQuestion returns the next question for a round. With a contentID
// it is taken from that content's pool, otherwise it is written fresh.
func (s *Service) GenerateQuestion(ctx context.Context, difficulty models.Difficulty, contentID string) (models.Question, error) {
	if difficulty == "" {
		difficulty = models.DifficultyMedium
	}
	if contentID == "" {
		if s.generator == nil {
			return models.Question{}, ErrNoGenerator
		}
		q, err := s.generator.GenerateQuestion(ctx, difficulty)
		if err != nil {
			return models.Question{}, fmt.Errorf("failed to generate question: %w", err)
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		return q, nil
	}

	c, err := s.store.GetContent(ctx, contentID)
	if err != nil {
		return models.Question{}, err
	}

	pq, recycled, err := s.store.TakeUnused(ctx, contentID)
	switch {
	case errors.Is(err, ErrEmptyPool):
		metrics.PoolTakes.WithLabelValues("empty").Inc()
		return models.Question{}, err
	case err != nil:
		return models.Question{}, fmt.Errorf("failed to take question: %w", err)
	case recycled:
		metrics.PoolTakes.WithLabelValues("recycled").Inc()
		log.Debug().Str("content_id", contentID).Msg("Question pool exhausted, recycled")
	default:
		metrics.PoolTakes.WithLabelValues("hit").Inc()
	}

	// Fresh ID per hand-out: replicas ignore a repeated question ID.
	return models.Question{
		ID:         uuid.NewString(),
		Content:    pq.Question,
		Topic:      c.Title,
		ContentID:  contentID,
		Difficulty: pq.Difficulty,
	}, nil
}

func (s *Service) GetContent(ctx context.Context, id string) (models.Content, error) {
	return s.store.GetContent(ctx, id)
}

func (s *Service) ListContent(ctx context.Context) ([]models.Content, error) {
	return s.store.ListContent(ctx)
}

func (s *Service) DeleteContent(ctx context.Context, id string) error {
	return s.store.DeleteContent(ctx, id)
}

func (s *Service) Questions(ctx context.Context, contentID string) ([]models.PoolQuestion, error) {
	return s.store.Questions(ctx, contentID)
}

func (s *Service) ResetPool(ctx context.Context, contentID string) error {
	return s.store.ResetPool(ctx, contentID)
}
