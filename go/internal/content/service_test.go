package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/buzzquiz/go/clients"
	"github.com/mcdev12/buzzquiz/go/internal/models"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateQuestions(ctx context.Context, text string, count int) ([]models.DraftQuestion, error) {
	args := m.Called(ctx, text, count)
	drafts, _ := args.Get(0).([]models.DraftQuestion)
	return drafts, args.Error(1)
}

func (m *MockGenerator) GenerateQuestion(ctx context.Context, difficulty models.Difficulty) (models.Question, error) {
	args := m.Called(ctx, difficulty)
	return args.Get(0).(models.Question), args.Error(1)
}

type stubFetcher struct {
	resp *clients.Response
	err  error
	urls []string
}

func (f *stubFetcher) Get(ctx context.Context, url string) (*clients.Response, error) {
	f.urls = append(f.urls, url)
	return f.resp, f.err
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func newTestService(t *testing.T, fetcher Fetcher) (*Service, *MockGenerator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	gen := &MockGenerator{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	return NewService(store, fetcher, gen, WithClock(clock)), gen, store
}

func TestIngest_Text(t *testing.T) {
	svc, _, store := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{
		Kind:    models.ContentKindText,
		Content: "  " + strings.ReplaceAll(words(150), " ", " \n\n ") + "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, 150, res.WordCount)
	assert.Equal(t, words(150), res.CleanedText)
	assert.Equal(t, models.ContentStatusReady, res.Status)

	c, err := store.GetContent(ctx, res.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "Text Content (Mar 14, 2025)", c.Title)
	assert.Equal(t, 1, c.EstimatedQuestions)
}

func TestIngest_Limits(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: words(99)})
	assert.ErrorIs(t, err, ErrContentTooShort)

	res, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: words(MaxWords + 50), Title: "Long"})
	require.NoError(t, err)
	assert.Equal(t, MaxWords, res.WordCount)
	assert.Equal(t, MaxWords, CountWords(res.CleanedText))

	_, err = svc.Ingest(ctx, IngestRequest{Kind: "pdf", Content: words(200)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngest_URL(t *testing.T) {
	fetcher := &stubFetcher{resp: &clients.Response{
		ContentType: "text/html; charset=utf-8",
		Body:        []byte("<html><body><nav>skip me</nav><article>" + words(120) + "</article></body></html>"),
	}}
	svc, _, store := newTestService(t, fetcher)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindURL, Content: " https://example.com/post "})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/post"}, fetcher.urls)
	assert.Equal(t, 120, res.WordCount)
	assert.NotContains(t, res.CleanedText, "skip")

	c, err := store.GetContent(ctx, res.ContentID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/post", c.Title)
	assert.Equal(t, models.ContentKindURL, c.Kind)
}

func TestIngest_URLErrors(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(t, &stubFetcher{resp: &clients.Response{ContentType: "application/pdf"}})
	_, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindURL, Content: "https://example.com/a.pdf"})
	assert.ErrorIs(t, err, ErrNotHTML)

	boom := errors.New("boom")
	svc, _, _ = newTestService(t, &stubFetcher{err: boom})
	_, err = svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindURL, Content: "https://example.com"})
	assert.ErrorIs(t, err, boom)

	svc, _, _ = newTestService(t, &stubFetcher{resp: &clients.Response{
		ContentType: "text/html",
		Body:        []byte("<p>tiny</p>"),
	}})
	_, err = svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindURL, Content: "https://example.com"})
	assert.ErrorIs(t, err, ErrContentTooShort)
}

func TestFilterDrafts(t *testing.T) {
	long := "Explain " + words(100)
	drafts := []models.DraftQuestion{
		{Question: "Too short to keep?"},
		{Question: long},
		{Question: "Is the mitochondria the powerhouse of the cell in all known eukaryotes?"},
		{Question: "Is it true that feedback loops matter, and why do they shape emergent behavior?"},
		{Question: "How would you redesign a city transit network to reduce emergent congestion patterns?"},
	}

	got := FilterDrafts(drafts)
	require.Len(t, got, 2)
	assert.Equal(t, drafts[3].Question, got[0].Question, "yes/no opening with why is kept")
	assert.Equal(t, drafts[4].Question, got[1].Question)
}

func TestAnalyze(t *testing.T) {
	svc, gen, store := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: words(200), Title: "Systems"})
	require.NoError(t, err)

	gen.On("GenerateQuestions", mock.Anything, res.CleanedText, DefaultQuestionCount).Return([]models.DraftQuestion{
		{Question: "How do feedback loops in ecosystems produce stable population cycles over time?", Context: "feedback"},
		{Question: "Short?"},
		{Question: "Why can small local rules lead to large scale order in ant colonies?", Difficulty: models.DifficultyHard},
	}, nil).Once()

	pool, err := svc.Analyze(ctx, res.ContentID, 0)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, models.DifficultyMedium, pool[0].Difficulty)
	assert.Equal(t, models.DifficultyHard, pool[1].Difficulty)
	assert.Equal(t, res.ContentID, pool[0].ContentID)

	stored, err := store.Questions(ctx, res.ContentID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	gen.AssertExpectations(t)
}

func TestAnalyze_Errors(t *testing.T) {
	svc, gen, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Analyze(ctx, "whatever", 4)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Analyze(ctx, "whatever", 31)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Analyze(ctx, "missing", 5)
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: words(200)})
	require.NoError(t, err)

	gen.On("GenerateQuestions", mock.Anything, mock.Anything, 5).
		Return([]models.DraftQuestion{{Question: "Yes?"}}, nil).Once()
	_, err = svc.Analyze(ctx, res.ContentID, 5)
	assert.ErrorIs(t, err, ErrNoQualityQuestions)

	boom := errors.New("model unavailable")
	gen.On("GenerateQuestions", mock.Anything, mock.Anything, 6).Return(nil, boom).Once()
	_, err = svc.Analyze(ctx, res.ContentID, 6)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateQuestion_FromPool(t *testing.T) {
	svc, _, store := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: words(200), Title: "Emergence"})
	require.NoError(t, err)
	require.NoError(t, store.PutQuestions(ctx, res.ContentID, []models.PoolQuestion{
		{ID: "p1", Question: "first", Difficulty: models.DifficultyMedium},
		{ID: "p2", Question: "second", Difficulty: models.DifficultyHard},
	}))

	var ids []string
	var contents []string
	for i := 0; i < 3; i++ {
		q, err := svc.GenerateQuestion(ctx, models.DifficultyMedium, res.ContentID)
		require.NoError(t, err)
		assert.Equal(t, "Emergence", q.Topic)
		assert.Equal(t, res.ContentID, q.ContentID)
		ids = append(ids, q.ID)
		contents = append(contents, q.Content)
	}

	assert.Equal(t, []string{"first", "second", "first"}, contents, "recycles after exhaustion")
	assert.NotEqual(t, ids[0], ids[2], "recycled question gets a fresh id")
}

func TestGenerateQuestion_Errors(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.GenerateQuestion(ctx, models.DifficultyMedium, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := svc.Ingest(ctx, IngestRequest{Kind: models.ContentKindText, Content: words(200)})
	require.NoError(t, err)
	_, err = svc.GenerateQuestion(ctx, models.DifficultyMedium, res.ContentID)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestGenerateQuestion_Fresh(t *testing.T) {
	svc, gen, _ := newTestService(t, nil)

	gen.On("GenerateQuestion", mock.Anything, models.DifficultyMedium).
		Return(models.Question{Content: "Explain emergence.", Topic: "Complexity"}, nil).Once()

	q, err := svc.GenerateQuestion(context.Background(), "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "Complexity", q.Topic)
	gen.AssertExpectations(t)
}
