package content

import (
	"context"
	"sort"
	"sync"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	contents map[string]models.Content
	pools    map[string][]models.PoolQuestion
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contents: make(map[string]models.Content),
		pools:    make(map[string][]models.PoolQuestion),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) PutContent(ctx context.Context, c models.Content) error {
	defer observe("memory", "put_content")()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[c.ID] = c
	return nil
}

func (s *MemoryStore) GetContent(ctx context.Context, id string) (models.Content, error) {
	defer observe("memory", "get_content")()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[id]
	if !ok {
		return models.Content{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListContent(ctx context.Context) ([]models.Content, error) {
	defer observe("memory", "list_content")()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Content, 0, len(s.contents))
	for _, c := range s.contents {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteContent(ctx context.Context, id string) error {
	defer observe("memory", "delete_content")()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contents, id)
	delete(s.pools, id)
	return nil
}

func (s *MemoryStore) PutQuestions(ctx context.Context, contentID string, questions []models.PoolQuestion) error {
	defer observe("memory", "put_questions")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contents[contentID]; !ok {
		return ErrNotFound
	}
	pool := make([]models.PoolQuestion, len(questions))
	copy(pool, questions)
	s.pools[contentID] = pool
	return nil
}

func (s *MemoryStore) Questions(ctx context.Context, contentID string) ([]models.PoolQuestion, error) {
	defer observe("memory", "questions")()
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := s.pools[contentID]
	out := make([]models.PoolQuestion, len(pool))
	copy(out, pool)
	return out, nil
}

func (s *MemoryStore) TakeUnused(ctx context.Context, contentID string) (models.PoolQuestion, bool, error) {
	defer observe("memory", "take_unused")()
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := s.pools[contentID]
	if len(pool) == 0 {
		return models.PoolQuestion{}, false, ErrEmptyPool
	}
	for i := range pool {
		if !pool[i].Used {
			pool[i].Used = true
			return pool[i], false, nil
		}
	}

	for i := range pool {
		pool[i].Used = false
	}
	pool[0].Used = true
	return pool[0], true, nil
}

func (s *MemoryStore) ResetPool(ctx context.Context, contentID string) error {
	defer observe("memory", "reset_pool")()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pools[contentID] {
		s.pools[contentID][i].Used = false
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
