// Package content ingests learning material and keeps the per-content pools
// of pre-generated questions handed out to quiz sessions.
package content

import (
	"context"
	"errors"
	"time"

	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/models"
)

var (
	ErrNotFound        = errors.New("content not found")
	ErrEmptyPool       = errors.New("question pool is empty")
	ErrContentTooShort = errors.New("content too short")
	ErrNotHTML         = errors.New("url does not point to an html page")
	ErrInvalidInput    = errors.New("invalid content input")
)

// Store keeps content documents and their question pools.
//
// TakeUnused hands out the first question of the pool not yet used in the
// current cycle and marks it used. When every question is used the pool is
// reset and the first question is handed out again with recycled set.
type Store interface {
	PutContent(ctx context.Context, c models.Content) error
	GetContent(ctx context.Context, id string) (models.Content, error)
	ListContent(ctx context.Context) ([]models.Content, error)
	DeleteContent(ctx context.Context, id string) error

	PutQuestions(ctx context.Context, contentID string, questions []models.PoolQuestion) error
	Questions(ctx context.Context, contentID string) ([]models.PoolQuestion, error)
	TakeUnused(ctx context.Context, contentID string) (q models.PoolQuestion, recycled bool, err error)
	ResetPool(ctx context.Context, contentID string) error

	Close() error
}

func observe(driver, op string) func() {
	start := time.Now()
	return func() {
		metrics.StoreLatency.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
	}
}
