package node

import (
	"context"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

// QuestionSource generates the question for a round. An empty contentID asks
// for a question that is not bound to uploaded content.
type QuestionSource interface {
	GenerateQuestion(ctx context.Context, difficulty models.Difficulty, contentID string) (models.Question, error)
}

// Scorer evaluates a transcript against the question's topic. Empty or
// unrelated transcripts score zero on every dimension.
type Scorer interface {
	Score(ctx context.Context, question models.Question, transcript string) (models.RubricResult, error)
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
