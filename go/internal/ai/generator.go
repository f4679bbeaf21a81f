package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

// promptTextLimit caps how much source material is sent to the model.
const promptTextLimit = 10000

const generatorSystem = "You are an expert educator who excels at creating thought-provoking " +
	"discussion questions that test understanding and application of concepts."

const poolPrompt = `Analyze the following learning material and generate EXACTLY %d open-ended discussion questions that:

1. Test deep understanding, not memorization
2. Are answerable in 60-90 seconds of spoken explanation
3. Use scenario-based or application-focused framing
4. Avoid yes/no or simple factual recall questions
5. Cover different aspects and concepts from the material
6. Vary in difficulty from medium to challenging

Each question should be 2-3 sentences maximum and focus on ONE main concept.

Content:
%s

Return a JSON object with this structure:
{"questions": [{"question": "...", "context": "what this question tests", "difficulty": "medium" or "hard"}]}`

const singlePrompt = `Write ONE open-ended %s difficulty discussion question about complexity science,
systems thinking or emergence. It must be answerable in 60-90 seconds of spoken explanation
and must not be a yes/no or factual recall question.

Return a JSON object: {"question": "...", "topic": "short topic name"}`

type poolReply struct {
	Questions []struct {
		Question   string `json:"question"`
		Context    string `json:"context"`
		Difficulty string `json:"difficulty"`
	} `json:"questions"`
}

// GenerateQuestions drafts count questions from source text.
func (c *Client) GenerateQuestions(ctx context.Context, text string, count int) ([]models.DraftQuestion, error) {
	if len(text) > promptTextLimit {
		text = text[:promptTextLimit]
	}

	var reply poolReply
	if err := c.completeJSON(ctx, generatorSystem, fmt.Sprintf(poolPrompt, count, text), 0.8, &reply); err != nil {
		return nil, err
	}
	if reply.Questions == nil {
		return nil, fmt.Errorf("%w: missing questions", ErrInvalidResponse)
	}

	drafts := make([]models.DraftQuestion, 0, len(reply.Questions))
	for _, q := range reply.Questions {
		drafts = append(drafts, models.DraftQuestion{
			Question:   strings.TrimSpace(q.Question),
			Context:    q.Context,
			Difficulty: parseDifficulty(q.Difficulty),
		})
	}

	log.Debug().Int("requested", count).Int("received", len(drafts)).Msg("Drafted question pool")
	return drafts, nil
}

// GenerateQuestion writes one question that is not bound to uploaded content.
func (c *Client) GenerateQuestion(ctx context.Context, difficulty models.Difficulty) (models.Question, error) {
	var reply struct {
		Question string `json:"question"`
		Topic    string `json:"topic"`
	}
	if err := c.completeJSON(ctx, generatorSystem, fmt.Sprintf(singlePrompt, difficulty), 0.8, &reply); err != nil {
		return models.Question{}, err
	}
	if strings.TrimSpace(reply.Question) == "" {
		return models.Question{}, fmt.Errorf("%w: empty question", ErrInvalidResponse)
	}

	return models.Question{
		Content:    strings.TrimSpace(reply.Question),
		Topic:      reply.Topic,
		Difficulty: difficulty,
	}, nil
}

func parseDifficulty(s string) models.Difficulty {
	if strings.EqualFold(strings.TrimSpace(s), string(models.DifficultyHard)) {
		return models.DifficultyHard
	}
	return models.DifficultyMedium
}
