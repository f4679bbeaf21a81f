package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcdev12/buzzquiz/go/internal/models"
)

const scorerSystem = "You are a fair and professional evaluator who objectively assesses a " +
	"candidate's understanding and communication abilities."

const scorePrompt = `Provide an objective, multi-dimensional assessment of the candidate's answer.

Topic: %s
Question: %s

Candidate's Answer:
%s

Evaluate on these four dimensions:
1. Concept Accuracy (30 points): correctness of core concepts
2. Structural Coherence (25 points): logical organization and clarity
3. Practical Examples (25 points): real-world applications
4. Response Quality (20 points): communication effectiveness

If the answer is empty, blank, nonsensical or unrelated to the topic, give 0 points for ALL dimensions.

Return JSON:
{
  "dimensions": [{"name": "Concept Accuracy", "score": 0, "maxScore": 30, "feedback": "..."}, ...],
  "totalScore": 0,
  "totalMaxScore": 100,
  "overallFeedback": "3-4 sentences",
  "highlights": "...",
  "improvements": "..."
}`

// NoAnswerFeedback accompanies the zero rubric given to empty answers.
const NoAnswerFeedback = "No answer was given."

type rubricReply struct {
	Dimensions []struct {
		Name     string `json:"name"`
		Score    int    `json:"score"`
		MaxScore int    `json:"maxScore"`
		Feedback string `json:"feedback"`
	} `json:"dimensions"`
	TotalScore      int    `json:"totalScore"`
	TotalMaxScore   int    `json:"totalMaxScore"`
	OverallFeedback string `json:"overallFeedback"`
	Highlights      string `json:"highlights"`
	Improvements    string `json:"improvements"`
}

// Score evaluates a transcript against the question. Empty transcripts are
// scored zero without calling the model.
func (c *Client) Score(ctx context.Context, question models.Question, transcript string) (models.RubricResult, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return models.ZeroRubric(NoAnswerFeedback), nil
	}

	topic := question.Topic
	if topic == "" {
		topic = "General"
	}

	var reply rubricReply
	prompt := fmt.Sprintf(scorePrompt, topic, question.Content, transcript)
	if err := c.completeJSON(ctx, scorerSystem, prompt, 0.5, &reply); err != nil {
		return models.RubricResult{}, err
	}

	return reply.toResult(), nil
}

func (r rubricReply) toResult() models.RubricResult {
	result := models.RubricResult{
		TotalScore:      r.TotalScore,
		TotalMaxScore:   r.TotalMaxScore,
		OverallFeedback: r.OverallFeedback,
		Highlights:      r.Highlights,
		Improvements:    r.Improvements,
	}
	for _, d := range r.Dimensions {
		result.Dimensions = append(result.Dimensions, models.RubricDimension{
			Name:     d.Name,
			Score:    d.Score,
			MaxScore: d.MaxScore,
			Feedback: d.Feedback,
		})
	}
	result.Normalize()
	return result
}
