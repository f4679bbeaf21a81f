package models

// RubricDimension is one scored axis of an answer evaluation.
type RubricDimension struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	MaxScore int    `json:"max_score"`
	Feedback string `json:"feedback,omitempty"`
}

// RubricResult holds the multi-dimension evaluation of a submitted answer.
type RubricResult struct {
	Dimensions      []RubricDimension `json:"dimensions"`
	TotalScore      int               `json:"total_score"`
	TotalMaxScore   int               `json:"total_max_score"`
	OverallFeedback string            `json:"overall_feedback,omitempty"`
	Highlights      string            `json:"highlights,omitempty"`
	Improvements    string            `json:"improvements,omitempty"`
}

// DefaultRubric lists the dimensions every answer is scored on.
var DefaultRubric = []RubricDimension{
	{Name: "Concept Accuracy", MaxScore: 30},
	{Name: "Structural Coherence", MaxScore: 25},
	{Name: "Practical Examples", MaxScore: 25},
	{Name: "Response Quality", MaxScore: 20},
}

// ZeroRubric returns the default rubric with every dimension scored zero.
func ZeroRubric(feedback string) RubricResult {
	dims := make([]RubricDimension, len(DefaultRubric))
	copy(dims, DefaultRubric)
	r := RubricResult{Dimensions: dims, OverallFeedback: feedback}
	r.Normalize()
	return r
}

// Normalize clamps every dimension into [0, MaxScore] and recomputes the
// totals from the dimensions. A result without dimensions keeps its total,
// floored at zero.
func (r *RubricResult) Normalize() {
	if len(r.Dimensions) == 0 {
		if r.TotalScore < 0 {
			r.TotalScore = 0
		}
		if r.TotalMaxScore > 0 && r.TotalScore > r.TotalMaxScore {
			r.TotalScore = r.TotalMaxScore
		}
		return
	}

	total, max := 0, 0
	for i := range r.Dimensions {
		d := &r.Dimensions[i]
		if d.MaxScore < 0 {
			d.MaxScore = 0
		}
		if d.Score < 0 {
			d.Score = 0
		}
		if d.Score > d.MaxScore {
			d.Score = d.MaxScore
		}
		total += d.Score
		max += d.MaxScore
	}
	r.TotalScore = total
	r.TotalMaxScore = max
}
