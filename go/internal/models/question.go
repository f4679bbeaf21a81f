package models

// Difficulty defines how hard a generated question should be.
type Difficulty string

const (
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is the prompt shown to every participant for one round.
// It is immutable once installed into a session replica.
type Question struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Topic      string     `json:"topic"`
	ContentID  string     `json:"content_id,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Valid reports whether the question carries the fields a replica needs.
func (q Question) Valid() bool {
	return q.ID != "" && q.Content != ""
}
