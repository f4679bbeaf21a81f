package models

import "time"

// ContentKind defines how user content was submitted.
type ContentKind string

const (
	ContentKindText ContentKind = "text"
	ContentKindURL  ContentKind = "url"
)

// ContentStatus defines the processing status of uploaded content.
type ContentStatus string

const (
	ContentStatusProcessing ContentStatus = "processing"
	ContentStatusReady      ContentStatus = "ready"
	ContentStatusError      ContentStatus = "error"
)

// Content is learning material questions can be generated from.
type Content struct {
	ID                 string        `json:"id"`
	Kind               ContentKind   `json:"kind"`
	Title              string        `json:"title"`
	RawContent         string        `json:"raw_content"`
	CleanedText        string        `json:"cleaned_text"`
	UploadedAt         time.Time     `json:"uploaded_at"`
	Status             ContentStatus `json:"status"`
	WordCount          int           `json:"word_count"`
	EstimatedQuestions int           `json:"estimated_questions"`
}

// PoolQuestion is a pre-generated question bound to a piece of content.
// Used marks it consumed for the current exhaustion cycle.
type PoolQuestion struct {
	ID         string     `json:"id"`
	ContentID  string     `json:"content_id"`
	Question   string     `json:"question"`
	Context    string     `json:"context,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
	Used       bool       `json:"used"`
}

// DraftQuestion is a question proposed by a generator before it is
// filtered and stored in a pool.
type DraftQuestion struct {
	Question   string     `json:"question"`
	Context    string     `json:"context"`
	Difficulty Difficulty `json:"difficulty"`
}
