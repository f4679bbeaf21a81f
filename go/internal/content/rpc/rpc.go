// Package rpc exposes the content service, answer scoring and transcription
// over Connect. Messages are well-known protobuf types so no code generation
// is needed.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "buzzquiz.content.v1.ContentService"

const (
	IngestProcedure           = "/" + ServiceName + "/Ingest"
	AnalyzeProcedure          = "/" + ServiceName + "/Analyze"
	ListContentProcedure      = "/" + ServiceName + "/ListContent"
	GenerateQuestionProcedure = "/" + ServiceName + "/GenerateQuestion"
	ScoreProcedure            = "/" + ServiceName + "/Score"
	TranscribeProcedure       = "/" + ServiceName + "/Transcribe"
)

// FilenameHeader carries the audio file name on Transcribe calls.
const FilenameHeader = "X-Audio-Filename"

// toStruct converts a JSON-tagged Go value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return s, nil
}

// fromStruct decodes a protobuf Struct into a JSON-tagged Go value.
func fromStruct(s *structpb.Struct, out any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

type ingestRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Title   string `json:"title,omitempty"`
}

type ingestResponse struct {
	ContentID   string `json:"content_id"`
	CleanedText string `json:"cleaned_text"`
	WordCount   int    `json:"word_count"`
	Status      string `json:"status"`
}

type analyzeRequest struct {
	ContentID     string `json:"content_id"`
	QuestionCount int    `json:"question_count,omitempty"`
}

type generateRequest struct {
	Difficulty string `json:"difficulty,omitempty"`
	ContentID  string `json:"content_id,omitempty"`
}
