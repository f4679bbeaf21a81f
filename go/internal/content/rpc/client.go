package rpc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcdev12/buzzquiz/go/internal/content"
	"github.com/mcdev12/buzzquiz/go/internal/models"
)

// Client calls the content service. It serves a quiz node as question
// source, scorer and transcriber.
type Client struct {
	ingest     *connect.Client[structpb.Struct, structpb.Struct]
	analyze    *connect.Client[structpb.Struct, structpb.Struct]
	list       *connect.Client[emptypb.Empty, structpb.Struct]
	generate   *connect.Client[structpb.Struct, structpb.Struct]
	score      *connect.Client[structpb.Struct, structpb.Struct]
	transcribe *connect.Client[wrapperspb.BytesValue, wrapperspb.StringValue]
}

// NewClient builds a client for the service at baseURL. JSON is used on the
// wire unless opts say otherwise.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithProtoJSON()}, opts...)
	return &Client{
		ingest:     connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+IngestProcedure, opts...),
		analyze:    connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+AnalyzeProcedure, opts...),
		list:       connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ListContentProcedure, opts...),
		generate:   connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+GenerateQuestionProcedure, opts...),
		score:      connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ScoreProcedure, opts...),
		transcribe: connect.NewClient[wrapperspb.BytesValue, wrapperspb.StringValue](httpClient, baseURL+TranscribeProcedure, opts...),
	}
}

// NewDefaultClient uses http.DefaultClient.
func NewDefaultClient(baseURL string) *Client {
	return NewClient(http.DefaultClient, baseURL)
}

func call[Out any](ctx context.Context, c *connect.Client[structpb.Struct, structpb.Struct], in any, out *Out) error {
	msg, err := toStruct(in)
	if err != nil {
		return err
	}
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return err
	}
	return fromStruct(resp.Msg, out)
}

// Ingest submits text or a URL.
func (c *Client) Ingest(ctx context.Context, req content.IngestRequest) (content.IngestResult, error) {
	var out ingestResponse
	err := call(ctx, c.ingest, ingestRequest{Kind: string(req.Kind), Content: req.Content, Title: req.Title}, &out)
	if err != nil {
		return content.IngestResult{}, fmt.Errorf("failed to ingest content: %w", err)
	}
	return content.IngestResult{
		ContentID:   out.ContentID,
		CleanedText: out.CleanedText,
		WordCount:   out.WordCount,
		Status:      models.ContentStatus(out.Status),
	}, nil
}

// Analyze generates the question pool for contentID.
func (c *Client) Analyze(ctx context.Context, contentID string, count int) ([]models.PoolQuestion, error) {
	var out struct {
		Questions []models.PoolQuestion `json:"questions"`
	}
	if err := call(ctx, c.analyze, analyzeRequest{ContentID: contentID, QuestionCount: count}, &out); err != nil {
		return nil, fmt.Errorf("failed to analyze content: %w", err)
	}
	return out.Questions, nil
}

// ListContent returns stored content summaries.
func (c *Client) ListContent(ctx context.Context) ([]models.Content, error) {
	resp, err := c.list.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	var out struct {
		Contents []models.Content `json:"contents"`
	}
	if err := fromStruct(resp.Msg, &out); err != nil {
		return nil, err
	}
	return out.Contents, nil
}

// GenerateQuestion implements the quiz node's question source.
func (c *Client) GenerateQuestion(ctx context.Context, difficulty models.Difficulty, contentID string) (models.Question, error) {
	var q models.Question
	if err := call(ctx, c.generate, generateRequest{Difficulty: string(difficulty), ContentID: contentID}, &q); err != nil {
		return models.Question{}, fmt.Errorf("failed to generate question: %w", err)
	}
	return q, nil
}

// Score implements the quiz node's scorer.
func (c *Client) Score(ctx context.Context, question models.Question, transcript string) (models.RubricResult, error) {
	in := map[string]any{"question": question, "transcript": transcript}
	var result models.RubricResult
	if err := call(ctx, c.score, in, &result); err != nil {
		return models.RubricResult{}, fmt.Errorf("failed to score answer: %w", err)
	}
	return result, nil
}

// Transcribe implements the quiz node's transcriber.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	req := connect.NewRequest(wrapperspb.Bytes(audio))
	if filename != "" {
		req.Header().Set(FilenameHeader, filename)
	}
	resp, err := c.transcribe.CallUnary(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Msg.GetValue(), nil
}
