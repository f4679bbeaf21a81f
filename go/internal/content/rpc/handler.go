package rpc

import (
	"context"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcdev12/buzzquiz/go/internal/ai"
	"github.com/mcdev12/buzzquiz/go/internal/content"
	"github.com/mcdev12/buzzquiz/go/internal/models"
)

// ContentApp defines what the RPC layer needs from the content service.
type ContentApp interface {
	Ingest(ctx context.Context, req content.IngestRequest) (content.IngestResult, error)
	Analyze(ctx context.Context, contentID string, count int) ([]models.PoolQuestion, error)
	ListContent(ctx context.Context) ([]models.Content, error)
	GenerateQuestion(ctx context.Context, difficulty models.Difficulty, contentID string) (models.Question, error)
}

type Scorer interface {
	Score(ctx context.Context, question models.Question, transcript string) (models.RubricResult, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Service implements the content RPC procedures. Scorer and transcriber may
// be nil, in which case those procedures answer Unimplemented.
type Service struct {
	app         ContentApp
	scorer      Scorer
	transcriber Transcriber
}

func NewService(app ContentApp, scorer Scorer, transcriber Transcriber) *Service {
	return &Service{app: app, scorer: scorer, transcriber: transcriber}
}

// NewHandler returns the path prefix and handler serving every procedure.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(IngestProcedure, connect.NewUnaryHandler(IngestProcedure, svc.Ingest, opts...))
	mux.Handle(AnalyzeProcedure, connect.NewUnaryHandler(AnalyzeProcedure, svc.Analyze, opts...))
	mux.Handle(ListContentProcedure, connect.NewUnaryHandler(ListContentProcedure, svc.ListContent, opts...))
	mux.Handle(GenerateQuestionProcedure, connect.NewUnaryHandler(GenerateQuestionProcedure, svc.GenerateQuestion, opts...))
	mux.Handle(ScoreProcedure, connect.NewUnaryHandler(ScoreProcedure, svc.Score, opts...))
	mux.Handle(TranscribeProcedure, connect.NewUnaryHandler(TranscribeProcedure, svc.Transcribe, opts...))
	return "/" + ServiceName + "/", mux
}

// Ingest stores raw text or a URL's main text.
func (s *Service) Ingest(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in ingestRequest
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	res, err := s.app.Ingest(ctx, content.IngestRequest{
		Kind:    models.ContentKind(in.Kind),
		Content: in.Content,
		Title:   in.Title,
	})
	if err != nil {
		log.Warn().Err(err).Str("kind", in.Kind).Msg("Ingest failed")
		return nil, toConnectError(err)
	}

	return respond(ingestResponse{
		ContentID:   res.ContentID,
		CleanedText: res.CleanedText,
		WordCount:   res.WordCount,
		Status:      string(res.Status),
	})
}

// Analyze builds the question pool for stored content.
func (s *Service) Analyze(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in analyzeRequest
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	pool, err := s.app.Analyze(ctx, in.ContentID, in.QuestionCount)
	if err != nil {
		log.Warn().Err(err).Str("content_id", in.ContentID).Msg("Analyze failed")
		return nil, toConnectError(err)
	}

	return respond(map[string]any{
		"content_id": in.ContentID,
		"count":      len(pool),
		"questions":  pool,
	})
}

// ListContent returns every stored document without its text.
func (s *Service) ListContent(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	contents, err := s.app.ListContent(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	type summary struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		WordCount int    `json:"word_count"`
		Status    string `json:"status"`
	}
	out := make([]summary, 0, len(contents))
	for _, c := range contents {
		out = append(out, summary{ID: c.ID, Title: c.Title, WordCount: c.WordCount, Status: string(c.Status)})
	}

	return respond(map[string]any{
		"content_count": len(out),
		"contents":      out,
	})
}

// GenerateQuestion returns the next round's question.
func (s *Service) GenerateQuestion(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	var in generateRequest
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	q, err := s.app.GenerateQuestion(ctx, models.Difficulty(in.Difficulty), in.ContentID)
	if err != nil {
		log.Warn().Err(err).Str("content_id", in.ContentID).Msg("Question generation failed")
		return nil, toConnectError(err)
	}
	return respond(q)
}

// Score evaluates a transcript. The request carries "question" and
// "transcript" fields.
func (s *Service) Score(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	if s.scorer == nil {
		return nil, toConnectError(ai.ErrNoAPIKey)
	}

	var in struct {
		Question   models.Question `json:"question"`
		Transcript string          `json:"transcript"`
	}
	if err := fromStruct(req.Msg, &in); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := s.scorer.Score(ctx, in.Question, in.Transcript)
	if err != nil {
		log.Warn().Err(err).Str("question_id", in.Question.ID).Msg("Scoring failed")
		return nil, toConnectError(err)
	}
	return respond(result)
}

// Transcribe converts audio bytes to text.
func (s *Service) Transcribe(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.StringValue], error) {
	if s.transcriber == nil {
		return nil, toConnectError(ai.ErrNoAPIKey)
	}

	text, err := s.transcriber.Transcribe(ctx, req.Msg.GetValue(), req.Header().Get(FilenameHeader))
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(req.Msg.GetValue())).Msg("Transcription failed")
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.String(text)), nil
}

func respond(v any) (*connect.Response[structpb.Struct], error) {
	msg, err := toStruct(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to encode response: %w", err))
	}
	return connect.NewResponse(msg), nil
}
