package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/buzzquiz/go/internal/quiz/session"
)

// ErrUnknownAction is returned for client messages naming no known action.
var ErrUnknownAction = errors.New("unknown action")

// Controller is what the gateway needs from a quiz node.
type Controller interface {
	Identity() string
	Snapshot(ctx context.Context) (session.Snapshot, error)
	Subscribe() (<-chan session.Snapshot, func())

	StartGame(ctx context.Context, totalRounds int) error
	SetContent(ctx context.Context, contentID string) error
	GenerateQuestion(ctx context.Context) error
	Buzz(ctx context.Context) error
	SubmitAnswer(ctx context.Context, transcript string) error
	SubmitAudio(ctx context.Context, audio []byte, filename string) error
	NextRound(ctx context.Context) error
	EndGame(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Action names a user action sent by a client.
type Action string

const (
	ActionStartGame        Action = "start_game"
	ActionSetContent       Action = "set_content"
	ActionGenerateQuestion Action = "generate_question"
	ActionBuzz             Action = "buzz"
	ActionSubmitAnswer     Action = "submit_answer"
	ActionNextRound        Action = "next_round"
	ActionEndGame          Action = "end_game"
	ActionReset            Action = "reset"
)

// ClientMessage is an action request from a WebSocket or HTTP client.
type ClientMessage struct {
	Action      Action `json:"action"`
	TotalRounds int    `json:"total_rounds,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	Transcript  string `json:"transcript,omitempty"`
}

// MessageType identifies a message pushed to clients.
type MessageType string

const (
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeError    MessageType = "error"
)

// ServerMessage is pushed to WebSocket clients.
type ServerMessage struct {
	Type     MessageType       `json:"type"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Action   Action            `json:"action,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Dispatch runs the action in msg against c.
func Dispatch(ctx context.Context, c Controller, msg ClientMessage) error {
	switch msg.Action {
	case ActionStartGame:
		return c.StartGame(ctx, msg.TotalRounds)
	case ActionSetContent:
		return c.SetContent(ctx, msg.ContentID)
	case ActionGenerateQuestion:
		return c.GenerateQuestion(ctx)
	case ActionBuzz:
		return c.Buzz(ctx)
	case ActionSubmitAnswer:
		return c.SubmitAnswer(ctx, msg.Transcript)
	case ActionNextRound:
		return c.NextRound(ctx)
	case ActionEndGame:
		return c.EndGame(ctx)
	case ActionReset:
		return c.Reset(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
}
