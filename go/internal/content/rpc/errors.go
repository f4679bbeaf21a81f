package rpc

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mcdev12/buzzquiz/go/internal/ai"
	"github.com/mcdev12/buzzquiz/go/internal/content"
)

func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, content.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, content.ErrEmptyPool):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, content.ErrInvalidInput),
		errors.Is(err, content.ErrContentTooShort),
		errors.Is(err, content.ErrNotHTML),
		errors.Is(err, ai.ErrEmptyAudio),
		errors.Is(err, ai.ErrAudioTooLarge):
		code = connect.CodeInvalidArgument
	case errors.Is(err, content.ErrNoGenerator), errors.Is(err, ai.ErrNoAPIKey):
		code = connect.CodeUnimplemented
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
