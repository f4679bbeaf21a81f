package ai

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
)

const defaultAudioName = "answer.webm"

// Transcribe converts recorded English speech to text with Whisper.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if err := ValidateAudio(audio); err != nil {
		return "", err
	}
	if filename == "" {
		filename = defaultAudioName
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	transcription, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModelWhisper1,
		File:     openai.File(bytes.NewReader(audio), filename, contentType),
		Language: openai.String("en"),
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	log.Debug().Int("bytes", len(audio)).Int("chars", len(transcription.Text)).Msg("Audio transcribed")
	return transcription.Text, nil
}

// ValidateAudio enforces the upload limits.
func ValidateAudio(audio []byte) error {
	switch {
	case len(audio) == 0:
		return ErrEmptyAudio
	case len(audio) > MaxAudioBytes:
		return fmt.Errorf("%w: %d bytes, max %d", ErrAudioTooLarge, len(audio), MaxAudioBytes)
	}
	return nil
}
