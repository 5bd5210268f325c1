package transcriber

import (
	"context"
	"errors"
)

// ErrTranscriptionService wraps provider failures; the detail stays attached
// for logging but callers only branch on this sentinel.
var ErrTranscriptionService = errors.New("transcription service error")

// Transcriber converts one audio chunk into text. Implementations must be
// safe for concurrent use; ordering across chunks is the caller's concern.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
