package session

import "errors"

// Protocol limits advertised in the connection handshake. Constants, not
// negotiated.
const (
	MaxChunkSizeBytes            = 1 << 20
	ExpectedChunkDurationSeconds = 8
)

// Wire-visible rejection codes for a single chunk.
const (
	CodeSizeMismatch             = "SizeMismatch"
	CodeChunkTooLarge            = "ChunkTooLarge"
	CodeDuplicateOrStaleSequence = "DuplicateOrStaleSequence"
	CodeSessionNotActive         = "SessionNotActive"
	CodeStorageUnavailable       = "StorageUnavailable"
	CodeTranscriptionService     = "TranscriptionServiceError"
)

// ChunkError is a typed rejection carrying the wire error code, so the
// connection handler can report it without interpreting the message.
type ChunkError struct {
	Code    string
	Message string
}

func (e *ChunkError) Error() string {
	return e.Code + ": " + e.Message
}

var (
	ErrSessionNotFound       = errors.New("transcription session not found")
	ErrSessionNotActive      = errors.New("transcription session is not active")
	ErrConsultationNotFound  = errors.New("consultation not found")
	ErrConsultationNotActive = errors.New("consultation is not active")
	ErrSessionAlreadyEnding  = errors.New("transcription session is already ending")
)
