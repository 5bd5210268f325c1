package session

import "fmt"

// ChunkMetadata is the client-declared description of one audio unit.
type ChunkMetadata struct {
	SequenceNumber  int
	SizeBytes       int
	DurationSeconds float64
}

// SessionSnapshot is the immutable view of session state a validation runs
// against. Taking a snapshot keeps ValidateChunk a pure function.
type SessionSnapshot struct {
	Active       bool
	SeenSequence func(sequence int) bool
}

// ValidateChunk accepts or rejects one metadata+payload pair. Checks run in
// a fixed order so clients get deterministic error codes. No side effects.
func ValidateChunk(meta ChunkMetadata, payload []byte, snap SessionSnapshot) *ChunkError {
	if len(payload) != meta.SizeBytes {
		return &ChunkError{
			Code:    CodeSizeMismatch,
			Message: fmt.Sprintf("binary payload is %d bytes but metadata declared %d bytes", len(payload), meta.SizeBytes),
		}
	}
	if meta.SizeBytes > MaxChunkSizeBytes {
		return &ChunkError{
			Code:    CodeChunkTooLarge,
			Message: fmt.Sprintf("chunk size %d bytes exceeds maximum %d bytes", meta.SizeBytes, MaxChunkSizeBytes),
		}
	}
	if meta.SequenceNumber < 0 || snap.SeenSequence(meta.SequenceNumber) {
		return &ChunkError{
			Code:    CodeDuplicateOrStaleSequence,
			Message: fmt.Sprintf("sequence number %d is negative or already submitted", meta.SequenceNumber),
		}
	}
	if !snap.Active {
		return &ChunkError{
			Code:    CodeSessionNotActive,
			Message: "session is not accepting audio",
		}
	}
	return nil
}
