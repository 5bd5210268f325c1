package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame type discriminators on the websocket.
const (
	frameTypeConnectionConfirmed = "connection_confirmed"
	frameTypeChunkMetadata       = "audio_chunk_metadata"
	frameTypeTranscriptUpdate    = "transcript_update"
	frameTypeError               = "error"
)

// Protocol-level error codes, on top of the chunk rejection codes.
const (
	codeInvalidJSON        = "InvalidJSON"
	codeMissingMetadata    = "MissingMetadata"
	codeMissingBinary      = "MissingBinary"
	codeUnknownMessageType = "UnknownMessageType"
)

type connectionConfirmedFrame struct {
	Type                         string `json:"type"`
	TranscriptionSessionID       string `json:"transcription_session_id"`
	MaxChunkSizeBytes            int    `json:"max_chunk_size_bytes"`
	ExpectedChunkDurationSeconds int    `json:"expected_chunk_duration_seconds"`
}

type chunkMetadataFrame struct {
	Type            string  `json:"type"`
	SequenceNumber  int     `json:"sequence_number"`
	ChunkSizeBytes  int     `json:"chunk_size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type transcriptUpdateFrame struct {
	Type              string  `json:"type"`
	SequenceNumber    int     `json:"sequence_number"`
	PartialTranscript string  `json:"partial_transcript"`
	FullTranscript    string  `json:"full_transcript"`
	ProcessingTimeMs  float64 `json:"processing_time_ms"`
}

type errorFrame struct {
	Type           string `json:"type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	SequenceNumber *int   `json:"sequence_number,omitempty"`
}

// decodeMetadataFrame parses a client text frame strictly: unknown fields
// are rejected before any binary read happens.
func decodeMetadataFrame(data []byte) (*chunkMetadataFrame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var frame chunkMetadataFrame
	if err := dec.Decode(&frame); err != nil {
		return nil, err
	}
	if frame.Type != frameTypeChunkMetadata {
		return nil, fmt.Errorf("unsupported frame type %q", frame.Type)
	}
	return &frame, nil
}
