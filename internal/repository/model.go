package repository

import "time"

type ConsultationStatus string

const (
	ConsultationStatusActive ConsultationStatus = "active"
	ConsultationStatusClosed ConsultationStatus = "closed"
)

// Consultation is the parent encounter record. The pipeline only reads it;
// consultation CRUD lives elsewhere.
type Consultation struct {
	ID           string
	PatientName  string
	PatientPhone string
	Status       ConsultationStatus
	CreatedAt    time.Time
}

type TranscriptionSessionStatus string

const (
	TranscriptionSessionStatusActive TranscriptionSessionStatus = "active"
	TranscriptionSessionStatusEnded  TranscriptionSessionStatus = "ended"
)

type TranscriptionSession struct {
	ID             string
	ConsultationID string
	Status         TranscriptionSessionStatus
	Transcript     string
	StartedAt      time.Time
	EndedAt        *time.Time
	// FailedSequences lists chunk sequence numbers that never produced text,
	// recorded as end-of-session diagnostics.
	FailedSequences []int
}

type ChunkOutcome string

const (
	ChunkOutcomePending     ChunkOutcome = "pending"
	ChunkOutcomeStored      ChunkOutcome = "stored"
	ChunkOutcomeTranscribed ChunkOutcome = "transcribed"
	ChunkOutcomeFailed      ChunkOutcome = "failed"
)

type AudioChunk struct {
	ID              string
	SessionID       string
	SequenceNumber  int
	SizeBytes       int
	DurationSeconds float64
	Locator         string
	Outcome         ChunkOutcome
	ErrorMessage    string
	ReceivedAt      time.Time
}

type NotificationStatus string

const (
	NotificationStatusQueued      NotificationStatus = "queued"
	NotificationStatusSent        NotificationStatus = "sent"
	NotificationStatusDelivered   NotificationStatus = "delivered"
	NotificationStatusRead        NotificationStatus = "read"
	NotificationStatusFailed      NotificationStatus = "failed"
	NotificationStatusUndelivered NotificationStatus = "undelivered"
)

type Notification struct {
	ID                string
	ConsultationID    string
	Recipient         string
	Body              string
	ProviderMessageID string
	Status            NotificationStatus
	ErrorCode         string
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NotificationStatusEvent is one raw provider callback, kept in receipt
// order regardless of how the current status advances.
type NotificationStatusEvent struct {
	NotificationID string
	Status         string
	ErrorCode      string
	ErrorMessage   string
	ReceivedAt     time.Time
}
