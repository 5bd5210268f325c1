package repository

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type CreateTranscriptionSessionInput struct {
	ID             string
	ConsultationID string
	StartedAt      time.Time
}

type CompleteTranscriptionSessionInput struct {
	SessionID       string
	Transcript      string
	FailedSequences []int
	EndedAt         time.Time
}

type InsertChunkInput struct {
	ID              string
	SessionID       string
	SequenceNumber  int
	SizeBytes       int
	DurationSeconds float64
	ReceivedAt      time.Time
}

type SessionRepository interface {
	GetConsultation(ctx context.Context, id string) (*Consultation, error)
	GetActiveTranscriptionSession(ctx context.Context, consultationID string) (*TranscriptionSession, error)
	CreateTranscriptionSession(ctx context.Context, input CreateTranscriptionSessionInput) (*TranscriptionSession, error)
	UpdateTranscript(ctx context.Context, sessionID, transcript string) error
	CompleteTranscriptionSession(ctx context.Context, input CompleteTranscriptionSessionInput) error
}

type ChunkRepository interface {
	InsertChunk(ctx context.Context, input InsertChunkInput) error
	UpdateChunkStored(ctx context.Context, sessionID string, sequence int, locator string) error
	UpdateChunkOutcome(ctx context.Context, sessionID string, sequence int, outcome ChunkOutcome, errorMessage string) error
}

type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *Notification) error
	GetNotificationByProviderID(ctx context.Context, providerMessageID string) (*Notification, error)
	AppendStatusEvent(ctx context.Context, event NotificationStatusEvent) error
	UpdateNotificationStatus(ctx context.Context, id string, status NotificationStatus, errorCode, errorMessage string) error
}

type Repository interface {
	SessionRepository
	ChunkRepository
	NotificationRepository
	Ping(ctx context.Context) error
}
