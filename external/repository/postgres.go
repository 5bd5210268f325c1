package repository

import (
	"context"
	"errors"
	"time"

	"github.com/carewire/consultscribe/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) GetConsultation(ctx context.Context, id string) (*repository.Consultation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, patient_name, patient_phone, status, created_at
		 FROM consultations WHERE id = $1`, id)
	var c repository.Consultation
	if err := row.Scan(&c.ID, &c.PatientName, &c.PatientPhone, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresRepository) GetActiveTranscriptionSession(ctx context.Context, consultationID string) (*repository.TranscriptionSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, consultation_id, status, transcript, failed_sequences, started_at, ended_at
		 FROM transcription_sessions WHERE consultation_id = $1 AND status = 'active'
		 LIMIT 1`, consultationID)
	s, err := scanTranscriptionSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) CreateTranscriptionSession(ctx context.Context, input repository.CreateTranscriptionSessionInput) (*repository.TranscriptionSession, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO transcription_sessions (id, consultation_id, status, started_at)
		 VALUES ($1, $2, 'active', $3)
		 RETURNING id, consultation_id, status, transcript, failed_sequences, started_at, ended_at`,
		input.ID, input.ConsultationID, input.StartedAt)
	return scanTranscriptionSession(row)
}

func (r *PostgresRepository) UpdateTranscript(ctx context.Context, sessionID, transcript string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transcription_sessions SET transcript = $2 WHERE id = $1`,
		sessionID, transcript)
	return err
}

func (r *PostgresRepository) CompleteTranscriptionSession(ctx context.Context, input repository.CompleteTranscriptionSessionInput) error {
	failed := input.FailedSequences
	if failed == nil {
		failed = []int{}
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE transcription_sessions
		 SET status = 'ended', transcript = $2, failed_sequences = $3, ended_at = $4
		 WHERE id = $1`,
		input.SessionID, input.Transcript, failed, input.EndedAt)
	return err
}

func (r *PostgresRepository) InsertChunk(ctx context.Context, input repository.InsertChunkInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audio_chunks (id, session_id, sequence_number, size_bytes, duration_seconds, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		input.ID, input.SessionID, input.SequenceNumber, input.SizeBytes, input.DurationSeconds, input.ReceivedAt)
	return err
}

func (r *PostgresRepository) UpdateChunkStored(ctx context.Context, sessionID string, sequence int, locator string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE audio_chunks SET locator = $3, outcome = 'stored'
		 WHERE session_id = $1 AND sequence_number = $2`,
		sessionID, sequence, locator)
	return err
}

func (r *PostgresRepository) UpdateChunkOutcome(ctx context.Context, sessionID string, sequence int, outcome repository.ChunkOutcome, errorMessage string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE audio_chunks SET outcome = $3, error_message = $4
		 WHERE session_id = $1 AND sequence_number = $2`,
		sessionID, sequence, string(outcome), errorMessage)
	return err
}

func (r *PostgresRepository) InsertNotification(ctx context.Context, n *repository.Notification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, consultation_id, recipient, body, provider_message_id, status, error_code, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.ConsultationID, n.Recipient, n.Body, n.ProviderMessageID, string(n.Status), n.ErrorCode, n.ErrorMessage, n.CreatedAt, n.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetNotificationByProviderID(ctx context.Context, providerMessageID string) (*repository.Notification, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, consultation_id, recipient, body, provider_message_id, status, error_code, error_message, created_at, updated_at
		 FROM notifications WHERE provider_message_id = $1 AND provider_message_id <> ''
		 LIMIT 1`, providerMessageID)
	var n repository.Notification
	err := row.Scan(&n.ID, &n.ConsultationID, &n.Recipient, &n.Body, &n.ProviderMessageID,
		&n.Status, &n.ErrorCode, &n.ErrorMessage, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *PostgresRepository) AppendStatusEvent(ctx context.Context, event repository.NotificationStatusEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_status_events (notification_id, status, error_code, error_message, received_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.NotificationID, event.Status, event.ErrorCode, event.ErrorMessage, event.ReceivedAt)
	return err
}

func (r *PostgresRepository) UpdateNotificationStatus(ctx context.Context, id string, status repository.NotificationStatus, errorCode, errorMessage string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $2, error_code = $3, error_message = $4, updated_at = $5
		 WHERE id = $1`,
		id, string(status), errorCode, errorMessage, time.Now().UTC())
	return err
}

func scanTranscriptionSession(row pgx.Row) (*repository.TranscriptionSession, error) {
	var s repository.TranscriptionSession
	var endedAt *time.Time
	err := row.Scan(&s.ID, &s.ConsultationID, &s.Status, &s.Transcript, &s.FailedSequences, &s.StartedAt, &endedAt)
	if err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}
