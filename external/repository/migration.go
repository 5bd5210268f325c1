package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS consultations (
		id TEXT PRIMARY KEY,
		patient_name TEXT NOT NULL,
		patient_phone TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transcription_sessions (
		id UUID PRIMARY KEY,
		consultation_id TEXT NOT NULL REFERENCES consultations(id),
		status TEXT NOT NULL DEFAULT 'active',
		transcript TEXT NOT NULL DEFAULT '',
		failed_sequences INTEGER[] NOT NULL DEFAULT '{}',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcription_sessions_active ON transcription_sessions (consultation_id) WHERE status = 'active'`,
	`CREATE TABLE IF NOT EXISTS audio_chunks (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES transcription_sessions(id) ON DELETE CASCADE,
		sequence_number INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		duration_seconds DOUBLE PRECISION NOT NULL,
		locator TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMPTZ NOT NULL,
		UNIQUE(session_id, sequence_number)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		consultation_id TEXT NOT NULL REFERENCES consultations(id),
		recipient TEXT NOT NULL,
		body TEXT NOT NULL,
		provider_message_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_provider ON notifications (provider_message_id) WHERE provider_message_id <> ''`,
	`CREATE TABLE IF NOT EXISTS notification_status_events (
		id BIGSERIAL PRIMARY KEY,
		notification_id UUID NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notification_status_events_notification ON notification_status_events (notification_id, id)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
