package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/carewire/consultscribe/internal/blobstore"
	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/carewire/consultscribe/internal/transcriber"
	"github.com/google/uuid"
)

const idleReapInterval = 30 * time.Second

type sessionState int

const (
	stateActive sessionState = iota
	stateEnding
	stateEnded
)

// TranscriptUpdate is the incremental result of one processed chunk,
// delivered back to the connection for the client push.
type TranscriptUpdate struct {
	SequenceNumber int
	Partial        string
	Full           string
	ProcessingTime time.Duration
}

// ChunkResult reports the terminal outcome of one chunk's pipeline run.
// Either Err or Update is set.
type ChunkResult struct {
	SequenceNumber int
	Err            *ChunkError
	Update         *TranscriptUpdate
}

// ResultFunc receives chunk results as they complete, in completion order.
type ResultFunc func(ChunkResult)

type liveSession struct {
	id             string
	consultationID string

	mu           sync.Mutex
	state        sessionState
	seen         map[int]struct{}
	agg          *aggregator
	failedSeqs   []int
	lastActivity time.Time

	// wg tracks in-flight chunk pipelines so end can drain them.
	wg sync.WaitGroup
}

func (s *liveSession) snapshot() SessionSnapshot {
	seen := make(map[int]struct{}, len(s.seen))
	for k := range s.seen {
		seen[k] = struct{}{}
	}
	active := s.state == stateActive
	return SessionSnapshot{
		Active:       active,
		SeenSequence: func(seq int) bool { _, ok := seen[seq]; return ok },
	}
}

// Manager coordinates all live transcription sessions. The in-memory
// registry is the source of truth while a session is live; Postgres trails
// it as a write-behind record.
type Manager struct {
	cfg        *config.Config
	repo       repository.Repository
	blobs      blobstore.Store
	stt        transcriber.Transcriber
	dispatcher *notify.Dispatcher
	metrics    *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*liveSession

	reaperCancel context.CancelFunc
	reaperDone   chan struct{}
}

func NewManager(cfg *config.Config, repo repository.Repository, blobs blobstore.Store, stt transcriber.Transcriber, dispatcher *notify.Dispatcher, m *metrics.Metrics) *Manager {
	mgr := &Manager{
		cfg:        cfg,
		repo:       repo,
		blobs:      blobs,
		stt:        stt,
		dispatcher: dispatcher,
		metrics:    m,
		sessions:   make(map[string]*liveSession),
	}
	if cfg.SessionIdleTimeout > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		mgr.reaperCancel = cancel
		mgr.reaperDone = make(chan struct{})
		go mgr.reapIdleSessions(ctx)
	}
	return mgr
}

// StartSession opens a live transcription session for a consultation. It is
// idempotent per consultation: a second start returns the session already
// running.
func (m *Manager) StartSession(ctx context.Context, consultationID string) (string, error) {
	cons, err := m.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrConsultationNotFound, consultationID)
		}
		return "", err
	}
	if cons.Status != repository.ConsultationStatusActive {
		return "", fmt.Errorf("%w: %s", ErrConsultationNotActive, consultationID)
	}

	existing, err := m.repo.GetActiveTranscriptionSession(ctx, consultationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		m.mu.Lock()
		_, live := m.sessions[existing.ID]
		m.mu.Unlock()
		if live {
			slog.Info("transcription session already active; reusing", "session_id", existing.ID, "consultation_id", consultationID)
			return existing.ID, nil
		}
		// Orphan row from a previous process. Close it and start fresh.
		slog.Warn("found orphan transcription session; completing and continuing", "session_id", existing.ID, "consultation_id", consultationID)
		if err := m.repo.CompleteTranscriptionSession(ctx, repository.CompleteTranscriptionSessionInput{
			SessionID:  existing.ID,
			Transcript: existing.Transcript,
			EndedAt:    time.Now().UTC(),
		}); err != nil {
			return "", fmt.Errorf("failed to complete orphan session: %w", err)
		}
	}

	created, err := m.repo.CreateTranscriptionSession(ctx, repository.CreateTranscriptionSessionInput{
		ID:             uuid.NewString(),
		ConsultationID: consultationID,
		StartedAt:      time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.sessions[created.ID] = &liveSession{
		id:             created.ID,
		consultationID: consultationID,
		state:          stateActive,
		seen:           make(map[int]struct{}),
		agg:            newAggregator(),
		lastActivity:   time.Now(),
	}
	m.mu.Unlock()
	m.metrics.ActiveSessions.Inc()

	slog.Info("transcription session started", "session_id", created.ID, "consultation_id", consultationID)
	return created.ID, nil
}

// SessionActive reports whether the session exists and still accepts audio.
func (m *Manager) SessionActive(sessionID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateActive
}

// AcceptChunk validates one metadata+payload pair and, on acceptance, runs
// store, transcribe and aggregate for it in the background. Acceptance never
// blocks on earlier chunks; ordering is restored at the aggregator. Results
// arrive through deliver in completion order.
func (m *Manager) AcceptChunk(ctx context.Context, sessionID string, meta ChunkMetadata, payload []byte, deliver ResultFunc) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	if chunkErr := ValidateChunk(meta, payload, s.snapshot()); chunkErr != nil {
		s.mu.Unlock()
		return chunkErr
	}
	s.seen[meta.SequenceNumber] = struct{}{}
	s.lastActivity = time.Now()
	s.wg.Add(1)
	s.mu.Unlock()

	m.metrics.ChunksReceived.Inc()
	if err := m.repo.InsertChunk(ctx, repository.InsertChunkInput{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		SequenceNumber:  meta.SequenceNumber,
		SizeBytes:       meta.SizeBytes,
		DurationSeconds: meta.DurationSeconds,
		ReceivedAt:      time.Now().UTC(),
	}); err != nil {
		slog.Error("failed to record chunk", "session_id", sessionID, "sequence", meta.SequenceNumber, "error", err)
	}

	go m.processChunk(s, meta, payload, deliver)
	return nil
}

// processChunk runs one chunk through store → transcribe → aggregate.
// A failure marks only this chunk failed; the session keeps going.
func (m *Manager) processChunk(s *liveSession, meta ChunkMetadata, payload []byte, deliver ResultFunc) {
	defer s.wg.Done()
	start := time.Now()
	seq := meta.SequenceNumber
	ctx := context.Background()

	storeCtx, cancelStore := context.WithTimeout(ctx, m.cfg.StoreTimeout)
	locator, err := m.blobs.Put(storeCtx, s.id, seq, payload)
	cancelStore()
	if err != nil {
		slog.Error("chunk storage failed", "session_id", s.id, "sequence", seq, "error", err)
		m.failChunk(s, seq, CodeStorageUnavailable, err, deliver)
		return
	}
	if err := m.repo.UpdateChunkStored(ctx, s.id, seq, locator); err != nil {
		slog.Error("failed to record chunk locator", "session_id", s.id, "sequence", seq, "error", err)
	}

	sttStart := time.Now()
	sttCtx, cancelStt := context.WithTimeout(ctx, m.cfg.TranscribeTimeout)
	text, err := m.stt.Transcribe(sttCtx, payload)
	cancelStt()
	m.metrics.TranscriptionSeconds.Observe(time.Since(sttStart).Seconds())
	if err != nil {
		slog.Error("chunk transcription failed", "session_id", s.id, "sequence", seq, "error", err)
		m.failChunk(s, seq, CodeTranscriptionService, err, deliver)
		return
	}

	s.mu.Lock()
	_, full := s.agg.Append(seq, text)
	s.lastActivity = time.Now()
	s.mu.Unlock()

	if err := m.repo.UpdateChunkOutcome(ctx, s.id, seq, repository.ChunkOutcomeTranscribed, ""); err != nil {
		slog.Error("failed to record chunk outcome", "session_id", s.id, "sequence", seq, "error", err)
	}
	if err := m.repo.UpdateTranscript(ctx, s.id, full); err != nil {
		slog.Error("failed to persist transcript", "session_id", s.id, "error", err)
	}

	elapsed := time.Since(start)
	m.metrics.ChunkProcessingSeconds.Observe(elapsed.Seconds())
	if deliver != nil {
		deliver(ChunkResult{
			SequenceNumber: seq,
			Update: &TranscriptUpdate{
				SequenceNumber: seq,
				Partial:        text,
				Full:           full,
				ProcessingTime: elapsed,
			},
		})
	}
}

func (m *Manager) failChunk(s *liveSession, seq int, code string, cause error, deliver ResultFunc) {
	s.mu.Lock()
	drained, full := s.agg.MarkFailed(seq)
	s.failedSeqs = append(s.failedSeqs, seq)
	s.mu.Unlock()

	m.metrics.ChunksFailed.Inc()
	ctx := context.Background()
	if err := m.repo.UpdateChunkOutcome(ctx, s.id, seq, repository.ChunkOutcomeFailed, cause.Error()); err != nil {
		slog.Error("failed to record chunk failure", "session_id", s.id, "sequence", seq, "error", err)
	}
	if drained != "" {
		if err := m.repo.UpdateTranscript(ctx, s.id, full); err != nil {
			slog.Error("failed to persist transcript", "session_id", s.id, "error", err)
		}
	}

	if deliver == nil {
		return
	}
	deliver(ChunkResult{
		SequenceNumber: seq,
		Err:            &ChunkError{Code: code, Message: cause.Error()},
	})
	// Successors blocked behind the failed sequence may have just drained
	// into the transcript; push them so the client stays current.
	if drained != "" {
		deliver(ChunkResult{
			SequenceNumber: seq,
			Update: &TranscriptUpdate{
				SequenceNumber: seq,
				Partial:        drained,
				Full:           full,
			},
		})
	}
}

// EndSession stops accepting chunks, drains in-flight work, seals the
// session record and dispatches the completion notification.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	switch s.state {
	case stateEnding, stateEnded:
		s.mu.Unlock()
		return ErrSessionAlreadyEnding
	}
	s.state = stateEnding
	s.mu.Unlock()
	slog.Info("transcription session ending; draining in-flight chunks", "session_id", sessionID)

	s.wg.Wait()

	s.mu.Lock()
	s.state = stateEnded
	full := s.agg.Transcript()
	failed := append([]int(nil), s.failedSeqs...)
	s.mu.Unlock()
	sort.Ints(failed)

	if err := m.repo.CompleteTranscriptionSession(ctx, repository.CompleteTranscriptionSessionInput{
		SessionID:       sessionID,
		Transcript:      full,
		FailedSequences: failed,
		EndedAt:         time.Now().UTC(),
	}); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	m.metrics.ActiveSessions.Dec()
	slog.Info("transcription session ended", "session_id", sessionID, "transcript_chars", len(full), "failed_chunks", len(failed))

	go m.notifyComplete(s.consultationID)
	return nil
}

func (m *Manager) notifyComplete(consultationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.NotifyTimeout)
	defer cancel()

	cons, err := m.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		slog.Error("failed to load consultation for notification", "consultation_id", consultationID, "error", err)
		return
	}
	if _, err := m.dispatcher.DispatchSessionComplete(ctx, consultationID, cons.PatientPhone, cons.PatientName); err != nil {
		slog.Error("completion notification failed", "consultation_id", consultationID, "error", err)
	}
}

// Close stops the idle reaper. Live sessions are left to their explicit end
// calls.
func (m *Manager) Close() {
	if m.reaperCancel != nil {
		m.reaperCancel()
		<-m.reaperDone
	}
}

func (m *Manager) reapIdleSessions(ctx context.Context) {
	defer close(m.reaperDone)
	ticker := time.NewTicker(idleReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.endExpiredSessions()
		}
	}
}

func (m *Manager) endExpiredSessions() {
	now := time.Now()
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.state == stateActive && now.Sub(s.lastActivity) > m.cfg.SessionIdleTimeout
		s.mu.Unlock()
		if idle {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		slog.Warn("ending idle transcription session", "session_id", id, "idle_timeout", m.cfg.SessionIdleTimeout)
		if err := m.EndSession(context.Background(), id); err != nil {
			slog.Error("failed to end idle session", "session_id", id, "error", err)
		}
	}
}
