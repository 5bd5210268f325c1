package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/carewire/consultscribe/internal/config"
	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/notify"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

type mockRepository struct {
	mu sync.Mutex

	consultations map[string]*repository.Consultation
	activeSession *repository.TranscriptionSession

	createCalls   []repository.CreateTranscriptionSessionInput
	completeCalls []repository.CompleteTranscriptionSessionInput
	insertChunks  []repository.InsertChunkInput
	outcomes      map[int]repository.ChunkOutcome
	transcript    string
	notifications []*repository.Notification
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		consultations: map[string]*repository.Consultation{
			"consult-1": {ID: "consult-1", PatientName: "Asha", PatientPhone: "+919876543210", Status: repository.ConsultationStatusActive},
		},
		outcomes: make(map[int]repository.ChunkOutcome),
	}
}

func (m *mockRepository) Ping(_ context.Context) error { return nil }

func (m *mockRepository) GetConsultation(_ context.Context, id string) (*repository.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consultations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (m *mockRepository) GetActiveTranscriptionSession(_ context.Context, consultationID string) (*repository.TranscriptionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeSession != nil && m.activeSession.ConsultationID == consultationID {
		return m.activeSession, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepository) CreateTranscriptionSession(_ context.Context, input repository.CreateTranscriptionSessionInput) (*repository.TranscriptionSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, input)
	created := &repository.TranscriptionSession{
		ID:             input.ID,
		ConsultationID: input.ConsultationID,
		Status:         repository.TranscriptionSessionStatusActive,
		StartedAt:      input.StartedAt,
	}
	m.activeSession = created
	return created, nil
}

func (m *mockRepository) UpdateTranscript(_ context.Context, _, transcript string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcript = transcript
	return nil
}

func (m *mockRepository) CompleteTranscriptionSession(_ context.Context, input repository.CompleteTranscriptionSessionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeCalls = append(m.completeCalls, input)
	m.activeSession = nil
	return nil
}

func (m *mockRepository) InsertChunk(_ context.Context, input repository.InsertChunkInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertChunks = append(m.insertChunks, input)
	return nil
}

func (m *mockRepository) UpdateChunkStored(_ context.Context, _ string, sequence int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[sequence] = repository.ChunkOutcomeStored
	return nil
}

func (m *mockRepository) UpdateChunkOutcome(_ context.Context, _ string, sequence int, outcome repository.ChunkOutcome, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[sequence] = outcome
	return nil
}

func (m *mockRepository) InsertNotification(_ context.Context, n *repository.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockRepository) GetNotificationByProviderID(_ context.Context, _ string) (*repository.Notification, error) {
	return nil, repository.ErrNotFound
}

func (m *mockRepository) AppendStatusEvent(_ context.Context, _ repository.NotificationStatusEvent) error {
	return nil
}

func (m *mockRepository) UpdateNotificationStatus(_ context.Context, _ string, _ repository.NotificationStatus, _, _ string) error {
	return nil
}

func (m *mockRepository) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *mockRepository) outcomeOf(sequence int) repository.ChunkOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[sequence]
}

type mockStore struct {
	mu       sync.Mutex
	putCalls int
	failSeqs map[int]struct{}
}

func (m *mockStore) Put(_ context.Context, sessionID string, sequence int, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if _, fail := m.failSeqs[sequence]; fail {
		return "", errors.New("disk full")
	}
	return fmt.Sprintf("%s/chunk-%06d.bin", sessionID, sequence), nil
}

// mockTranscriber echoes the payload back as text, after an optional delay
// so tests can keep chunks in flight.
type mockTranscriber struct {
	delay       time.Duration
	failPayload string
}

func (m *mockTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.failPayload != "" && string(audio) == m.failPayload {
		return "", errors.New("recognizer unavailable")
	}
	return string(audio), nil
}

type mockChannel struct {
	mu        sync.Mutex
	sendCalls []string
}

func (m *mockChannel) Send(_ context.Context, recipient, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls = append(m.sendCalls, recipient)
	return fmt.Sprintf("SM%04d", len(m.sendCalls)), nil
}

func newTestManager(repo *mockRepository, store *mockStore, stt *mockTranscriber, channel *mockChannel) *Manager {
	cfg := &config.Config{
		Env:                "test",
		StoreTimeout:       time.Second,
		TranscribeTimeout:  2 * time.Second,
		NotifyTimeout:      time.Second,
		DefaultCountryCode: "+91",
	}
	m := metrics.New(prometheus.NewRegistry())
	dispatcher := notify.NewDispatcher(channel, repo, m, cfg.DefaultCountryCode)
	return NewManager(cfg, repo, store, stt, dispatcher, m)
}

func metaFor(seq int, payload string) ChunkMetadata {
	return ChunkMetadata{SequenceNumber: seq, SizeBytes: len(payload), DurationSeconds: 8}
}

func TestStartSession_UnknownConsultation(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	_, err := manager.StartSession(context.Background(), "consult-missing")
	if !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("expected ErrConsultationNotFound, got %v", err)
	}
}

func TestStartSession_ClosedConsultation(t *testing.T) {
	repo := newMockRepository()
	repo.consultations["consult-closed"] = &repository.Consultation{
		ID: "consult-closed", Status: repository.ConsultationStatusClosed,
	}
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	_, err := manager.StartSession(context.Background(), "consult-closed")
	if !errors.Is(err, ErrConsultationNotActive) {
		t.Fatalf("expected ErrConsultationNotActive, got %v", err)
	}
}

func TestStartSession_SecondStartReusesLiveSession(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	first, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same session id, got %s and %s", first, second)
	}
	if len(repo.createCalls) != 1 {
		t.Fatalf("expected one create call, got %d", len(repo.createCalls))
	}
}

func TestStartSession_CompletesOrphanRowFromDeadProcess(t *testing.T) {
	repo := newMockRepository()
	repo.activeSession = &repository.TranscriptionSession{
		ID:             "orphan-1",
		ConsultationID: "consult-1",
		Status:         repository.TranscriptionSessionStatusActive,
		Transcript:     "partial text",
	}
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "orphan-1" {
		t.Fatal("expected a fresh session, got the orphan id")
	}
	if len(repo.completeCalls) != 1 || repo.completeCalls[0].SessionID != "orphan-1" {
		t.Fatalf("expected the orphan to be completed, got %+v", repo.completeCalls)
	}
}

func TestAcceptChunk_UnknownSession(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	err := manager.AcceptChunk(context.Background(), "nope", metaFor(0, "abc"), []byte("abc"), nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAcceptChunk_DuplicateSequenceRejected(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.AcceptChunk(context.Background(), id, metaFor(0, "abc"), []byte("abc"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = manager.AcceptChunk(context.Background(), id, metaFor(0, "abc"), []byte("abc"), nil)
	var chunkErr *ChunkError
	if !errors.As(err, &chunkErr) || chunkErr.Code != CodeDuplicateOrStaleSequence {
		t.Fatalf("expected %s, got %v", CodeDuplicateOrStaleSequence, err)
	}
}

func TestEndSession_DrainsInFlightChunksAndNotifies(t *testing.T) {
	repo := newMockRepository()
	channel := &mockChannel{}
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{delay: 50 * time.Millisecond}, channel)

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for seq, text := range []string{"Hello", "there", "world"} {
		if err := manager.AcceptChunk(context.Background(), id, metaFor(seq, text), []byte(text), nil); err != nil {
			t.Fatalf("unexpected error for chunk %d: %v", seq, err)
		}
	}

	if err := manager.EndSession(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.completeCalls) != 1 {
		t.Fatalf("expected one complete call, got %d", len(repo.completeCalls))
	}
	got := repo.completeCalls[0]
	if got.Transcript != "Hello there world" {
		t.Fatalf("unexpected final transcript: %q", got.Transcript)
	}
	if len(got.FailedSequences) != 0 {
		t.Fatalf("unexpected failed sequences: %v", got.FailedSequences)
	}
	if manager.SessionActive(id) {
		t.Fatal("expected session to be gone after end")
	}

	waitUntil(t, time.Second, func() bool { return repo.notificationCount() == 1 }, "expected a completion notification")
	channel.mu.Lock()
	defer channel.mu.Unlock()
	if len(channel.sendCalls) != 1 || channel.sendCalls[0] != "+919876543210" {
		t.Fatalf("unexpected channel sends: %+v", channel.sendCalls)
	}
}

func TestEndSession_WhileEndingReturnsAlreadyEnding(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager.mu.Lock()
	s := manager.sessions[id]
	manager.mu.Unlock()
	s.mu.Lock()
	s.state = stateEnding
	s.mu.Unlock()

	if err := manager.EndSession(context.Background(), id); !errors.Is(err, ErrSessionAlreadyEnding) {
		t.Fatalf("expected ErrSessionAlreadyEnding, got %v", err)
	}
}

func TestProcessChunk_StorageFailureMarksChunkFailedOnly(t *testing.T) {
	repo := newMockRepository()
	store := &mockStore{failSeqs: map[int]struct{}{1: {}}}
	manager := newTestManager(repo, store, &mockTranscriber{}, &mockChannel{})

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var (
		resultsMu sync.Mutex
		results   []ChunkResult
	)
	deliver := func(r ChunkResult) {
		resultsMu.Lock()
		results = append(results, r)
		resultsMu.Unlock()
	}

	for seq, text := range []string{"Hello", "gone", "world"} {
		if err := manager.AcceptChunk(context.Background(), id, metaFor(seq, text), []byte(text), deliver); err != nil {
			t.Fatalf("unexpected error for chunk %d: %v", seq, err)
		}
	}

	if err := manager.EndSession(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := repo.completeCalls[0]
	if got.Transcript != "Hello world" {
		t.Fatalf("unexpected final transcript: %q", got.Transcript)
	}
	if len(got.FailedSequences) != 1 || got.FailedSequences[0] != 1 {
		t.Fatalf("unexpected failed sequences: %v", got.FailedSequences)
	}
	if repo.outcomeOf(1) != repository.ChunkOutcomeFailed {
		t.Fatalf("unexpected outcome for chunk 1: %s", repo.outcomeOf(1))
	}

	resultsMu.Lock()
	defer resultsMu.Unlock()
	var sawStorageError bool
	for _, r := range results {
		if r.Err != nil && r.Err.Code == CodeStorageUnavailable {
			sawStorageError = true
		}
	}
	if !sawStorageError {
		t.Fatalf("expected a %s result, got %+v", CodeStorageUnavailable, results)
	}
}

func TestProcessChunk_TranscriptionFailureDoesNotAbortSession(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{failPayload: "static"}, &mockChannel{})

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for seq, text := range []string{"Hello", "static", "world"} {
		if err := manager.AcceptChunk(context.Background(), id, metaFor(seq, text), []byte(text), nil); err != nil {
			t.Fatalf("unexpected error for chunk %d: %v", seq, err)
		}
	}

	if err := manager.EndSession(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := repo.completeCalls[0]
	if got.Transcript != "Hello world" {
		t.Fatalf("unexpected final transcript: %q", got.Transcript)
	}
	if len(got.FailedSequences) != 1 || got.FailedSequences[0] != 1 {
		t.Fatalf("unexpected failed sequences: %v", got.FailedSequences)
	}
}

func TestIdleReaper_EndsStaleSession(t *testing.T) {
	repo := newMockRepository()
	manager := newTestManager(repo, &mockStore{}, &mockTranscriber{}, &mockChannel{})
	manager.cfg.SessionIdleTimeout = 10 * time.Millisecond

	id, err := manager.StartSession(context.Background(), "consult-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	manager.mu.Lock()
	s := manager.sessions[id]
	manager.mu.Unlock()
	s.mu.Lock()
	s.lastActivity = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	manager.endExpiredSessions()

	if manager.SessionActive(id) {
		t.Fatal("expected idle session to be ended")
	}
	if len(repo.completeCalls) != 1 {
		t.Fatalf("expected one complete call, got %d", len(repo.completeCalls))
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}
