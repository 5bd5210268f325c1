package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

type mockNotificationRepo struct {
	byProviderID map[string]*repository.Notification

	inserted    []*repository.Notification
	events      []repository.NotificationStatusEvent
	statusCalls []statusUpdate
	insertErr   error
}

type statusUpdate struct {
	id           string
	status       repository.NotificationStatus
	errorCode    string
	errorMessage string
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{byProviderID: make(map[string]*repository.Notification)}
}

func (m *mockNotificationRepo) InsertNotification(_ context.Context, n *repository.Notification) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, n)
	if n.ProviderMessageID != "" {
		m.byProviderID[n.ProviderMessageID] = n
	}
	return nil
}

func (m *mockNotificationRepo) GetNotificationByProviderID(_ context.Context, providerMessageID string) (*repository.Notification, error) {
	n, ok := m.byProviderID[providerMessageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *mockNotificationRepo) AppendStatusEvent(_ context.Context, event repository.NotificationStatusEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotificationRepo) UpdateNotificationStatus(_ context.Context, id string, status repository.NotificationStatus, errorCode, errorMessage string) error {
	m.statusCalls = append(m.statusCalls, statusUpdate{id: id, status: status, errorCode: errorCode, errorMessage: errorMessage})
	if n, ok := m.byProviderID[m.providerIDFor(id)]; ok {
		n.Status = status
	}
	return nil
}

func (m *mockNotificationRepo) providerIDFor(notificationID string) string {
	for providerID, n := range m.byProviderID {
		if n.ID == notificationID {
			return providerID
		}
	}
	return ""
}

func (m *mockNotificationRepo) seed(providerMessageID string, status repository.NotificationStatus) *repository.Notification {
	n := &repository.Notification{
		ID:                "notif-" + providerMessageID,
		ConsultationID:    "consult-1",
		Recipient:         "+919876543210",
		ProviderMessageID: providerMessageID,
		Status:            status,
	}
	m.byProviderID[providerMessageID] = n
	return n
}

func newTestReconciler(repo *mockNotificationRepo) *Reconciler {
	return NewReconciler(repo, metrics.New(prometheus.NewRegistry()))
}

func TestRecordStatusCallback_UnknownProviderID(t *testing.T) {
	repo := newMockNotificationRepo()
	r := newTestReconciler(repo)

	err := r.RecordStatusCallback(context.Background(), "SM-unknown", "delivered", "", "")
	if !errors.Is(err, ErrUnknownNotification) {
		t.Fatalf("expected ErrUnknownNotification, got %v", err)
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected no history events, got %d", len(repo.events))
	}
}

func TestRecordStatusCallback_OutOfOrderCallbacksConvergeOnHighestRank(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.seed("SM1", repository.NotificationStatusQueued)
	r := newTestReconciler(repo)

	// The provider posts delivered, then a late sent, then read.
	for _, raw := range []string{"delivered", "sent", "read"} {
		if err := r.RecordStatusCallback(context.Background(), "SM1", raw, "", ""); err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
	}

	if len(repo.events) != 3 {
		t.Fatalf("expected every callback in the history, got %d", len(repo.events))
	}
	if repo.events[1].Status != "sent" {
		t.Fatalf("history out of receipt order: %+v", repo.events)
	}
	// Only delivered and read advance the record; the late sent does not.
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected two status updates, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[len(repo.statusCalls)-1].status != repository.NotificationStatusRead {
		t.Fatalf("unexpected final status: %+v", repo.statusCalls)
	}
}

func TestRecordStatusCallback_TerminalStatusCarriesErrorDetail(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.seed("SM2", repository.NotificationStatusSent)
	r := newTestReconciler(repo)

	if err := r.RecordStatusCallback(context.Background(), "SM2", "failed", "63016", "channel not reachable"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.statusCalls) != 1 {
		t.Fatalf("expected one status update, got %d", len(repo.statusCalls))
	}
	got := repo.statusCalls[0]
	if got.status != repository.NotificationStatusFailed || got.errorCode != "63016" || got.errorMessage != "channel not reachable" {
		t.Fatalf("unexpected update: %+v", got)
	}
}

func TestRecordStatusCallback_CallbackAfterTerminalIsRecordedButIgnored(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.seed("SM3", repository.NotificationStatusUndelivered)
	r := newTestReconciler(repo)

	if err := r.RecordStatusCallback(context.Background(), "SM3", "delivered", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.events) != 1 {
		t.Fatalf("expected the raw event in the history, got %d", len(repo.events))
	}
	if len(repo.statusCalls) != 0 {
		t.Fatalf("expected no status update after terminal state, got %+v", repo.statusCalls)
	}
}

func TestRecordStatusCallback_UnknownStatusStringDegrades(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.seed("SM4", repository.NotificationStatusSent)
	r := newTestReconciler(repo)

	if err := r.RecordStatusCallback(context.Background(), "SM4", "carrier_failure", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.statusCalls) != 1 || repo.statusCalls[0].status != repository.NotificationStatusFailed {
		t.Fatalf("expected degrade to failed, got %+v", repo.statusCalls)
	}
}
