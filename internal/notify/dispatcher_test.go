package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

type stubChannel struct {
	recipients []string
	bodies     []string
	sendErr    error
}

func (c *stubChannel) Send(_ context.Context, recipient, body string) (string, error) {
	c.recipients = append(c.recipients, recipient)
	c.bodies = append(c.bodies, body)
	if c.sendErr != nil {
		return "", c.sendErr
	}
	return "SM123", nil
}

func newTestDispatcher(channel Channel, repo *mockNotificationRepo) *Dispatcher {
	return NewDispatcher(channel, repo, metrics.New(prometheus.NewRegistry()), "+91")
}

func TestDispatchSessionComplete_RecordsQueuedNotification(t *testing.T) {
	repo := newMockNotificationRepo()
	channel := &stubChannel{}
	d := newTestDispatcher(channel, repo)

	n, err := d.DispatchSessionComplete(context.Background(), "consult-1", "+919876543210", "Asha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Status != repository.NotificationStatusQueued || n.ProviderMessageID != "SM123" {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one stored notification, got %d", len(repo.inserted))
	}
	if len(channel.bodies) != 1 || !strings.Contains(channel.bodies[0], "Asha") {
		t.Fatalf("unexpected message body: %+v", channel.bodies)
	}
}

func TestDispatchSessionComplete_NormalizesNationalNumber(t *testing.T) {
	repo := newMockNotificationRepo()
	channel := &stubChannel{}
	d := newTestDispatcher(channel, repo)

	if _, err := d.DispatchSessionComplete(context.Background(), "consult-1", "098765 43210", "Asha"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(channel.recipients) != 1 || channel.recipients[0] != "+919876543210" {
		t.Fatalf("unexpected recipient: %+v", channel.recipients)
	}
}

func TestDispatchSessionComplete_KeepsInternationalNumber(t *testing.T) {
	repo := newMockNotificationRepo()
	channel := &stubChannel{}
	d := newTestDispatcher(channel, repo)

	if _, err := d.DispatchSessionComplete(context.Background(), "consult-1", "+44 7700 900123", "Asha"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channel.recipients[0] != "+447700900123" {
		t.Fatalf("unexpected recipient: %q", channel.recipients[0])
	}
}

func TestDispatchSessionComplete_SendFailureStoresFailedRecord(t *testing.T) {
	repo := newMockNotificationRepo()
	channel := &stubChannel{sendErr: errors.New("provider down")}
	d := newTestDispatcher(channel, repo)

	n, err := d.DispatchSessionComplete(context.Background(), "consult-1", "+919876543210", "Asha")
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
	if n.Status != repository.NotificationStatusFailed {
		t.Fatalf("unexpected status: %s", n.Status)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].Status != repository.NotificationStatusFailed {
		t.Fatalf("expected failed record to be stored, got %+v", repo.inserted)
	}
}

func TestDispatchSessionComplete_StoreFailureSurfaces(t *testing.T) {
	repo := newMockNotificationRepo()
	repo.insertErr = errors.New("db down")
	d := newTestDispatcher(&stubChannel{}, repo)

	if _, err := d.DispatchSessionComplete(context.Background(), "consult-1", "+919876543210", "Asha"); err == nil {
		t.Fatal("expected store failure to surface")
	}
}
