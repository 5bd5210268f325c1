package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/repository"
)

// ErrUnknownNotification means a callback referenced a provider message id
// we never recorded. Logged, never fatal.
var ErrUnknownNotification = errors.New("unknown notification")

// Reconciler consumes asynchronous delivery callbacks and advances the
// notification record monotonically. Callbacks arrive in arbitrary order;
// every raw event lands in the history and the current status only ever
// moves to the highest rank seen.
type Reconciler struct {
	repo    repository.NotificationRepository
	metrics *metrics.Metrics
}

func NewReconciler(repo repository.NotificationRepository, m *metrics.Metrics) *Reconciler {
	return &Reconciler{repo: repo, metrics: m}
}

func (r *Reconciler) RecordStatusCallback(ctx context.Context, providerMessageID, rawStatus, errorCode, errorMessage string) error {
	r.metrics.StatusCallbacks.Inc()

	n, err := r.repo.GetNotificationByProviderID(ctx, providerMessageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("status callback for unknown notification", "provider_message_id", providerMessageID, "status", rawStatus)
			return fmt.Errorf("%w: provider message id %s", ErrUnknownNotification, providerMessageID)
		}
		return err
	}

	if err := r.repo.AppendStatusEvent(ctx, repository.NotificationStatusEvent{
		NotificationID: n.ID,
		Status:         rawStatus,
		ErrorCode:      errorCode,
		ErrorMessage:   errorMessage,
		ReceivedAt:     time.Now().UTC(),
	}); err != nil {
		return err
	}

	incoming, known := ParseStatus(rawStatus)
	if !known {
		slog.Warn("unknown provider status", "provider_message_id", providerMessageID, "status", rawStatus)
		incoming = repository.NotificationStatusQueued
		if strings.Contains(strings.ToLower(rawStatus), "fail") {
			incoming = repository.NotificationStatusFailed
		}
	}

	next, anomaly := Advance(n.Status, incoming)
	if anomaly {
		slog.Warn("out-of-rank status callback",
			"notification_id", n.ID,
			"provider_message_id", providerMessageID,
			"current", n.Status,
			"incoming", incoming)
	}
	if next == n.Status {
		return nil
	}

	code, msg := "", ""
	if IsTerminal(next) {
		code, msg = errorCode, errorMessage
	}
	if err := r.repo.UpdateNotificationStatus(ctx, n.ID, next, code, msg); err != nil {
		return err
	}
	slog.Info("notification status advanced", "notification_id", n.ID, "from", n.Status, "to", next)
	return nil
}
