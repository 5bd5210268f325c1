package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carewire/consultscribe/internal/metrics"
	"github.com/carewire/consultscribe/internal/repository"
	"github.com/google/uuid"
)

// Dispatcher sends the end-of-consultation message and records the delivery
// attempt. The channel is called exactly once per dispatch; retries are an
// external policy.
type Dispatcher struct {
	channel            Channel
	repo               repository.NotificationRepository
	metrics            *metrics.Metrics
	defaultCountryCode string
}

func NewDispatcher(channel Channel, repo repository.NotificationRepository, m *metrics.Metrics, defaultCountryCode string) *Dispatcher {
	return &Dispatcher{
		channel:            channel,
		repo:               repo,
		metrics:            m,
		defaultCountryCode: defaultCountryCode,
	}
}

func (d *Dispatcher) DispatchSessionComplete(ctx context.Context, consultationID, recipient, patientName string) (*repository.Notification, error) {
	now := time.Now().UTC()
	n := &repository.Notification{
		ID:             uuid.NewString(),
		ConsultationID: consultationID,
		Recipient:      d.normalizeRecipient(recipient),
		Body:           transcriptionCompleteMessage(patientName),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	providerID, err := d.channel.Send(ctx, n.Recipient, n.Body)
	if err != nil {
		n.Status = repository.NotificationStatusFailed
		n.ErrorMessage = err.Error()
		d.metrics.NotificationsSent.WithLabelValues(string(n.Status)).Inc()
		slog.Error("notification send failed", "consultation_id", consultationID, "recipient", n.Recipient, "error", err)
		if storeErr := d.repo.InsertNotification(ctx, n); storeErr != nil {
			slog.Error("failed to store failed notification", "notification_id", n.ID, "error", storeErr)
		}
		return n, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	n.Status = repository.NotificationStatusQueued
	n.ProviderMessageID = providerID
	d.metrics.NotificationsSent.WithLabelValues(string(n.Status)).Inc()
	if err := d.repo.InsertNotification(ctx, n); err != nil {
		slog.Error("failed to store notification", "notification_id", n.ID, "provider_message_id", providerID, "error", err)
		return n, err
	}
	slog.Info("notification dispatched", "consultation_id", consultationID, "notification_id", n.ID, "provider_message_id", providerID)
	return n, nil
}

// normalizeRecipient produces an E.164 number, defaulting the country code
// when the caller supplied a bare national number.
func (d *Dispatcher) normalizeRecipient(number string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(number), " ", "")
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	cleaned = strings.TrimLeft(cleaned, "0")
	return d.defaultCountryCode + cleaned
}

func transcriptionCompleteMessage(patientName string) string {
	return fmt.Sprintf(
		"Hello %s, hope you get well soon! Your consultation transcription is complete. "+
			"If you have any doubts regarding what the doctor said and want to revisit anything, "+
			"ping your message back to us.", patientName)
}
