// Package delivery emits delivery intents to the external delivery
// collaborator. The scheduling core hands over (recipients, payload) and
// moves on; transport outcomes never flow back into scheduling decisions.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clubsync/notifier/internal/audience"
	"github.com/clubsync/notifier/internal/notification"
)

// Intent is one occurrence ready for delivery: the resolved recipients plus
// the payload that accompanies the notification.
type Intent struct {
	NotificationID string
	OccurrenceKey  string
	Name           string
	Recipients     []audience.Recipient
	Survey         *notification.Survey
	FiredAt        time.Time
	ReminderSeq    int
}

// Sender accepts delivery intents.
type Sender interface {
	Emit(ctx context.Context, intent Intent) error
}

// PushSender hands intents to the push gateway. Nil-safe: when not
// configured, all methods are no-ops.
type PushSender struct {
	credentialsFile string
	logger          *slog.Logger
	// TODO: wire the gateway client once the push transport account is
	// provisioned; Emit currently logs the intent for development.
}

// NewPushSender creates a sender from a gateway credentials file. Returns
// nil if credentialsFile is empty (delivery disabled).
func NewPushSender(credentialsFile string, logger *slog.Logger) *PushSender {
	if credentialsFile == "" {
		return nil
	}
	return &PushSender{credentialsFile: credentialsFile, logger: logger}
}

// Emit implements Sender.
func (s *PushSender) Emit(ctx context.Context, intent Intent) error {
	if s == nil {
		return nil // no-op when not configured
	}
	if len(intent.Recipients) == 0 {
		return fmt.Errorf("no recipients for %s/%s", intent.NotificationID, intent.OccurrenceKey)
	}
	s.logger.Info("delivery intent emitted",
		"notification_id", intent.NotificationID,
		"occurrence_key", intent.OccurrenceKey,
		"recipients", len(intent.Recipients),
		"reminder_seq", intent.ReminderSeq,
		"survey", intent.Survey != nil)
	return nil
}
