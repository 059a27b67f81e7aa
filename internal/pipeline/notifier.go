package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/znz-systems/triage/internal/metrics"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/store"
)

const alertTimeout = 30 * time.Second

// Alerter delivers an out-of-band alert for a stored urgent email.
type Alerter interface {
	AlertUrgent(ctx context.Context, rec *models.EmailRecord) error
}

// Notifier records a Notification for every newly stored urgent email.
type Notifier struct {
	notifications store.NotificationStore
	alerter       Alerter
	now           func() time.Time
}

// NewNotifier creates a Notifier. alerter may be nil.
func NewNotifier(notifications store.NotificationStore, alerter Alerter) *Notifier {
	return &Notifier{
		notifications: notifications,
		alerter:       alerter,
		now:           time.Now,
	}
}

// UrgentMessage is the text of the notification for an urgent email.
func UrgentMessage(subject string) string {
	return "New Urgent Email: " + subject
}

// Notify must only be called with a record that was just inserted. It
// returns true when a notification was created.
func (n *Notifier) Notify(ctx context.Context, rec *models.EmailRecord) (bool, error) {
	if rec.Category != models.CategoryUrgent {
		return false, nil
	}

	note := &models.Notification{
		UserID:    rec.UserID,
		EmailID:   rec.ID,
		Type:      models.NotificationTypeUrgent,
		Message:   UrgentMessage(rec.Subject),
		Timestamp: n.now(),
	}
	id, err := n.notifications.InsertNotification(ctx, note)
	if err != nil {
		return false, fmt.Errorf("storing notification for email %d: %w", rec.ID, err)
	}
	metrics.NotificationsCreated.Inc()
	slog.InfoContext(ctx, "urgent notification created", "user_id", rec.UserID, "email_id", rec.ID, "notification_id", id)

	if n.alerter != nil {
		go n.alert(context.WithoutCancel(ctx), rec)
	}
	return true, nil
}

func (n *Notifier) alert(ctx context.Context, rec *models.EmailRecord) {
	ctx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	if err := n.alerter.AlertUrgent(ctx, rec); err != nil {
		metrics.AlertsFailed.Inc()
		slog.Error("urgent alert failed", "user_id", rec.UserID, "email_id", rec.ID, "error", err)
	}
}
