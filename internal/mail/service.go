package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/normalize"
	"github.com/znz-systems/triage/internal/store"
)

const excerptChars = 300

// Alerter mails the account owner when an urgent email is stored.
type Alerter struct {
	client *SMTPClient
	users  store.UserStore
}

func NewAlerter(client *SMTPClient, users store.UserStore) *Alerter {
	return &Alerter{
		client: client,
		users:  users,
	}
}

func (a *Alerter) AlertUrgent(ctx context.Context, rec *models.EmailRecord) error {
	user, err := a.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("mail: looking up user %d: %w", rec.UserID, err)
	}

	excerpt, _ := normalize.Truncate(rec.Body, excerptChars)
	body := UrgentAlertBody(rec.Subject, rec.Sender, rec.Date, excerpt)
	if err := a.client.Send(user.Email, "Urgent: "+rec.Subject, body); err != nil {
		return fmt.Errorf("mail: sending alert to %s: %w", user.Email, err)
	}

	slog.InfoContext(ctx, "sent urgent alert",
		"user_id", rec.UserID,
		"email_id", rec.ID,
	)
	return nil
}
