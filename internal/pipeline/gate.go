package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/znz-systems/triage/internal/classifier"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/normalize"
	"github.com/znz-systems/triage/internal/store"
)

// Gate stores a message unless its (user, provider id) pair is already
// present.
type Gate struct {
	emails store.EmailStore
	now    func() time.Time
}

func NewGate(emails store.EmailStore) *Gate {
	return &Gate{emails: emails, now: time.Now}
}

// Admit returns the stored record and true when the message was new. A
// message already stored, or inserted concurrently by another sync, yields
// (nil, false, nil). Store failures are returned unchanged in meaning.
func (g *Gate) Admit(ctx context.Context, userID int64, providerID string, msg normalize.Message, res classifier.Result) (*models.EmailRecord, bool, error) {
	_, err := g.emails.FindEmailByProviderID(ctx, userID, providerID)
	if err == nil {
		return nil, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("checking for email %s: %w", providerID, err)
	}

	now := g.now()
	date := msg.Date
	if date.IsZero() {
		date = now
	}
	body, _ := normalize.Truncate(msg.Body, models.MaxBodyChars)

	rec := &models.EmailRecord{
		UserID:            userID,
		ProviderMessageID: providerID,
		Subject:           msg.Subject,
		Sender:            msg.Sender,
		Date:              date,
		Body:              body,
		Category:          res.Category,
		Confidence:        res.Confidence,
		SyncedAt:          now,
	}

	id, err := g.emails.InsertEmail(ctx, rec)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storing email %s: %w", providerID, err)
	}
	rec.ID = id
	return rec, true, nil
}
