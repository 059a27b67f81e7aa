// Package pipeline runs a mailbox sync: fetch, normalize, classify, store
// new messages and notify on urgent ones.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/znz-systems/triage/internal/classifier"
	"github.com/znz-systems/triage/internal/fetch"
	"github.com/znz-systems/triage/internal/metrics"
	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/normalize"
	"github.com/znz-systems/triage/internal/store"
)

type Fetcher interface {
	Fetch(ctx context.Context, creds fetch.Credentials, max int) ([]fetch.RawMessage, error)
}

type Classifier interface {
	Classify(text string) classifier.Result
}

// StageResult is what happened to one fetched message.
type StageResult struct {
	Inserted bool
	Category models.Category
	Skipped  string
	Notified bool
}

// SyncReport summarizes one sync.
type SyncReport struct {
	Fetched    int
	Inserted   int
	Duplicates int
	Malformed  int
	Notified   int
	Categories map[models.Category]int
}

type Options struct {
	// MaxMessages bounds how many of the newest messages are inspected.
	MaxMessages int
	Alerter     Alerter
}

// Syncer is built once and shared; each Sync call is independent.
type Syncer struct {
	fetcher     Fetcher
	classifier  Classifier
	gate        *Gate
	notifier    *Notifier
	maxMessages int
}

func NewSyncer(fetcher Fetcher, cls Classifier, emails store.EmailStore, notifications store.NotificationStore, opts Options) *Syncer {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = fetch.DefaultMaxMessages
	}
	return &Syncer{
		fetcher:     fetcher,
		classifier:  cls,
		gate:        NewGate(emails),
		notifier:    NewNotifier(notifications, opts.Alerter),
		maxMessages: opts.MaxMessages,
	}
}

// Sync returns the number of newly stored emails.
func (s *Syncer) Sync(ctx context.Context, userID int64, creds fetch.Credentials) (int, error) {
	report, err := s.SyncReport(ctx, userID, creds)
	return report.Inserted, err
}

// SyncReport fetches the newest messages and processes them one at a time.
// Authentication and fetch failures end the sync before anything is
// stored. A message that cannot be parsed is skipped. Store failures stop
// the sync and are returned along with the counts so far.
func (s *Syncer) SyncReport(ctx context.Context, userID int64, creds fetch.Credentials) (SyncReport, error) {
	start := time.Now()
	report := SyncReport{Categories: make(map[models.Category]int)}

	raws, err := s.fetcher.Fetch(ctx, creds, s.maxMessages)
	if err != nil {
		outcome := "error"
		if errors.Is(err, fetch.ErrAuthentication) {
			outcome = "auth_failed"
		}
		metrics.ObserveSync(outcome, time.Since(start))
		return report, fmt.Errorf("fetching mailbox: %w", err)
	}
	report.Fetched = len(raws)

	for _, raw := range raws {
		res, err := s.process(ctx, userID, raw)
		if res.Inserted {
			report.Inserted++
			report.Categories[res.Category]++
		}
		if err != nil {
			metrics.ObserveSync("error", time.Since(start))
			return report, err
		}
		switch res.Skipped {
		case metrics.SkipDuplicate:
			report.Duplicates++
		case metrics.SkipMalformed:
			report.Malformed++
		}
		if res.Notified {
			report.Notified++
		}
	}

	metrics.ObserveSync("ok", time.Since(start))
	slog.InfoContext(ctx, "mailbox sync finished",
		"user_id", userID,
		"fetched", report.Fetched,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"malformed", report.Malformed,
		"notified", report.Notified,
		"duration", time.Since(start),
	)
	return report, nil
}

func (s *Syncer) process(ctx context.Context, userID int64, raw fetch.RawMessage) (StageResult, error) {
	msg, err := normalize.Normalize(raw.Raw)
	if err != nil {
		slog.WarnContext(ctx, "skipping unparseable message", "user_id", userID, "provider_id", raw.ProviderID, "error", err)
		metrics.MessagesSkipped.WithLabelValues(metrics.SkipMalformed).Inc()
		return StageResult{Skipped: metrics.SkipMalformed}, nil
	}

	res := s.classifier.Classify(msg.Text())

	rec, inserted, err := s.gate.Admit(ctx, userID, raw.ProviderID, msg, res)
	if err != nil {
		return StageResult{}, err
	}
	if !inserted {
		metrics.MessagesSkipped.WithLabelValues(metrics.SkipDuplicate).Inc()
		return StageResult{Skipped: metrics.SkipDuplicate}, nil
	}
	metrics.EmailsInserted.WithLabelValues(string(rec.Category)).Inc()

	result := StageResult{Inserted: true, Category: rec.Category}
	result.Notified, err = s.notifier.Notify(ctx, rec)
	return result, err
}
