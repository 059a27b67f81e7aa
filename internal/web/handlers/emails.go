package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/store"
	"github.com/znz-systems/triage/internal/web/middleware"
)

const emailListLimit = 100

// EmailHandler serves the stored, classified emails.
type EmailHandler struct {
	emails store.EmailStore
}

// NewEmailHandler creates a new EmailHandler.
func NewEmailHandler(emails store.EmailStore) *EmailHandler {
	return &EmailHandler{
		emails: emails,
	}
}

type emailResponse struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	Sender     string          `json:"sender"`
	Date       time.Time       `json:"date"`
	Body       string          `json:"body"`
	Category   models.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	SyncedAt   time.Time       `json:"synced_at"`
}

// HandleList returns the user's newest emails by message date.
func (h *EmailHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	records, err := h.emails.ListEmailsByUserID(r.Context(), user.ID, emailListLimit)
	if err != nil {
		slog.Error("failed to list emails", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]emailResponse, 0, len(records))
	for _, e := range records {
		out = append(out, emailResponse{
			ID:         e.PublicID.String(),
			Subject:    e.Subject,
			Sender:     e.Sender,
			Date:       e.Date,
			Body:       e.Body,
			Category:   e.Category,
			Confidence: e.Confidence,
			SyncedAt:   e.SyncedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
