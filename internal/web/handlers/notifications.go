package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/znz-systems/triage/internal/store"
	"github.com/znz-systems/triage/internal/web/middleware"
)

const notificationListLimit = 50

// NotificationHandler serves urgent-email notifications.
type NotificationHandler struct {
	notifications store.NotificationStore
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifications store.NotificationStore) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
	}
}

type notificationResponse struct {
	ID        string    `json:"id"`
	EmailID   string    `json:"email_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// HandleList returns the user's newest notifications.
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	notes, err := h.notifications.ListNotificationsByUserID(r.Context(), user.ID, notificationListLimit)
	if err != nil {
		slog.Error("failed to list notifications", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]notificationResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, notificationResponse{
			ID:        n.PublicID.String(),
			EmailID:   n.EmailPublicID.String(),
			Type:      n.Type,
			Message:   n.Message,
			Timestamp: n.Timestamp,
			Read:      n.Read,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMarkRead marks one of the user's notifications as read.
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	idStr := chi.URLParam(r, "notificationID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification ID")
		return
	}

	if err := h.notifications.MarkNotificationRead(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		slog.Error("failed to mark notification read", "user_id", user.ID, "notification_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
