package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/znz-systems/triage/internal/account"
	"github.com/znz-systems/triage/internal/fetch"
	"github.com/znz-systems/triage/internal/metrics"
	"github.com/znz-systems/triage/internal/synclock"
	"github.com/znz-systems/triage/internal/web/middleware"
)

// Syncer runs one mailbox sync and reports how many emails were stored.
type Syncer interface {
	Sync(ctx context.Context, userID int64, creds fetch.Credentials) (int, error)
}

// IMAPHandler serves mail-account setup and manual sync.
type IMAPHandler struct {
	accounts *account.Service
	syncer   Syncer
	locks    synclock.Locker
}

// NewIMAPHandler creates a new IMAPHandler.
func NewIMAPHandler(accounts *account.Service, syncer Syncer, locks synclock.Locker) *IMAPHandler {
	return &IMAPHandler{
		accounts: accounts,
		syncer:   syncer,
		locks:    locks,
	}
}

type imapSetupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type syncResponse struct {
	Message     string `json:"message"`
	SyncedCount int    `json:"synced_count"`
}

// HandleSetup stores the user's IMAP address and sealed password.
func (h *IMAPHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req imapSetupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.Configure(r.Context(), user, req.Email, req.Password); err != nil {
		if errors.Is(err, account.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to configure imap", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("imap configured", "user_id", user.ID)
	writeJSON(w, http.StatusOK, messageResponse{Message: "IMAP configured successfully"})
}

// HandleSync runs a sync for the authenticated user. Only one sync per user
// runs at a time.
func (h *IMAPHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	if !user.IMAPConfigured {
		writeError(w, http.StatusBadRequest, "IMAP not configured")
		return
	}

	release, err := h.locks.Acquire(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, synclock.ErrSyncInProgress) {
			metrics.SyncsTotal.WithLabelValues("conflict").Inc()
			writeError(w, http.StatusConflict, "a sync is already in progress")
			return
		}
		slog.Error("failed to acquire sync lock", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer release()

	creds, err := h.accounts.Credentials(user)
	if err != nil {
		if errors.Is(err, account.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "IMAP not configured")
			return
		}
		slog.Error("failed to open imap credentials", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	count, err := h.syncer.Sync(r.Context(), user.ID, creds)
	if err != nil {
		if errors.Is(err, fetch.ErrAuthentication) {
			slog.Warn("imap authentication failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusBadGateway, "IMAP authentication failed")
			return
		}
		slog.Error("sync failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Message:     "Emails synced successfully",
		SyncedCount: count,
	})
}
