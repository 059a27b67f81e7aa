package handlers

import (
	"net/http"
	"time"

	"github.com/znz-systems/triage/internal/models"
	"github.com/znz-systems/triage/internal/web/middleware"
)

type userResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	IMAPEmail      string    `json:"imap_email,omitempty"`
	IMAPConfigured bool      `json:"imap_configured"`
	CreatedAt      time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:             u.PublicID.String(),
		Username:       u.Username,
		Email:          u.Email,
		IMAPEmail:      u.IMAPEmail,
		IMAPConfigured: u.IMAPConfigured,
		CreatedAt:      u.CreatedAt,
	}
}

// HandleMe returns the authenticated user's profile.
func HandleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, newUserResponse(user))
}
