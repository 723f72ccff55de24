package auth

import (
	"net/http"

	"github.com/gallery/service/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct{}

// NewHandler creates a new auth Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Session godoc
//
//	@Summary		Current session
//	@Description	Returns the caller's verified identity. Mount behind RequireAuth.
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=Session}
//	@Failure		401	{object}	response.Envelope
//	@Router			/auth/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	c, ok := ClaimsFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "authorization token required")
		return
	}
	response.OK(w, SessionOf(c))
}
