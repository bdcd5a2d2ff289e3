package user

import (
	"net/http"

	"github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/quota"
	"github.com/filedrop/service/internal/response"
)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc    *Service
	ledger *quota.Ledger
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service, ledger *quota.Ledger) *Handler {
	return &Handler{svc: svc, ledger: ledger}
}

// GetMe godoc
//
//	@Summary		Get current user
//	@Description	Returns the profile of the currently authenticated user, including storage counters.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetByID(r.Context(), userID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// GetStorage godoc
//
//	@Summary		Get storage usage
//	@Description	Returns the bytes used and the byte limit for the current user.
//	@Tags			users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=quota.Usage}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/users/me/storage [get]
func (h *Handler) GetStorage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	usage, err := h.ledger.Current(r.Context(), userID)
	if err != nil {
		if err == quota.ErrNoAccount {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, usage)
}
