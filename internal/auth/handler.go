package auth

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/filedrop/service/internal/response"
)

// emailRegex is a permissive sanity check; real validation happens at delivery.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLen = 8

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type credentialsRequest struct {
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"correct horse battery"`
}

type authData struct {
	Token string   `json:"token" example:"eyJhbGci..."`
	User  userBody `json:"user"`
}

type userBody struct {
	ID           string `json:"id"           example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
	Email        string `json:"email"        example:"ada@example.com"`
	StorageUsed  int64  `json:"storageUsed"  example:"0"`
	StorageLimit int64  `json:"storageLimit" example:"1073741824"`
	CreatedAt    string `json:"createdAt"    example:"2026-02-27T14:48:34Z"`
	UpdatedAt    string `json:"updatedAt"    example:"2026-02-27T14:48:34Z"`
}

// Register godoc
//
//	@Summary		Register new user
//	@Description	Create an account with the default storage quota and issue a JWT token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Email and password"
//	@Success		201		{object}	response.Envelope{data=authData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		response.BadRequest(w, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLen {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}

	token, u, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err == ErrEmailTaken {
		response.Conflict(w, "email already registered")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.Created(w, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Verify credentials and issue a JWT token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		credentialsRequest	true	"Email and password"
//	@Success		200		{object}	response.Envelope{data=authData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	token, u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err == ErrInvalidCredentials {
		response.Unauthorized(w, "invalid email or password")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}
