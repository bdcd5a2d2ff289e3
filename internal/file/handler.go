package file

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/response"
)

// maxUploadMemory bounds the multipart parser's in-memory buffer; larger
// bodies spill to temp files.
const maxUploadMemory = 32 << 20

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	svc      *Service
	catalog  *Catalog
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service, catalog *Catalog, logger *zap.Logger) *Handler {
	return &Handler{
		svc:     svc,
		catalog: catalog,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores the file under the user's quota. Rejected with 507 when the remaining quota is too small.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"File content"
//	@Success		201		{object}	response.Envelope{data=File}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Failure		507		{object}	response.Envelope
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.BadRequest(w, "invalid multipart body")
		return
	}
	src, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "missing file field")
		return
	}
	defer src.Close()

	res, err := h.svc.Upload(r.Context(), userID, UploadInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        src,
		OnProgress: func(pct int) {
			h.logger.Debug("upload progress",
				zap.String("user_id", userID),
				zap.String("file_name", header.Filename),
				zap.Int("pct", pct))
		},
	})
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		response.InsufficientStorage(w, "storage quota exceeded")
		return
	case errors.Is(err, ErrUploadFailed), errors.Is(err, ErrMetadataWrite):
		h.logger.Error("upload failed", zap.String("user_id", userID), zap.Error(err))
		response.BadGateway(w, "upload failed")
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	response.Created(w, res.File)
}

// List godoc
//
//	@Summary		List files
//	@Description	Returns the user's files, newest first.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]File}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/files [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	files, err := h.svc.List(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, files)
}

// Delete godoc
//
//	@Summary		Delete a file
//	@Description	Removes the object, its metadata record, and the counted bytes. A storage failure leaves everything intact.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"File ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/files/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	fileID := chi.URLParam(r, "id")

	err := h.svc.Delete(r.Context(), userID, fileID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "file not found")
		return
	case errors.Is(err, ErrDeleteFailed):
		h.logger.Error("delete failed", zap.String("user_id", userID),
			zap.String("file_id", fileID), zap.Error(err))
		response.BadGateway(w, "failed to remove file from storage")
		return
	case err != nil:
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]bool{"deleted": true})
}

// Watch godoc
//
//	@Summary		Watch files
//	@Description	Websocket stream. Sends the full listing on connect and again after every change to the user's files.
//	@Tags			files
//	@Security		BearerAuth
//	@Success		101
//	@Failure		401	{object}	response.Envelope
//	@Router			/files/watch [get]
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Read pump: we expect no client messages, but reading is required to
	// notice the close frame and tear the subscription down.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.catalog.Watch(ctx, userID, func(files []File) {
		if err := conn.WriteJSON(files); err != nil {
			cancel()
		}
	})
	if err != nil {
		h.logger.Warn("file watch ended",
			zap.String("user_id", userID), zap.Error(err))
	}
}
