package upload

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stashbin/service/internal/apperror"
	"github.com/stashbin/service/internal/backend"
	"github.com/stashbin/service/internal/middleware"
	"github.com/stashbin/service/internal/quota"
	"github.com/stashbin/service/internal/response"
)

// Handler holds HTTP handlers for the upload endpoints.
type Handler struct {
	svc      *Orchestrator
	guard    *quota.Guard
	backends *backend.Registry
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Orchestrator, guard *quota.Guard, backends *backend.Registry) *Handler {
	return &Handler{svc: svc, guard: guard, backends: backends}
}

// writeError maps a classified error onto the response envelope. Store
// failures hide their detail behind a generic 500.
func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.As(err)
	switch appErr.Kind {
	case apperror.KindValidation:
		if appErr.Status == http.StatusRequestEntityTooLarge {
			response.TooLarge(w, appErr.Message)
			return
		}
		response.BadRequest(w, appErr.Message)
	case apperror.KindAuth:
		response.Unauthorized(w, appErr.Message)
	case apperror.KindNotFound:
		response.NotFound(w, appErr.Message)
	case apperror.KindConflict:
		response.Conflict(w, appErr.Message)
	case apperror.KindRateLimited:
		response.TooManyRequests(w, appErr.Message)
	case apperror.KindUpstream:
		response.BadGateway(w, appErr.Message)
	default:
		response.InternalError(w)
	}
}

// clientIP extracts the caller's IP. chi's RealIP middleware has already
// folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type initResponse struct {
	Success   bool   `json:"success"`
	UploadID  string `json:"uploadId"`
	ChunkSize int64  `json:"chunkSize"`
	// Remaining is present for guest uploads only.
	Remaining *int64 `json:"remaining,omitempty"`
}

// quotaDeniedResponse is the 429 body for an exhausted guest quota.
type quotaDeniedResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Remaining int64  `json:"remaining"`
}

// Init godoc
//
//	@Summary		Initialize an upload session
//	@Description	Validates the file description and creates a resumable chunked upload session.
//	@Tags			uploads
//	@Accept			json
//	@Produce		json
//	@Param			body	body		InitInput	true	"upload description"
//	@Success		200		{object}	initResponse
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		429		{object}	quotaDeniedResponse
//	@Router			/uploads/init [post]
func (h *Handler) Init(w http.ResponseWriter, r *http.Request) {
	var in InitInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	var remaining *int64
	if !middleware.IsAuthenticated(r.Context()) {
		decision, err := h.guard.CheckGuestUpload(r.Context(), clientIP(r), in.FileSize)
		if err != nil {
			if apperror.IsKind(err, apperror.KindRateLimited) {
				response.JSON(w, http.StatusTooManyRequests, quotaDeniedResponse{
					Error: apperror.As(err).Message,
				})
				return
			}
			writeError(w, err)
			return
		}
		rem := decision.Remaining - 1
		remaining = &rem
	}

	result, err := h.svc.Init(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	if remaining != nil {
		h.guard.IncrementGuestCount(r.Context(), clientIP(r))
	}

	response.JSON(w, http.StatusOK, initResponse{
		Success:   true,
		UploadID:  result.UploadID,
		ChunkSize: result.ChunkSize,
		Remaining: remaining,
	})
}

type statusResponse struct {
	Success        bool         `json:"success"`
	UploadID       string       `json:"uploadId"`
	FileName       string       `json:"fileName"`
	FileSize       int64        `json:"fileSize"`
	FileType       string       `json:"fileType"`
	TotalChunks    int          `json:"totalChunks"`
	ChunkSize      int64        `json:"chunkSize"`
	StorageMode    backend.Mode `json:"storageMode"`
	UploadedChunks []int        `json:"uploadedChunks"`
	Status         Status       `json:"status"`
	Progress       int          `json:"progress"`
}

// Status godoc
//
//	@Summary		Get upload session status
//	@Description	Returns the session snapshot; resuming clients use uploadedChunks to skip indices already accepted.
//	@Tags			uploads
//	@Produce		json
//	@Param			uploadId	query		string	true	"upload identifier"
//	@Success		200			{object}	statusResponse
//	@Failure		404			{object}	response.Envelope
//	@Router			/uploads/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	uploadID := r.URL.Query().Get("uploadId")
	if uploadID == "" {
		response.BadRequest(w, "uploadId is required")
		return
	}

	session, err := h.svc.GetStatus(r.Context(), uploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	uploaded := session.UploadedChunks
	if uploaded == nil {
		uploaded = []int{}
	}
	response.JSON(w, http.StatusOK, statusResponse{
		Success:        true,
		UploadID:       session.UploadID,
		FileName:       session.FileName,
		FileSize:       session.FileSize,
		FileType:       session.FileType,
		TotalChunks:    session.TotalChunks,
		ChunkSize:      session.ChunkSize,
		StorageMode:    session.StorageMode,
		UploadedChunks: uploaded,
		Status:         session.Status,
		Progress:       session.Progress(),
	})
}

type chunkResponse struct {
	Success        bool             `json:"success"`
	UploadID       string           `json:"uploadId"`
	ChunkIndex     int              `json:"chunkIndex"`
	UploadedChunks int              `json:"uploadedChunks"`
	TotalChunks    int              `json:"totalChunks"`
	Completed      bool             `json:"completed"`
	Locator        *backend.Locator `json:"locator,omitempty"`
	ETag           string           `json:"etag,omitempty"`
}

// Chunk godoc
//
//	@Summary		Upload one chunk
//	@Description	Accepts the raw chunk body for the given index. When the last index arrives the file is assembled and dispatched to the session's storage backend.
//	@Tags			uploads
//	@Accept			octet-stream
//	@Produce		json
//	@Param			uploadID	path		string	true	"upload identifier"
//	@Param			index		path		int		true	"0-based chunk index"
//	@Success		200			{object}	chunkResponse
//	@Failure		400			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Failure		409			{object}	response.Envelope
//	@Failure		502			{object}	response.Envelope
//	@Router			/uploads/{uploadID}/chunks/{index} [post]
func (h *Handler) Chunk(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.BadRequest(w, "invalid chunk index")
		return
	}

	// Bound the read so an oversized body fails fast instead of buffering.
	data, err := io.ReadAll(io.LimitReader(r.Body, h.svc.ChunkSize()+1))
	if err != nil {
		response.BadRequest(w, "unreadable chunk body")
		return
	}

	result, err := h.svc.AcceptChunk(r.Context(), uploadID, index, data)
	if err != nil {
		writeError(w, err)
		return
	}

	h.writeChunkResult(w, result, index)
}

func (h *Handler) writeChunkResult(w http.ResponseWriter, result *AcceptResult, index int) {
	resp := chunkResponse{
		Success:        true,
		UploadID:       result.Session.UploadID,
		ChunkIndex:     index,
		UploadedChunks: len(result.Session.UploadedChunks),
		TotalChunks:    result.Session.TotalChunks,
		Completed:      result.Completed,
	}
	if result.Stored != nil {
		resp.Locator = &result.Stored.Locator
		resp.ETag = result.Stored.ETagOrCommitRef
	}
	response.JSON(w, http.StatusOK, resp)
}

// Complete godoc
//
//	@Summary		Retry the final dispatch
//	@Description	Re-dispatches a fully buffered upload whose earlier backend dispatch failed, without re-uploading chunks.
//	@Tags			uploads
//	@Produce		json
//	@Param			uploadID	path		string	true	"upload identifier"
//	@Success		200			{object}	chunkResponse
//	@Failure		400			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Failure		502			{object}	response.Envelope
//	@Router			/uploads/{uploadID}/complete [post]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	result, err := h.svc.Complete(r.Context(), uploadID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeChunkResult(w, result, result.Session.TotalChunks-1)
}

// Abort godoc
//
//	@Summary		Abort an upload session
//	@Description	Marks the session aborted and releases its buffered chunks.
//	@Tags			uploads
//	@Produce		json
//	@Param			uploadID	path		string	true	"upload identifier"
//	@Success		200			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Router			/uploads/{uploadID} [delete]
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	if err := h.svc.Abort(r.Context(), uploadID); err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, map[string]string{"uploadId": uploadID})
}

type storageCheckResponse struct {
	Success  bool                                     `json:"success"`
	Backends map[backend.Mode]*backend.ConnectionInfo `json:"backends"`
}

// StorageCheck godoc
//
//	@Summary		Check storage backend connectivity
//	@Description	Runs a connection check against every configured storage backend.
//	@Tags			storage
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	storageCheckResponse
//	@Router			/storage/check [get]
func (h *Handler) StorageCheck(w http.ResponseWriter, r *http.Request) {
	results := make(map[backend.Mode]*backend.ConnectionInfo)
	for _, mode := range h.backends.Modes() {
		b, err := h.backends.Get(mode)
		if err != nil {
			continue
		}
		info, err := b.CheckConnection(r.Context())
		if err != nil {
			info = &backend.ConnectionInfo{Connected: false, Detail: err.Error()}
		}
		results[mode] = info
	}
	response.JSON(w, http.StatusOK, storageCheckResponse{Success: true, Backends: results})
}
