package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stashbin/service/internal/apperror"
	"github.com/stashbin/service/internal/backend"
	"github.com/stashbin/service/internal/kv"
)

// casAttempts bounds the read-modify-write retry loop when concurrent
// chunk submissions race on the same session record.
const casAttempts = 4

// Orchestrator owns the upload session state machine: initialization,
// status, chunk acceptance, assembly, and dispatch to a storage backend.
type Orchestrator struct {
	sessions    *SessionStore
	backends    *backend.Registry
	chunkSize   int64
	maxFileSize int64
	now         func() time.Time
}

// NewOrchestrator creates an Orchestrator with the deployment's fixed
// chunk size and file-size cap.
func NewOrchestrator(sessions *SessionStore, backends *backend.Registry, chunkSize, maxFileSize int64) *Orchestrator {
	return &Orchestrator{
		sessions:    sessions,
		backends:    backends,
		chunkSize:   chunkSize,
		maxFileSize: maxFileSize,
		now:         time.Now,
	}
}

// ChunkSize returns the deployment's fixed chunk size in bytes.
func (o *Orchestrator) ChunkSize() int64 { return o.chunkSize }

// InitInput is the caller-supplied description of a new upload.
type InitInput struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	FileType    string `json:"fileType"`
	TotalChunks int    `json:"totalChunks"`
	StorageMode string `json:"storageMode"`
}

// InitResult is returned by Init.
type InitResult struct {
	UploadID  string `json:"uploadId"`
	ChunkSize int64  `json:"chunkSize"`
}

// NewUploadID generates a random 128-bit upload identifier, hex-encoded.
func NewUploadID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Init validates the upload description and persists a fresh pending
// session. Unrecognized storage-mode tags normalize to the primary
// backend.
func (o *Orchestrator) Init(ctx context.Context, in InitInput) (*InitResult, error) {
	if in.FileName == "" {
		return nil, apperror.Validation("fileName is required")
	}
	if in.FileSize <= 0 {
		return nil, apperror.Validation("fileSize is required")
	}
	if in.FileSize > o.maxFileSize {
		return nil, apperror.TooLarge(fmt.Sprintf("fileSize exceeds maximum of %d bytes", o.maxFileSize))
	}
	if in.TotalChunks < 1 {
		return nil, apperror.Validation("totalChunks is required")
	}
	total := int64(in.TotalChunks)
	if total*o.chunkSize < in.FileSize || (total-1)*o.chunkSize >= in.FileSize {
		return nil, apperror.Validation(fmt.Sprintf("totalChunks does not match fileSize for %d-byte chunks", o.chunkSize))
	}

	session := &Session{
		UploadID:    NewUploadID(),
		FileName:    in.FileName,
		FileSize:    in.FileSize,
		FileType:    in.FileType,
		TotalChunks: in.TotalChunks,
		ChunkSize:   o.chunkSize,
		StorageMode: o.backends.Normalize(in.StorageMode),
		Status:      StatusPending,
		CreatedAt:   o.now().UTC(),
		Version:     1,
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	return &InitResult{UploadID: session.UploadID, ChunkSize: o.chunkSize}, nil
}

// GetStatus returns the current session snapshot, or NotFound when the
// session is absent or its TTL has lapsed. Resuming clients use the
// snapshot's uploadedChunks to skip indices already accepted.
func (o *Orchestrator) GetStatus(ctx context.Context, uploadID string) (*Session, error) {
	session, _, err := o.sessions.Get(ctx, uploadID)
	return session, err
}

// AcceptResult describes the outcome of a chunk submission.
type AcceptResult struct {
	Session *Session
	// Completed is set when this submission finished the file and the
	// final dispatch to the backend succeeded.
	Completed bool
	// Stored holds the locator when Completed.
	Stored *backend.PutResult
}

// AcceptChunk records one chunk. Resubmitting an index with identical
// content is a no-op; resubmitting with different content is a Conflict.
// When the last missing index arrives, the full file is assembled and
// dispatched to the session's backend.
func (o *Orchestrator) AcceptChunk(ctx context.Context, uploadID string, index int, data []byte) (*AcceptResult, error) {
	if len(data) == 0 {
		return nil, apperror.Validation("chunk body is empty")
	}
	if int64(len(data)) > o.chunkSize {
		return nil, apperror.TooLarge(fmt.Sprintf("chunk exceeds %d bytes", o.chunkSize))
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	var session *Session
	for attempt := 0; ; attempt++ {
		var raw []byte
		var err error
		session, raw, err = o.sessions.Get(ctx, uploadID)
		if err != nil {
			return nil, err
		}
		if session.Status.Terminal() {
			return nil, apperror.NotFound("upload session is closed")
		}
		if index < 0 || index >= session.TotalChunks {
			return nil, apperror.Validation(fmt.Sprintf("chunk index %d outside [0, %d)", index, session.TotalChunks))
		}

		if prev, ok := session.ChunkDigest(index); ok {
			if prev == digest {
				// Idempotent resubmission. Rewrite the buffer so a buffer
				// write lost after an earlier digest commit is repaired.
				if err := o.sessions.PutChunk(ctx, uploadID, index, data); err != nil {
					return nil, err
				}
				return o.maybeFinalize(ctx, session)
			}
			return nil, apperror.Conflict(fmt.Sprintf("chunk %d was already uploaded with different content", index))
		}

		session.RecordChunk(index, digest)
		if session.Status == StatusPending {
			session.Status = StatusUploading
		}
		session.Version++

		err = o.sessions.Swap(ctx, session, raw)
		if err == nil {
			break
		}
		if err == kv.ErrCASMismatch && attempt < casAttempts-1 {
			// Lost the read-modify-write race; re-fetch and reapply.
			continue
		}
		if err == kv.ErrCASMismatch {
			return nil, apperror.Conflict("concurrent update on upload session, retry the chunk")
		}
		return nil, err
	}

	// The buffer is written only after the digest commits; a submission
	// that loses the race conflicts before it can overwrite these bytes.
	if err := o.sessions.PutChunk(ctx, uploadID, index, data); err != nil {
		return nil, err
	}

	return o.maybeFinalize(ctx, session)
}

// maybeFinalize dispatches the assembled file once every chunk index is
// present. On backend failure the session stays `uploading` and the
// buffered chunks are retained, so the final dispatch can be retried
// without re-uploading.
func (o *Orchestrator) maybeFinalize(ctx context.Context, session *Session) (*AcceptResult, error) {
	if !session.AllChunksPresent() {
		return &AcceptResult{Session: session}, nil
	}

	stored, err := o.dispatch(ctx, session)
	if err != nil {
		return nil, err
	}

	session.Status = StatusCompleted
	session.Version++
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	o.sessions.ReleaseChunks(ctx, session.UploadID, session.TotalChunks)

	return &AcceptResult{Session: session, Completed: true, Stored: stored}, nil
}

// dispatch concatenates the buffered chunks strictly in index order and
// puts the full byte sequence to the session's backend.
func (o *Orchestrator) dispatch(ctx context.Context, session *Session) (*backend.PutResult, error) {
	b, err := o.backends.Get(session.StorageMode)
	if err != nil {
		return nil, err
	}

	assembled := make([]byte, 0, session.FileSize)
	for i := 0; i < session.TotalChunks; i++ {
		chunk, err := o.sessions.GetChunk(ctx, session.UploadID, i)
		if err != nil {
			return nil, err
		}
		assembled = append(assembled, chunk...)
	}

	hint := session.UploadID + "/" + session.FileName
	return b.Put(ctx, hint, assembled, session.FileType, map[string]string{
		"upload-id": session.UploadID,
	})
}

// Complete retries the final dispatch of a session whose chunks are all
// buffered but whose earlier dispatch failed.
func (o *Orchestrator) Complete(ctx context.Context, uploadID string) (*AcceptResult, error) {
	session, _, err := o.sessions.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, apperror.NotFound("upload session is closed")
	}
	if !session.AllChunksPresent() {
		return nil, apperror.Validation(fmt.Sprintf("upload incomplete: %d of %d chunks received",
			len(session.UploadedChunks), session.TotalChunks))
	}
	return o.maybeFinalize(ctx, session)
}

// Abort marks the session aborted and releases its buffered chunks. All
// subsequent operations against the uploadId fail with NotFound.
func (o *Orchestrator) Abort(ctx context.Context, uploadID string) error {
	session, _, err := o.sessions.Get(ctx, uploadID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return apperror.NotFound("upload session is closed")
	}

	session.Status = StatusAborted
	session.Version++
	if err := o.sessions.Save(ctx, session); err != nil {
		return err
	}
	o.sessions.ReleaseChunks(ctx, session.UploadID, session.TotalChunks)
	return nil
}
