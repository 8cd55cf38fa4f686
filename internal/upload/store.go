package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/stashbin/service/internal/apperror"
	"github.com/stashbin/service/internal/kv"
)

// SessionStore persists sessions and buffered chunk bytes in the external
// key-value store. Session reads fail closed: any store failure reads as
// "not found" rather than surfacing infrastructure detail to the upload
// protocol.
type SessionStore struct {
	store kv.Store
	ttl   time.Duration
}

// NewSessionStore creates a SessionStore with the deployment's session TTL.
func NewSessionStore(store kv.Store, ttl time.Duration) *SessionStore {
	return &SessionStore{store: store, ttl: ttl}
}

func sessionKey(uploadID string) string {
	return "upload:" + uploadID
}

func chunkKey(uploadID string, index int) string {
	return fmt.Sprintf("upload:%s:chunk:%d", uploadID, index)
}

// Get returns the session and its raw stored snapshot (for a later
// compare-and-swap). Missing, expired, or unreadable sessions all return
// NotFound.
func (s *SessionStore) Get(ctx context.Context, uploadID string) (*Session, []byte, error) {
	raw, err := s.store.Get(ctx, sessionKey(uploadID))
	if err != nil {
		if err != kv.ErrNotFound {
			log.Printf("upload: session read failed, treating as not found: %v", err)
		}
		return nil, nil, apperror.NotFound("upload session not found or expired")
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		log.Printf("upload: corrupt session %s: %v", uploadID, err)
		return nil, nil, apperror.NotFound("upload session not found or expired")
	}
	if _, err := ParseStatus(string(session.Status)); err != nil {
		return nil, nil, apperror.NotFound("upload session not found or expired")
	}
	return &session, raw, nil
}

// Save writes the session unconditionally with a fresh TTL.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return apperror.Store("encode session", err)
	}
	if err := s.store.Put(ctx, sessionKey(session.UploadID), raw, s.ttl); err != nil {
		return apperror.Store("persist session", err)
	}
	return nil
}

// Swap persists the session only if the stored snapshot still equals old.
// Returns kv.ErrCASMismatch when a concurrent writer got there first;
// callers re-fetch and retry.
func (s *SessionStore) Swap(ctx context.Context, session *Session, old []byte) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return apperror.Store("encode session", err)
	}
	err = s.store.CompareAndSwap(ctx, sessionKey(session.UploadID), old, raw, s.ttl)
	if err == kv.ErrCASMismatch {
		return err
	}
	if err != nil {
		return apperror.Store("persist session", err)
	}
	return nil
}

// PutChunk buffers one chunk's bytes alongside the session.
func (s *SessionStore) PutChunk(ctx context.Context, uploadID string, index int, data []byte) error {
	if err := s.store.Put(ctx, chunkKey(uploadID, index), data, s.ttl); err != nil {
		return apperror.Store("buffer chunk", err)
	}
	return nil
}

// GetChunk returns one buffered chunk's bytes.
func (s *SessionStore) GetChunk(ctx context.Context, uploadID string, index int) ([]byte, error) {
	data, err := s.store.Get(ctx, chunkKey(uploadID, index))
	if err == kv.ErrNotFound {
		return nil, apperror.NotFound(fmt.Sprintf("chunk %d is no longer buffered", index))
	}
	if err != nil {
		return nil, apperror.Store("read chunk", err)
	}
	return data, nil
}

// ReleaseChunks deletes all buffered chunk bytes for a session,
// best-effort.
func (s *SessionStore) ReleaseChunks(ctx context.Context, uploadID string, totalChunks int) {
	for i := 0; i < totalChunks; i++ {
		if err := s.store.Delete(ctx, chunkKey(uploadID, i)); err != nil {
			log.Printf("upload: release chunk %d of %s failed: %v", i, uploadID, err)
		}
	}
}
