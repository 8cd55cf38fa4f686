// Package upload owns chunked, resumable upload sessions: the session
// state machine, its persistence in the key-value store, and the final
// assembly and dispatch of the complete file to a storage backend.
package upload

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/stashbin/service/internal/backend"
)

// Status is the lifecycle state of an upload session. Transitions are
// monotonic: pending → uploading → completed | aborted. Expiry is a
// read-time interpretation of the store TTL lapsing, not a written state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// ParseStatus validates a stored status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusUploading, StatusCompleted, StatusAborted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown upload status %q", s)
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Session is the persisted record of one chunked upload. Mutated only
// through the Orchestrator; concurrent writers are serialized by the
// store's compare-and-swap on Version.
type Session struct {
	UploadID    string       `json:"uploadId"`
	FileName    string       `json:"fileName"`
	FileSize    int64        `json:"fileSize"`
	FileType    string       `json:"fileType"`
	TotalChunks int          `json:"totalChunks"`
	ChunkSize   int64        `json:"chunkSize"`
	StorageMode backend.Mode `json:"storageMode"`

	// UploadedChunks holds the accepted 0-based chunk indices, sorted.
	UploadedChunks []int `json:"uploadedChunks"`
	// ChunkDigests maps a chunk index (decimal string, for JSON) to the
	// hex SHA-256 of its content, used to detect mismatched resubmission.
	ChunkDigests map[string]string `json:"chunkDigests,omitempty"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int64     `json:"version"`
}

// ChunkDigest returns the recorded digest for index, if any.
func (s *Session) ChunkDigest(index int) (string, bool) {
	d, ok := s.ChunkDigests[strconv.Itoa(index)]
	return d, ok
}

// RecordChunk adds index with its content digest to the accepted set.
// Recording an already-present index is a no-op.
func (s *Session) RecordChunk(index int, digest string) {
	if s.ChunkDigests == nil {
		s.ChunkDigests = make(map[string]string)
	}
	if _, ok := s.ChunkDigests[strconv.Itoa(index)]; ok {
		return
	}
	s.ChunkDigests[strconv.Itoa(index)] = digest
	s.UploadedChunks = append(s.UploadedChunks, index)
	sort.Ints(s.UploadedChunks)
}

// AllChunksPresent reports whether every index in [0, TotalChunks) has
// been accepted.
func (s *Session) AllChunksPresent() bool {
	return len(s.UploadedChunks) == s.TotalChunks
}

// Progress returns the accepted-chunk percentage, capped at 100.
func (s *Session) Progress() int {
	if s.TotalChunks == 0 {
		return 0
	}
	p := len(s.UploadedChunks) * 100 / s.TotalChunks
	if p > 100 {
		p = 100
	}
	return p
}
