// Package backend defines the interface for interchangeable blob-storage
// providers and its concrete implementations. Swap providers by changing
// the mode stored on an upload session — every variant exposes the same
// capability set and the same failure semantics: a nil result means
// "resource absent", a returned error is always a classified
// *apperror.Error, and nothing here panics on provider misbehavior.
package backend

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Mode identifies one storage provider. The set is closed: a session's
// mode is validated and fixed at init time and never re-derived from a
// loose string on later operations.
type Mode string

const (
	// ModeS3 is any S3-compatible object store (MinIO, AWS S3, R2, ...).
	ModeS3 Mode = "s3"
	// ModeDiscord stores files as Discord message attachments.
	ModeDiscord Mode = "discord"
	// ModeHuggingFace stores files as single-file commits in a
	// HuggingFace dataset repository.
	ModeHuggingFace Mode = "huggingface"
	// ModeTelegram is a recognized tag served by an external adapter;
	// this service validates it but does not implement its transport.
	ModeTelegram Mode = "telegram"
)

// ParseMode normalizes a storage-mode tag, falling back to primary for
// unrecognized input.
func ParseMode(s string, primary Mode) Mode {
	switch Mode(s) {
	case ModeS3, ModeDiscord, ModeHuggingFace, ModeTelegram:
		return Mode(s)
	default:
		return primary
	}
}

// Locator is a backend-specific reference sufficient to retrieve or
// delete a stored object later. Only the fields for the locator's Mode
// are populated; callers persist the whole value opaquely.
type Locator struct {
	Mode Mode `json:"mode"`

	// S3-compatible
	Key string `json:"key,omitempty"`

	// Message-attachment (Discord)
	ChannelID    string `json:"channelId,omitempty"`
	MessageID    string `json:"messageId,omitempty"`
	AttachmentID string `json:"attachmentId,omitempty"`

	// Commit-based repository (HuggingFace)
	RepoPath string `json:"repoPath,omitempty"`
}

// PutResult is returned by a successful Put.
type PutResult struct {
	Locator Locator `json:"locator"`
	// ETagOrCommitRef is the provider's integrity/version reference:
	// an ETag for S3, the attachment id for Discord, the commit OID for
	// HuggingFace.
	ETagOrCommitRef string `json:"etag"`
}

// ObjectInfo is returned by Stat.
type ObjectInfo struct {
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ETag        string `json:"etag"`
}

// ConnectionInfo is returned by CheckConnection.
type ConnectionInfo struct {
	Connected bool   `json:"connected"`
	Identity  string `json:"identity,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Range selects a byte range for Get. End < 0 means "to the end".
type Range struct {
	Start int64
	End   int64
}

// Backend is the provider capability set.
type Backend interface {
	// Put stores data under a provider-chosen location derived from hint.
	Put(ctx context.Context, hint string, data []byte, contentType string, metadata map[string]string) (*PutResult, error)
	// Get returns the object's bytes, or (nil, nil) when absent.
	Get(ctx context.Context, loc Locator, rng *Range) (io.ReadCloser, error)
	// Delete removes the object. Best-effort: returns false on failure,
	// never an error. Credential configuration is checked before calling.
	Delete(ctx context.Context, loc Locator) bool
	// Stat returns object metadata, or (nil, nil) when absent.
	Stat(ctx context.Context, loc Locator) (*ObjectInfo, error)
	// CheckConnection verifies the provider is reachable with the
	// configured credentials.
	CheckConnection(ctx context.Context) (*ConnectionInfo, error)
}

// newHTTPClient builds the retrying HTTP client shared by the adapters:
// a small fixed retry budget and bounded timeouts, since provider APIs
// are the dominant source of latency and transient failure.
func newHTTPClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 2 * time.Minute
	client.Logger = nil
	return client
}

// logSwallowed records a best-effort failure that is deliberately not
// surfaced to the caller.
func logSwallowed(op string, err error) {
	log.Printf("backend: %s failed (swallowed): %v", op, err)
}
