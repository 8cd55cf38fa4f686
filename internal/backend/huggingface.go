package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/stashbin/service/internal/apperror"
)

// HuggingFace implements Backend by committing single files to a dataset
// repository. Put and Delete are expressed as commits against a named
// branch; Get resolves the branch's current file content directly by
// path, so no commit lookup is needed for reads.
type HuggingFace struct {
	httpClient *retryablehttp.Client
	endpoint   string
	token      string
	repo       string // "owner/name"
	branch     string
}

// NewHuggingFace creates a HuggingFace dataset backend.
func NewHuggingFace(endpoint, token, repo, branch string) *HuggingFace {
	return &HuggingFace{
		httpClient: newHTTPClient(),
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		repo:       repo,
		branch:     branch,
	}
}

// commitRecord is one line of the newline-delimited commit payload.
type commitRecord struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// encodeCommit renders the NDJSON commit body: a header record followed
// by one file or deletion record.
func encodeCommit(summary string, op commitRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	header := commitRecord{
		Key:   "header",
		Value: map[string]string{"summary": summary, "description": ""},
	}
	if err := enc.Encode(header); err != nil {
		return nil, err
	}
	if err := enc.Encode(op); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// commit POSTs one commit to the branch and returns the commit OID.
func (h *HuggingFace) commit(ctx context.Context, body []byte) (string, error) {
	url := h.endpoint + "/api/datasets/" + h.repo + "/commit/" + h.branch

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", apperror.Upstream("build commit request", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", apperror.Upstream("commit request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp)
	}

	var result struct {
		CommitOID string `json:"commitOid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", apperror.Upstream("decode commit response", err)
	}
	return result.CommitOID, nil
}

// Put commits data to hint's path on the configured branch.
func (h *HuggingFace) Put(ctx context.Context, hint string, data []byte, _ string, _ map[string]string) (*PutResult, error) {
	body, err := encodeCommit("upload "+hint, commitRecord{
		Key: "file",
		Value: map[string]string{
			"path":     hint,
			"content":  base64.StdEncoding.EncodeToString(data),
			"encoding": "base64",
		},
	})
	if err != nil {
		return nil, apperror.Upstream("encode commit", err)
	}

	oid, err := h.commit(ctx, body)
	if err != nil {
		return nil, err
	}

	return &PutResult{
		Locator:         Locator{Mode: ModeHuggingFace, RepoPath: hint},
		ETagOrCommitRef: oid,
	}, nil
}

// resolveURL addresses the branch's current content for a path.
func (h *HuggingFace) resolveURL(path string) string {
	return h.endpoint + "/datasets/" + h.repo + "/resolve/" + h.branch + "/" + path
}

// Get streams the branch's current content at the locator's path, or
// (nil, nil) when the path does not exist on the branch.
func (h *HuggingFace) Get(ctx context.Context, loc Locator, rng *Range) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, h.resolveURL(loc.RepoPath), nil)
	if err != nil {
		return nil, apperror.Upstream("build resolve request", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	if rng != nil {
		req.Header.Set("Range", formatRange(rng))
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Upstream("resolve request failed", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp)
	}
	return resp.Body, nil
}

// Delete commits a deletion marker for the locator's path, best-effort.
func (h *HuggingFace) Delete(ctx context.Context, loc Locator) bool {
	body, err := encodeCommit("delete "+loc.RepoPath, commitRecord{
		Key:   "deletedFile",
		Value: map[string]string{"path": loc.RepoPath},
	})
	if err != nil {
		logSwallowed("huggingface delete encode", err)
		return false
	}
	if _, err := h.commit(ctx, body); err != nil {
		logSwallowed("huggingface delete", err)
		return false
	}
	return true
}

// Stat returns the resolved file's metadata, or (nil, nil) when absent.
func (h *HuggingFace) Stat(ctx context.Context, loc Locator) (*ObjectInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, h.resolveURL(loc.RepoPath), nil)
	if err != nil {
		return nil, apperror.Upstream("build stat request", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Upstream("stat request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Upstream(fmt.Sprintf("provider returned %d", resp.StatusCode), nil)
	}

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return &ObjectInfo{
		Size:        size,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

// CheckConnection verifies the token against the identity endpoint.
func (h *HuggingFace) CheckConnection(ctx context.Context) (*ConnectionInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/api/whoami-v2", nil)
	if err != nil {
		return &ConnectionInfo{Connected: false, Detail: err.Error()}, nil
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return &ConnectionInfo{Connected: false, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ConnectionInfo{
			Connected: false,
			Detail:    fmt.Sprintf("identity check returned %d", resp.StatusCode),
		}, nil
	}

	var identity struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&identity)
	return &ConnectionInfo{Connected: true, Identity: identity.Name}, nil
}
