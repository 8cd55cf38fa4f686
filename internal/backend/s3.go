package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/stashbin/service/internal/apperror"
	"github.com/stashbin/service/internal/sigv4"
)

// S3 implements Backend against any S3-compatible object store using
// path-style requests signed with Signature Version 4.
type S3 struct {
	httpClient *retryablehttp.Client
	endpoint   string
	bucket     string
	creds      sigv4.Credentials
}

// NewS3 creates an S3 backend. endpoint is the scheme+host of the store
// (e.g. "http://localhost:9000"); requests address the bucket by path.
func NewS3(endpoint, region, accessKey, secretKey, bucket string) *S3 {
	client := newHTTPClient()
	creds := sigv4.Credentials{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		Region:          region,
		Service:         "s3",
	}

	// Signatures are time-bound, so each retry attempt is re-signed with
	// a fresh timestamp rather than replaying the original Authorization.
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt == 0 {
			return
		}
		hash := req.Header.Get("X-Amz-Content-Sha256")
		if hash == "" {
			hash = sigv4.EmptyPayloadHash
		}
		req.Header = sigv4.SignWithPayloadHash(req.Method, req.URL, req.Header, hash, creds, time.Now())
	}

	return &S3{
		httpClient: client,
		endpoint:   strings.TrimRight(endpoint, "/"),
		bucket:     bucket,
		creds:      creds,
	}
}

// objectURL builds the path-style URL for key within the bucket.
func (s *S3) objectURL(key string) string {
	return s.endpoint + "/" + s.bucket + "/" + escapeKey(key)
}

// escapeKey percent-encodes a key for use in a URL path, keeping slashes.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// do signs and sends one S3 request. body may be nil.
func (s *S3) do(ctx context.Context, method, rawURL string, body []byte, headers http.Header) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperror.Upstream("invalid object URL", err)
	}

	if headers == nil {
		headers = make(http.Header)
	}
	headers.Set("X-Amz-Content-Sha256", sigv4.PayloadHash(body))

	signed := sigv4.Sign(method, u, headers, body, s.creds, time.Now())

	var req *retryablehttp.Request
	if body != nil {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	} else {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, rawURL, nil)
	}
	if err != nil {
		return nil, apperror.Upstream("build request", err)
	}
	req.Header = signed

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Upstream("s3 request failed", err)
	}
	return resp, nil
}

// upstreamError drains the response body into an UpstreamError carrying
// the provider's message.
func upstreamError(resp *http.Response) error {
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return apperror.Upstream(
		fmt.Sprintf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		nil,
	)
}

// Put stores data under hint as the object key.
func (s *S3) Put(ctx context.Context, hint string, data []byte, contentType string, metadata map[string]string) (*PutResult, error) {
	headers := make(http.Header)
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	headers.Set("Content-Length", strconv.Itoa(len(data)))
	for k, v := range metadata {
		headers.Set("X-Amz-Meta-"+k, v)
	}

	resp, err := s.do(ctx, http.MethodPut, s.objectURL(hint), data, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp)
	}

	return &PutResult{
		Locator:         Locator{Mode: ModeS3, Key: hint},
		ETagOrCommitRef: strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

// Get returns the object's bytes, or (nil, nil) when the key is absent.
func (s *S3) Get(ctx context.Context, loc Locator, rng *Range) (io.ReadCloser, error) {
	headers := make(http.Header)
	if rng != nil {
		headers.Set("Range", formatRange(rng))
	}

	resp, err := s.do(ctx, http.MethodGet, s.objectURL(loc.Key), nil, headers)
	if err != nil {
		return nil, err
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

// Delete removes the object, best-effort.
func (s *S3) Delete(ctx context.Context, loc Locator) bool {
	resp, err := s.do(ctx, http.MethodDelete, s.objectURL(loc.Key), nil, nil)
	if err != nil {
		logSwallowed("s3 delete", err)
		return false
	}
	defer resp.Body.Close()
	// S3 DELETE is idempotent: 204 for present and absent keys alike.
	return resp.StatusCode < 300
}

// Stat returns object metadata via a HEAD request, or (nil, nil) when the
// key is absent.
func (s *S3) Stat(ctx context.Context, loc Locator) (*ObjectInfo, error) {
	resp, err := s.do(ctx, http.MethodHead, s.objectURL(loc.Key), nil, nil)
	if err != nil {
		return nil, err
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

// CheckConnection verifies the bucket is reachable with the configured
// credentials.
func (s *S3) CheckConnection(ctx context.Context) (*ConnectionInfo, error) {
	resp, err := s.do(ctx, http.MethodHead, s.endpoint+"/"+s.bucket, nil, nil)
	if err != nil {
		return &ConnectionInfo{Connected: false, Detail: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ConnectionInfo{
			Connected: false,
			Detail:    fmt.Sprintf("bucket check returned %d", resp.StatusCode),
		}, nil
	}
	return &ConnectionInfo{Connected: true, Identity: s.bucket}, nil
}

// formatRange renders an HTTP Range header value.
func formatRange(rng *Range) string {
	if rng.End < 0 {
		return fmt.Sprintf("bytes=%d-", rng.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", rng.Start, rng.End)
}
