package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashbin/service/internal/backend"
	"github.com/stashbin/service/internal/config"
	"github.com/stashbin/service/internal/kv"
	appMiddleware "github.com/stashbin/service/internal/middleware"
	"github.com/stashbin/service/internal/quota"
)

// newTestRouter wires the handler the way cmd/api/main.go does.
func newTestRouter(t *testing.T, guestLimit int64) (*chi.Mux, *fakeBackend) {
	t.Helper()
	store := kv.NewMemoryStore()
	fake := &fakeBackend{}
	registry := backend.NewRegistry(&config.Config{PrimaryStorageMode: "s3"})
	registry.Register(backend.ModeS3, fake)

	sessions := NewSessionStore(store, testSessionTTL)
	orch := NewOrchestrator(sessions, registry, testChunkSize, testMaxFileSize)
	guard := quota.NewGuard(store, true, testMaxFileSize, guestLimit)
	h := NewHandler(orch, guard, registry)

	r := chi.NewRouter()
	r.Route("/api/v1/uploads", func(r chi.Router) {
		r.Use(appMiddleware.OptionalAuth("test-secret"))
		r.Post("/init", h.Init)
		r.Get("/status", h.Status)
		r.Post("/{uploadID}/chunks/{index}", h.Chunk)
		r.Post("/{uploadID}/complete", h.Complete)
		r.Delete("/{uploadID}", h.Abort)
	})
	return r, fake
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.RemoteAddr = "10.0.0.1:12345"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHandler_InitAndStatus(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	rec, body := doJSON(t, r, http.MethodPost, "/api/v1/uploads/init", InitInput{
		FileName:    "notes.txt",
		FileSize:    8,
		FileType:    "text/plain",
		TotalChunks: 2,
		StorageMode: "s3",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(testChunkSize), body["chunkSize"])
	uploadID, _ := body["uploadId"].(string)
	require.Len(t, uploadID, 32)

	rec, body = doJSON(t, r, http.MethodGet, "/api/v1/uploads/status?uploadId="+uploadID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, []any{}, body["uploadedChunks"])
}

func TestHandler_StatusUnknown(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	rec, body := doJSON(t, r, http.MethodGet, "/api/v1/uploads/status?uploadId=unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestHandler_ChunkFlow(t *testing.T) {
	r, fake := newTestRouter(t, 10)

	_, body := doJSON(t, r, http.MethodPost, "/api/v1/uploads/init", InitInput{
		FileName: "notes.txt", FileSize: 8, TotalChunks: 2,
	})
	uploadID := body["uploadId"].(string)

	postChunk := func(index int, data string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(http.MethodPost,
			fmt.Sprintf("/api/v1/uploads/%s/chunks/%d", uploadID, index),
			bytes.NewReader([]byte(data)))
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
		return rec, decoded
	}

	rec, chunkBody := postChunk(1, "efgh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, chunkBody["completed"])

	// Oversized chunk body.
	rec, _ = postChunk(0, "toolong")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// Mismatched resubmission while the session is still open.
	rec, _ = postChunk(1, "zzzz")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, chunkBody = postChunk(0, "abcd")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, chunkBody["completed"])
	require.NotNil(t, chunkBody["locator"])
	assert.Equal(t, []byte("abcdefgh"), fake.lastData)

	// The session is terminal once completed; any further submission
	// reads as not found.
	rec, _ = postChunk(0, "zzzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GuestRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, 2)

	init := func() (*httptest.ResponseRecorder, map[string]any) {
		return doJSON(t, r, http.MethodPost, "/api/v1/uploads/init", InitInput{
			FileName: "notes.txt", FileSize: 8, TotalChunks: 2,
		})
	}

	rec, _ := init()
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = init()
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := init()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, float64(0), body["remaining"])
	assert.NotEmpty(t, body["error"])
}

func TestHandler_Abort(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	_, body := doJSON(t, r, http.MethodPost, "/api/v1/uploads/init", InitInput{
		FileName: "notes.txt", FileSize: 8, TotalChunks: 2,
	})
	uploadID := body["uploadId"].(string)

	rec, _ := doJSON(t, r, http.MethodDelete, "/api/v1/uploads/"+uploadID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/v1/uploads/"+uploadID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
