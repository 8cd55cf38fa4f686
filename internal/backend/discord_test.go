package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discordMessageJSON(t *testing.T, attachmentURL string) []byte {
	t.Helper()
	raw, err := json.Marshal(discordMessage{
		ID:        "msg-1",
		ChannelID: "chan-1",
		Attachments: []discordAttachment{
			{ID: "att-1", Filename: "notes.txt", Size: 5, URL: attachmentURL, ContentType: "text/plain"},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestDiscord_Put_WebhookPath(t *testing.T) {
	var gotQuery, gotContentType string
	var gotPayloadJSON string
	var gotFile []byte

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPayloadJSON = r.FormValue("payload_json")
		file, _, err := r.FormFile("files[0]")
		require.NoError(t, err)
		gotFile, _ = io.ReadAll(file)
		_, _ = w.Write(discordMessageJSON(t, "https://cdn.example/att"))
	}))
	defer webhook.Close()

	d := NewDiscord(webhook.URL, "", "")
	result, err := d.Put(context.Background(), "notes.txt", []byte("hello"), "text/plain", nil)
	require.NoError(t, err)

	assert.Equal(t, "wait=true", gotQuery)
	assert.Contains(t, gotContentType, "multipart/form-data")
	assert.Contains(t, gotPayloadJSON, `"filename":"notes.txt"`)
	assert.Equal(t, []byte("hello"), gotFile)

	assert.Equal(t, ModeDiscord, result.Locator.Mode)
	assert.Equal(t, "chan-1", result.Locator.ChannelID)
	assert.Equal(t, "msg-1", result.Locator.MessageID)
	assert.Equal(t, "att-1", result.Locator.AttachmentID)
}

func TestDiscord_WebhookIsExclusive(t *testing.T) {
	var botHits atomic.Int64
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		botHits.Add(1)
		_, _ = w.Write(discordMessageJSON(t, "https://cdn.example/att"))
	}))
	defer bot.Close()

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Non-retryable failure; must NOT fall back to the bot path.
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid Form Body"}`))
	}))
	defer webhook.Close()

	d := NewDiscord(webhook.URL, "bot-token", "chan-1")
	d.apiBase = bot.URL

	_, err := d.Put(context.Background(), "notes.txt", []byte("hello"), "text/plain", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int64(0), botHits.Load(), "webhook failure must not trigger the bot path")
}

func TestDiscord_Put_BotPath(t *testing.T) {
	var gotAuth, gotPath string
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write(discordMessageJSON(t, "https://cdn.example/att"))
	}))
	defer bot.Close()

	d := NewDiscord("", "bot-token", "chan-1")
	d.apiBase = bot.URL

	result, err := d.Put(context.Background(), "notes.txt", []byte("hello"), "text/plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bot bot-token", gotAuth)
	assert.Equal(t, "/channels/chan-1/messages", gotPath)
	assert.Equal(t, "msg-1", result.Locator.MessageID)
}

func TestDiscord_Get_ReResolvesAttachmentURL(t *testing.T) {
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer cdn.Close()

	var lookups atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages/msg-1", func(w http.ResponseWriter, r *http.Request) {
		lookups.Add(1)
		_, _ = w.Write(discordMessageJSON(t, cdn.URL+"/fresh"))
	})
	webhook := httptest.NewServer(mux)
	defer webhook.Close()

	d := NewDiscord(webhook.URL, "", "")
	loc := Locator{Mode: ModeDiscord, ChannelID: "chan-1", MessageID: "msg-1", AttachmentID: "att-1"}

	body, err := d.Get(context.Background(), loc, nil)
	require.NoError(t, err)
	require.NotNil(t, body)
	defer body.Close()

	data, _ := io.ReadAll(body)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(1), lookups.Load(), "get must re-resolve through a message lookup")
}

func TestDiscord_Get_DeletedMessageIsNil(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer webhook.Close()

	d := NewDiscord(webhook.URL, "", "")
	body, err := d.Get(context.Background(), Locator{MessageID: "gone", AttachmentID: "att-1"}, nil)
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestDiscord_Stat(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(discordMessageJSON(t, "https://cdn.example/att"))
	}))
	defer webhook.Close()

	d := NewDiscord(webhook.URL, "", "")
	info, err := d.Stat(context.Background(), Locator{MessageID: "msg-1", AttachmentID: "att-1"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)
}

func TestDiscord_Delete(t *testing.T) {
	var gotMethod, gotPath string
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	d := NewDiscord(webhook.URL, "", "")
	ok := d.Delete(context.Background(), Locator{MessageID: "msg-1"})
	assert.True(t, ok)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/messages/msg-1", gotPath)
}
