package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/stashbin/service/internal/apperror"
)

const discordAPIBase = "https://discord.com/api/v10"

// Discord implements Backend by storing files as message attachments.
// Delivery goes through either a preconfigured webhook or a bot token +
// channel; the webhook takes fixed precedence when both are configured,
// and the selection is exclusive — a webhook failure never falls back to
// the bot path within the same call.
//
// Attachment URLs issued by the provider expire (~24h), so Get re-resolves
// the current URL through an authenticated message lookup instead of
// caching the URL from Put.
type Discord struct {
	httpClient *retryablehttp.Client
	webhookURL string
	botToken   string
	channelID  string
	apiBase    string
}

// NewDiscord creates a Discord backend from whichever delivery mechanism
// is configured.
func NewDiscord(webhookURL, botToken, channelID string) *Discord {
	return &Discord{
		httpClient: newHTTPClient(),
		webhookURL: strings.TrimRight(webhookURL, "/"),
		botToken:   botToken,
		channelID:  channelID,
		apiBase:    discordAPIBase,
	}
}

// useWebhook reports whether the webhook path is selected.
func (d *Discord) useWebhook() bool { return d.webhookURL != "" }

type discordAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

type discordMessage struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	Attachments []discordAttachment `json:"attachments"`
}

// do sends one request with the bot Authorization header when the bot
// path is active. Webhook URLs carry their own token.
func (d *Discord) do(ctx context.Context, method, url string, body []byte, contentType string) (*http.Response, error) {
	var req *retryablehttp.Request
	var err error
	if body != nil {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, url, body)
	} else {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, apperror.Upstream("build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !d.useWebhook() && d.botToken != "" {
		req.Header.Set("Authorization", "Bot "+d.botToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Upstream("discord request failed", err)
	}
	return resp, nil
}

// multipartUpload renders the provider's upload form: a payload_json
// sidecar describing the attachment, then the file bytes as files[0].
func multipartUpload(fileName string, data []byte, contentType string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	payload := map[string]any{
		"attachments": []map[string]any{
			{"id": 0, "filename": fileName},
		},
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("payload_json", string(payloadJSON)); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[0]"; filename=%q`, fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Put uploads data as a message attachment named after hint.
func (d *Discord) Put(ctx context.Context, hint string, data []byte, contentType string, _ map[string]string) (*PutResult, error) {
	body, formContentType, err := multipartUpload(hint, data, contentType)
	if err != nil {
		return nil, apperror.Upstream("encode upload form", err)
	}

	var url string
	if d.useWebhook() {
		// wait=true makes the webhook return the created message.
		url = d.webhookURL + "?wait=true"
	} else {
		url = d.apiBase + "/channels/" + d.channelID + "/messages"
	}

	resp, err := d.do(ctx, http.MethodPost, url, body, formContentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp)
	}

	var msg discordMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, apperror.Upstream("decode message response", err)
	}
	if len(msg.Attachments) == 0 {
		return nil, apperror.Upstream("message created without attachment", nil)
	}

	att := msg.Attachments[0]
	return &PutResult{
		Locator: Locator{
			Mode:         ModeDiscord,
			ChannelID:    msg.ChannelID,
			MessageID:    msg.ID,
			AttachmentID: att.ID,
		},
		ETagOrCommitRef: att.ID,
	}, nil
}

// lookupMessage fetches the message holding the attachment, returning
// (nil, nil) when the message no longer exists.
func (d *Discord) lookupMessage(ctx context.Context, loc Locator) (*discordMessage, error) {
	var url string
	if d.useWebhook() {
		url = d.webhookURL + "/messages/" + loc.MessageID
	} else {
		url = d.apiBase + "/channels/" + loc.ChannelID + "/messages/" + loc.MessageID
	}

	resp, err := d.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamError(resp)
	}

	var msg discordMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, apperror.Upstream("decode message lookup", err)
	}
	return &msg, nil
}

// attachment finds the locator's attachment in a message.
func attachment(msg *discordMessage, loc Locator) *discordAttachment {
	for i := range msg.Attachments {
		if msg.Attachments[i].ID == loc.AttachmentID {
			return &msg.Attachments[i]
		}
	}
	return nil
}

// Get re-resolves the attachment's current URL and streams its content.
func (d *Discord) Get(ctx context.Context, loc Locator, rng *Range) (io.ReadCloser, error) {
	msg, err := d.lookupMessage(ctx, loc)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	att := attachment(msg, loc)
	if att == nil {
		return nil, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return nil, apperror.Upstream("build attachment request", err)
	}
	if rng != nil {
		req.Header.Set("Range", formatRange(rng))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Upstream("fetch attachment", err)
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

// Delete removes the message (and with it the attachment), best-effort.
func (d *Discord) Delete(ctx context.Context, loc Locator) bool {
	var url string
	if d.useWebhook() {
		url = d.webhookURL + "/messages/" + loc.MessageID
	} else {
		url = d.apiBase + "/channels/" + loc.ChannelID + "/messages/" + loc.MessageID
	}

	resp, err := d.do(ctx, http.MethodDelete, url, nil, "")
	if err != nil {
		logSwallowed("discord delete", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 300 || resp.StatusCode == http.StatusNotFound
}

// Stat returns the attachment's size and content type from a message
// lookup, or (nil, nil) when message or attachment is gone.
func (d *Discord) Stat(ctx context.Context, loc Locator) (*ObjectInfo, error) {
	msg, err := d.lookupMessage(ctx, loc)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	att := attachment(msg, loc)
	if att == nil {
		return nil, nil
	}
	return &ObjectInfo{
		Size:        att.Size,
		ContentType: att.ContentType,
		ETag:        att.ID,
	}, nil
}

// CheckConnection verifies the configured delivery mechanism: the webhook
// object for the webhook path, the bot identity for the bot path.
func (d *Discord) CheckConnection(ctx context.Context) (*ConnectionInfo, error) {
	var url string
	if d.useWebhook() {
		url = d.webhookURL
	} else {
		url = d.apiBase + "/users/@me"
	}

	resp, err := d.do(ctx, http.MethodGet, url, nil, "")
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
		Name     string `json:"name"`
		Username string `json:"username"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&identity)
	name := identity.Username
	if name == "" {
		name = identity.Name
	}
	return &ConnectionInfo{Connected: true, Identity: name}, nil
}
