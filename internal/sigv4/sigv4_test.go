package sigv4

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test credentials and timestamp from the published AWS signature test
// suite ("get-vanilla").
var (
	testCreds = Credentials{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
		Region:          "us-east-1",
		Service:         "service",
	}
	testTime = time.Date(2015, 8, 30, 12, 36, 0, 0, time.UTC)
)

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u
}

func TestSign_KnownAnswer(t *testing.T) {
	u := mustParse(t, "https://example.amazonaws.com/")

	signed := Sign(http.MethodGet, u, nil, nil, testCreds, testTime)

	want := "AWS4-HMAC-SHA256 " +
		"Credential=AKIDEXAMPLE/20150830/us-east-1/service/aws4_request, " +
		"SignedHeaders=host;x-amz-date, " +
		"Signature=5fa00fa31553b73ebf1942676e86291e8372ff2a2260956d9b8aae1d763fbf31"
	assert.Equal(t, want, signed.Get("Authorization"))
	assert.Equal(t, "20150830T123600Z", signed.Get("X-Amz-Date"))
	assert.Equal(t, "example.amazonaws.com", signed.Get("Host"))
}

func TestSign_Deterministic(t *testing.T) {
	u := mustParse(t, "https://example.amazonaws.com/bucket/key?versionId=abc")
	headers := make(http.Header)
	headers.Set("X-Amz-Content-Sha256", PayloadHash([]byte("hello")))

	first := Sign(http.MethodPut, u, headers, []byte("hello"), testCreds, testTime)
	second := Sign(http.MethodPut, u, headers, []byte("hello"), testCreds, testTime)

	assert.Equal(t, first.Get("Authorization"), second.Get("Authorization"))
}

func TestSign_InputSensitivity(t *testing.T) {
	base := Sign(http.MethodGet, mustParse(t, "https://example.amazonaws.com/a"), nil, nil, testCreds, testTime)

	variants := map[string]http.Header{
		"path": Sign(http.MethodGet, mustParse(t, "https://example.amazonaws.com/b"), nil, nil, testCreds, testTime),
		"query": Sign(http.MethodGet, mustParse(t, "https://example.amazonaws.com/a?x=1"), nil, nil, testCreds, testTime),
		"body": Sign(http.MethodGet, mustParse(t, "https://example.amazonaws.com/a"), nil, []byte("x"), testCreds, testTime),
		"header": func() http.Header {
			h := make(http.Header)
			h.Set("X-Amz-Meta-Extra", "1")
			return Sign(http.MethodGet, mustParse(t, "https://example.amazonaws.com/a"), h, nil, testCreds, testTime)
		}(),
		"method": Sign(http.MethodHead, mustParse(t, "https://example.amazonaws.com/a"), nil, nil, testCreds, testTime),
	}

	for name, signed := range variants {
		assert.NotEqual(t, base.Get("Authorization"), signed.Get("Authorization"), "changing %s must change the signature", name)
	}
}

func TestSign_DoesNotMutateInputHeaders(t *testing.T) {
	headers := make(http.Header)
	headers.Set("Content-Type", "text/plain")

	Sign(http.MethodPut, mustParse(t, "https://example.amazonaws.com/a"), headers, nil, testCreds, testTime)

	assert.Empty(t, headers.Get("Authorization"))
	assert.Empty(t, headers.Get("X-Amz-Date"))
}

func TestCanonicalQuery_SortedAndEncoded(t *testing.T) {
	u := mustParse(t, "https://example.amazonaws.com/?b=2&a=1&a=0&c=a%20b")
	got := canonicalQuery(u)
	assert.Equal(t, "a=0&a=1&b=2&c=a%20b", got)
}

func TestURIEncode(t *testing.T) {
	assert.Equal(t, "/a/b%20c/d~e", uriEncode("/a/b c/d~e", false))
	assert.Equal(t, "a%2Fb", uriEncode("a/b", true))
	assert.Equal(t, "%2A", uriEncode("*", true))
}

func TestPayloadHash_Empty(t *testing.T) {
	assert.Equal(t, EmptyPayloadHash, PayloadHash(nil))
	assert.Equal(t, EmptyPayloadHash, PayloadHash([]byte{}))
}
