package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	retryBaseDelay = time.Millisecond
	successDelay = 0
	stats.Init()
	os.Exit(m.Run())
}

func testImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0 not a real jpeg"), 0644))
	return path
}

const chatMetadataJSON = `{"title": "Red fox in snow", "description": "A fox in fresh snow",
	"keywords": ["fox", "snow", "winter"], "adobe_stock_category": "1. Animals",
	"shutterstock_category": "Animals/Wildlife"}`

func chatServer(t *testing.T, handler http.HandlerFunc) *chat {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := newChat(Groq, []string{"key-1", "key-2"})
	require.NoError(t, err)
	c.spec.endpoint = srv.URL
	return c
}

func TestChatGetMetadata(t *testing.T) {
	var gotAuth string
	var gotModel string
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": chatMetadataJSON}}},
		})
	})

	md, err := c.GetMetadata(stop.NewToken(), []string{testImage(t)}, "key-1", Options{
		KeywordLimit: 10,
		Priority:     PriorityDetailed,
	})
	require.NoError(t, err)
	assert.Equal(t, "Red fox in snow", md.Title)
	assert.Equal(t, []string{"fox", "snow", "winter"}, md.Tags)
	assert.Equal(t, "Bearer key-1", gotAuth)
	// the display name maps to the wire-level model id
	assert.Equal(t, "meta-llama/llama-4-maverick-17b-128e-instruct", gotModel)
}

func TestChatAuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	})

	_, err := c.GetMetadata(stop.NewToken(), []string{testImage(t)}, "key-1", Options{KeywordLimit: 10})
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatRateLimitParksKeyAndRetries(t *testing.T) {
	var calls atomic.Int32
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down"}})
	})

	_, err := c.GetMetadata(stop.NewToken(), []string{testImage(t)}, "key-1", Options{KeywordLimit: 10})
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, int32(maxAttempts), calls.Load())
	assert.True(t, c.keys.Parked("key-1"))
	assert.False(t, c.keys.Parked("key-2"))
}

func TestChatParkedKeySubstituted(t *testing.T) {
	var gotAuth string
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": chatMetadataJSON}}},
		})
	})
	c.keys.Park("key-1")

	md, err := c.GetMetadata(stop.NewToken(), []string{testImage(t)}, "key-1", Options{KeywordLimit: 10})
	require.NoError(t, err)
	assert.NotNil(t, md)
	assert.Equal(t, "Bearer key-2", gotAuth, "a rate-limited key sits out while an alternative is free")
}

func TestChatServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "oops"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": chatMetadataJSON}}},
		})
	})

	md, err := c.GetMetadata(stop.NewToken(), []string{testImage(t)}, "key-1", Options{KeywordLimit: 10})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.NotNil(t, md)
}

func TestChatStoppedBeforeCall(t *testing.T) {
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected after stop")
	})

	token := stop.NewToken()
	token.Stop()
	_, err := c.GetMetadata(token, []string{testImage(t)}, "key-1", Options{KeywordLimit: 10})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestChatUnsupportedImage(t *testing.T) {
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for unsupported input")
	})

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0644))

	_, err := c.GetMetadata(stop.NewToken(), []string{path}, "key-1", Options{KeywordLimit: 10})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestChatCheckKey(t *testing.T) {
	c := chatServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid api key"}})
	})

	ok := c.CheckKey(stop.NewToken(), "good", "")
	assert.Equal(t, 200, ok.Code)
	assert.Equal(t, "OK", ok.Message)

	bad := c.CheckKey(stop.NewToken(), "bad", "")
	assert.Equal(t, 401, bad.Code)
	assert.Equal(t, "invalid api key", bad.Message)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestModelChoices(t *testing.T) {
	choices, err := ModelChoices(Gemini)
	require.NoError(t, err)
	assert.Equal(t, AutoRotation, choices[0])
	assert.Contains(t, choices, geminiDefaultModel)

	choices, err = ModelChoices(Groq)
	require.NoError(t, err)
	assert.NotContains(t, choices, AutoRotation)
}
