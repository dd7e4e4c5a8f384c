package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riiicil/autometa/internal/pkg/stop"
)

const (
	// requestTimeout caps one HTTP round trip to a provider
	requestTimeout = 60 * time.Second

	// maxAttempts bounds the internal retry loop against transient 429/5xx
	maxAttempts = 2

	// responsePoll is how often an in-flight request checks the stop token
	responsePoll = 100 * time.Millisecond
)

// Tunable so tests do not sit through real backoff windows
var (
	// retryBaseDelay is doubled per attempt, with jitter on top
	retryBaseDelay = 8 * time.Second

	// successDelay spaces out calls after a successful extraction
	successDelay = time.Second
)

// uploadExtensions are the formats providers accept as inline image payloads.
// Everything else must be converted before the call.
var uploadExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif"}

// httpClient wraps http.Client with stop-token aware request execution
type httpClient struct {
	hc *http.Client
}

func newHTTPClient() *httpClient {
	return &httpClient{hc: &http.Client{Timeout: requestTimeout}}
}

// postJSON sends the payload and blocks until a response arrives or the token
// is raised. The request runs on its own goroutine while this one polls the
// token, so a stop request interrupts a slow provider within responsePoll.
func (c *httpClient) postJSON(t *stop.Token, url string, headers map[string]string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling request payload: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.hc.Do(req)
		done <- result{resp, err}
	}()

	ticker := time.NewTicker(responsePoll)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil {
				if t.Stopped() {
					return 0, nil, ErrStopped
				}
				return 0, nil, res.err
			}
			defer res.resp.Body.Close()
			data, err := io.ReadAll(res.resp.Body)
			if err != nil {
				return res.resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
			}
			return res.resp.StatusCode, data, nil
		case <-ticker.C:
			if t.Stopped() {
				cancel()
				<-done
				return 0, nil, ErrStopped
			}
		}
	}
}

// retryWait sleeps the exponential backoff for the given attempt, polling the
// token. Returns false if a stop was observed during the wait.
func retryWait(t *stop.Token, attempt int) bool {
	delay := retryBaseDelay * (1 << (attempt - 1))
	if delay <= 0 {
		return !t.Stopped()
	}
	jitter := time.Duration(rand.Int63n(int64(delay/2) + 1))
	return t.Sleep(delay + jitter)
}

// encodeImage reads the file and returns a base64 data URL with the mime type
// derived from the extension.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image %s: %w", filepath.Base(path), err)
	}

	mimeType := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".webp":
		mimeType = "image/webp"
	case ".heic", ".heif":
		mimeType = "image/heic"
	}

	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}

// validateImages rejects paths the upload endpoints cannot take
func validateImages(paths []string) error {
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		ok := false
		for _, allowed := range uploadExtensions {
			if ext == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnsupportedImage, filepath.Base(p))
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("image not found: %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

// describe names a request in logs: the basename for one image, a frame count
// for several.
func describe(paths []string) string {
	if len(paths) == 1 {
		return filepath.Base(paths[0])
	}
	return fmt.Sprintf("%s (+%d frames)", filepath.Base(paths[0]), len(paths)-1)
}

// redactKey keeps only the key tail for logging
func redactKey(key string) string {
	if len(key) <= 5 {
		return "..."
	}
	return "..." + key[len(key)-5:]
}
