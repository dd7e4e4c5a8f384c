package provider

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/provider/rotation"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/pkg/models"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

const geminiDefaultModel = "gemini-2.0-flash"

var geminiModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-2.5-pro",
}

type gemini struct {
	endpoint string
	keys     *rotation.Rotator
	models   *rotation.Rotator
	client   *httpClient
	logger   *log.FieldedLogger
}

func newGemini(apiKeys []string) *gemini {
	return &gemini{
		endpoint: geminiEndpoint,
		keys:     rotation.New(apiKeys, rotation.DefaultKeyInterval),
		models:   rotation.New(geminiModels, rotation.DefaultModelCooldown),
		client:   newHTTPClient(),
		logger:   log.NewFieldedLogger(&log.Fields{"component": "provider.gemini"}),
	}
}

func (g *gemini) Name() string { return Gemini }

func (g *gemini) Models() []string { return append([]string(nil), geminiModels...) }

// Request/response shapes for the generateContent endpoint

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64         `json:"temperature"`
	MaxOutputTokens  int             `json:"maxOutputTokens"`
	TopP             float64         `json:"topP"`
	TopK             int             `json:"topK"`
	ResponseMimeType string          `json:"response_mime_type"`
	ResponseSchema   json.RawMessage `json:"response_schema"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// The schema constrains the reply to the metadata shape so no prose leaks in
var geminiResponseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {"type": "string", "maxLength": 180},
		"description": {"type": "string", "maxLength": 500},
		"keywords": {"type": "array", "items": {"type": "string"}, "maxItems": 60},
		"adobe_stock_category": {"type": "string"},
		"shutterstock_category": {"type": "string"}
	},
	"required": ["title", "description", "keywords", "adobe_stock_category", "shutterstock_category"]
}`)

func geminiMaxOutputTokens(model string) int {
	// 2.5 models spend tokens on a thinking phase before the answer
	if strings.Contains(model, "2.5") {
		return 15000
	}
	return 800
}

func (g *gemini) GetMetadata(t *stop.Token, images []string, apiKey string, opts Options) (*models.Metadata, error) {
	if err := validateImages(images); err != nil {
		return nil, err
	}
	if t.Stopped() {
		return nil, ErrStopped
	}

	// Honor the per-key spacing even though the orchestrator picked the key;
	// a parked key is swapped for the rotator's pick while an alternative exists
	key, wait := selectKey(g.keys, apiKey)
	if key != apiKey {
		g.logger.Info("key rate limited, substituting", "key", redactKey(apiKey), "with", redactKey(key))
	}
	if wait > 0 && !t.Sleep(wait) {
		return nil, ErrStopped
	}

	autoRotate := opts.Model == "" || opts.Model == AutoRotation
	fixedModel := opts.Model
	if !autoRotate && !inList(geminiModels, fixedModel) {
		g.logger.Warn("unknown model, falling back to default", "model", fixedModel, "default", geminiDefaultModel)
		fixedModel = geminiDefaultModel
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if t.Stopped() {
			return nil, ErrStopped
		}

		var model string
		var wait time.Duration
		if autoRotate {
			model, wait = g.models.Acquire()
		} else {
			model = fixedModel
			wait = g.models.Reserve(model)
		}
		if wait > 0 && !t.Sleep(wait) {
			return nil, ErrStopped
		}

		md, err := g.attempt(t, images, key, model, opts)
		if err == nil {
			t.Sleep(successDelay)
			return md, nil
		}
		if isFatal(err) || errors.Is(err, ErrEmptyResponse) {
			return nil, err
		}
		lastErr = err

		if attempt < maxAttempts && !retryWait(t, attempt) {
			return nil, ErrStopped
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

// isFatal reports whether an error must not be retried inside the call
func isFatal(err error) bool {
	for _, sentinel := range []error{ErrStopped, ErrBlocked, ErrAuth, ErrUnsupportedImage} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (g *gemini) attempt(t *stop.Token, images []string, apiKey, model string, opts Options) (*models.Metadata, error) {
	parts := make([]geminiPart, 0, len(images)+1)
	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading image: %w", err)
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: "image/jpeg",
			Data:     base64.StdEncoding.EncodeToString(data),
		}})
	}
	parts = append(parts, geminiPart{Text: buildPrompt(opts.Priority, opts.PNG, opts.Video, opts.KeywordLimit)})

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			MaxOutputTokens:  geminiMaxOutputTokens(model),
			TopP:             0.8,
			TopK:             40,
			ResponseMimeType: "application/json",
			ResponseSchema:   geminiResponseSchema,
		},
	}

	g.logger.Info("sending request", "file", describe(images), "model", model, "key", redactKey(apiKey))
	stats.ProviderCallsIncr()

	url := fmt.Sprintf(g.endpoint, model) + "?key=" + apiKey
	status, body, err := g.client.postJSON(t, url, nil, payload)
	if err != nil {
		if !errors.Is(err, ErrStopped) {
			stats.ProviderErrorsIncr()
		}
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		stats.ProviderErrorsIncr()
		return nil, fmt.Errorf("decoding response (HTTP %d): %w", status, err)
	}

	switch {
	case status == 200:
		// handled below
	case status == 429:
		stats.RateLimitHitsIncr()
		stats.ProviderErrorsIncr()
		g.keys.Park(apiKey)
		g.models.Park(model)
		return nil, fmt.Errorf("rate limited (model %s): %s", model, resp.Error.Message)
	case status == 401 || status == 403:
		stats.ProviderErrorsIncr()
		return nil, fmt.Errorf("%w (HTTP %d): %s", ErrAuth, status, resp.Error.Message)
	default:
		stats.ProviderErrorsIncr()
		return nil, fmt.Errorf("API error (HTTP %d, model %s): %s", status, model, resp.Error.Message)
	}

	if resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	// Prefer the first non-thought text part, then any text part
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			text = part.Text
			break
		}
	}
	if text == "" {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				text = part.Text
				break
			}
		}
	}
	if text == "" {
		return nil, ErrEmptyResponse
	}

	return ParseMetadata(text, opts.KeywordLimit)
}

func (g *gemini) CheckKey(t *stop.Token, apiKey, model string) KeyStatus {
	if model == "" || model == AutoRotation {
		model = geminiDefaultModel
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: "Reply with the single word: ok"}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0,
			MaxOutputTokens:  10,
			TopP:             0.8,
			TopK:             40,
			ResponseMimeType: "text/plain",
		},
	}

	url := fmt.Sprintf(g.endpoint, model) + "?key=" + apiKey
	status, body, err := g.client.postJSON(t, url, nil, payload)
	if err != nil {
		return KeyStatus{Code: 0, Message: err.Error()}
	}
	if status == 200 {
		return KeyStatus{Code: 200, Message: "OK"}
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return KeyStatus{Code: status, Message: resp.Error.Message}
	}
	return KeyStatus{Code: status, Message: fmt.Sprintf("HTTP %d", status)}
}

func inList(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
