package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/riiicil/autometa/internal/pkg/log"
	"github.com/riiicil/autometa/internal/pkg/provider/rotation"
	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/pkg/models"
)

// chatSpec describes one OpenAI-compatible chat-completions backend
type chatSpec struct {
	endpoint     string
	models       []string
	defaultModel string
	// modelIDs maps display names to wire-level model identifiers; models
	// absent from the map are sent as-is
	modelIDs map[string]string
	// jsonMode adds response_format json_object where the backend supports it
	jsonMode    bool
	temperature float64
	maxTokens   int
}

var chatSpecs = map[string]chatSpec{
	OpenAI: {
		endpoint:     "https://api.openai.com/v1/chat/completions",
		models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"},
		defaultModel: "gpt-4o-mini",
		jsonMode:     true,
		temperature:  0.5,
		maxTokens:    4096,
	},
	OpenRouter: {
		endpoint:     "https://openrouter.ai/api/v1/chat/completions",
		models:       []string{"google/gemini-2.0-flash-001", "openai/gpt-4o-mini", "meta-llama/llama-4-maverick"},
		defaultModel: "google/gemini-2.0-flash-001",
		jsonMode:     true,
		temperature:  0.5,
		maxTokens:    4096,
	},
	Groq: {
		endpoint:     "https://api.groq.com/openai/v1/chat/completions",
		models:       []string{"Llama 4 Scout", "Llama 4 Maverick"},
		defaultModel: "Llama 4 Maverick",
		modelIDs: map[string]string{
			"Llama 4 Scout":    "meta-llama/llama-4-scout-17b-16e-instruct",
			"Llama 4 Maverick": "meta-llama/llama-4-maverick-17b-128e-instruct",
		},
		jsonMode:    true,
		temperature: 0.5,
		maxTokens:   4096,
	},
	Blackbox: {
		endpoint:     "https://api.blackbox.ai/chat/completions",
		models:       []string{"blackboxai/google/gemini-2.5-flash", "blackboxai/openai/gpt-4o"},
		defaultModel: "blackboxai/google/gemini-2.5-flash",
		temperature:  0.5,
		maxTokens:    4096,
	},
	LiteLLM: {
		endpoint:     "https://litellm.koboi2026.biz.id/chat/completions",
		models:       []string{"gemini/gemini-2.5-flash", "gemini/gemini-2.0-flash"},
		defaultModel: "gemini/gemini-2.5-flash",
		jsonMode:     true,
		temperature:  0.5,
		maxTokens:    4096,
	},
}

const chatSystemInstruction = "You generate stock photography metadata. Respond strictly with JSON that " +
	"includes the keys 'title', 'description', 'keywords', 'adobe_stock_category', and " +
	"'shutterstock_category'. Limit text fields to 200 characters and keep the keywords array " +
	"concise and relevant. Do not include extra commentary."

type chat struct {
	name   string
	spec   chatSpec
	keys   *rotation.Rotator
	client *httpClient
	logger *log.FieldedLogger
}

func newChat(name string, apiKeys []string) (*chat, error) {
	spec, ok := chatSpecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return &chat{
		name:   name,
		spec:   spec,
		keys:   rotation.New(apiKeys, rotation.DefaultKeyInterval),
		client: newHTTPClient(),
		logger: log.NewFieldedLogger(&log.Fields{"component": "provider." + name}),
	}, nil
}

func (c *chat) Name() string { return c.name }

func (c *chat) Models() []string { return append([]string(nil), c.spec.models...) }

// Chat-completions wire shapes

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model               string            `json:"model"`
	Messages            []chatMessage     `json:"messages"`
	ResponseFormat      map[string]string `json:"response_format,omitempty"`
	Temperature         float64           `json:"temperature"`
	MaxCompletionTokens int               `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *chat) resolveModel(model string) string {
	if model == "" || model == AutoRotation {
		model = c.spec.defaultModel
	} else if !inList(c.spec.models, model) {
		c.logger.Warn("unknown model, falling back to default", "model", model, "default", c.spec.defaultModel)
		model = c.spec.defaultModel
	}
	if wire, ok := c.spec.modelIDs[model]; ok {
		return wire
	}
	return model
}

func (c *chat) buildPayload(images []string, model string, opts Options) (*chatRequest, error) {
	prompt := buildPrompt(opts.Priority, opts.PNG, opts.Video, opts.KeywordLimit)
	userContent := []any{chatTextContent{Type: "text", Text: fmt.Sprintf(
		"%s\nLimit the keywords array to %d items or fewer, prioritising the most relevant ones.",
		prompt, opts.KeywordLimit,
	)}}

	for _, path := range images {
		dataURL, err := encodeImage(path)
		if err != nil {
			return nil, err
		}
		userContent = append(userContent, chatImageContent{Type: "image_url", ImageURL: chatImageURL{URL: dataURL}})
	}

	req := &chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: chatSystemInstruction},
			{Role: "user", Content: userContent},
		},
		Temperature:         c.spec.temperature,
		MaxCompletionTokens: c.spec.maxTokens,
	}
	if c.spec.jsonMode {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}
	return req, nil
}

func (c *chat) GetMetadata(t *stop.Token, images []string, apiKey string, opts Options) (*models.Metadata, error) {
	if err := validateImages(images); err != nil {
		return nil, err
	}
	if t.Stopped() {
		return nil, ErrStopped
	}

	// A parked key is swapped for the rotator's pick while an alternative exists
	key, wait := selectKey(c.keys, apiKey)
	if key != apiKey {
		c.logger.Info("key rate limited, substituting", "key", redactKey(apiKey), "with", redactKey(key))
	}
	if wait > 0 && !t.Sleep(wait) {
		return nil, ErrStopped
	}

	model := c.resolveModel(opts.Model)
	payload, err := c.buildPayload(images, model, opts)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Authorization": "Bearer " + key}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if t.Stopped() {
			return nil, ErrStopped
		}

		c.logger.Info("sending request", "file", describe(images), "model", model, "key", redactKey(key))
		stats.ProviderCallsIncr()

		status, body, err := c.client.postJSON(t, c.spec.endpoint, headers, payload)
		if err != nil {
			if errors.Is(err, ErrStopped) {
				return nil, err
			}
			stats.ProviderErrorsIncr()
			lastErr = err
		} else {
			md, err := c.handleResponse(status, body, key, model, opts.KeywordLimit)
			if err == nil {
				t.Sleep(successDelay)
				return md, nil
			}
			if isFatal(err) || errors.Is(err, ErrEmptyResponse) {
				return nil, err
			}
			lastErr = err
		}

		if attempt < maxAttempts && !retryWait(t, attempt) {
			return nil, ErrStopped
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

func (c *chat) handleResponse(status int, body []byte, apiKey, model string, keywordLimit int) (*models.Metadata, error) {
	var resp chatResponse
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
		c.keys.Park(apiKey)
		return nil, fmt.Errorf("rate limited (model %s): %s", model, resp.Error.Message)
	case status == 401 || status == 403:
		stats.ProviderErrorsIncr()
		return nil, fmt.Errorf("%w (HTTP %d): %s", ErrAuth, status, resp.Error.Message)
	default:
		stats.ProviderErrorsIncr()
		return nil, fmt.Errorf("API error (HTTP %d, model %s): %s", status, model, resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	text := contentToText(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return ParseMetadata(text, keywordLimit)
}

// contentToText flattens a chat message content that may be a plain string or
// a list of typed parts.
func contentToText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}

func (c *chat) CheckKey(t *stop.Token, apiKey, model string) KeyStatus {
	payload := &chatRequest{
		Model: c.resolveModel(model),
		Messages: []chatMessage{
			{Role: "system", Content: chatSystemInstruction},
			{Role: "user", Content: []any{chatTextContent{
				Type: "text",
				Text: "Test connectivity only. Respond with any JSON matching the schema.",
			}}},
		},
		Temperature: c.spec.temperature,
	}
	if c.spec.jsonMode {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	status, body, err := c.client.postJSON(t, c.spec.endpoint, headers, payload)
	if err != nil {
		return KeyStatus{Code: 0, Message: err.Error()}
	}
	if status == 200 {
		return KeyStatus{Code: 200, Message: "OK"}
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return KeyStatus{Code: status, Message: resp.Error.Message}
	}
	return KeyStatus{Code: status, Message: fmt.Sprintf("HTTP %d", status)}
}
