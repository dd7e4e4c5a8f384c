// Package provider presents one interface over the supported vision metadata
// backends. Each provider instance owns its own key/model rotation state;
// callers pass the key chosen by the orchestrator and the provider enforces
// its own per-key and per-model spacing on top.
package provider

import (
	"fmt"
	"time"

	"github.com/riiicil/autometa/internal/pkg/provider/rotation"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/pkg/models"
)

// Provider ids accepted by New and the --provider flag
const (
	Gemini     = "gemini"
	OpenAI     = "openai"
	OpenRouter = "openrouter"
	Groq       = "groq"
	Blackbox   = "blackbox"
	LiteLLM    = "litellm"
)

// AutoRotation is the model sentinel that lets the provider pick the
// least-recently-used model on every call. Only Gemini supports it.
const AutoRotation = "Auto Rotation"

// Options is the per-call knob bag for GetMetadata
type Options struct {
	// PNG switches to the transparent-background prompt variant
	PNG bool

	// Video switches to the multi-frame prompt variant
	Video bool

	// Model overrides the default model. Empty or AutoRotation selects
	// the provider's rotation policy.
	Model string

	// KeywordLimit caps the returned tag list
	KeywordLimit int

	// Priority is the quality tier (PriorityDetailed, PriorityBalanced, PriorityLess)
	Priority string

	// VectorConversion marks images that were rasterized from a vector source
	VectorConversion bool
}

// KeyStatus is the outcome of a connectivity probe for one API key
type KeyStatus struct {
	// Code is the HTTP status, or 0 when the request never completed
	Code    int
	Message string
}

// Provider is the uniform surface over one metadata backend
type Provider interface {
	// Name returns the provider id
	Name() string

	// Models returns the selectable model identifiers, most preferred first
	Models() []string

	// GetMetadata sends the image(s) and returns parsed metadata. It retries
	// transient failures internally with backoff; auth, content-block and
	// malformed-response outcomes surface as errors without internal retry.
	// ErrStopped is returned as soon as the token is observed raised.
	GetMetadata(t *stop.Token, images []string, apiKey string, opts Options) (*models.Metadata, error)

	// CheckKey probes one API key with a minimal request
	CheckKey(t *stop.Token, apiKey, model string) KeyStatus
}

// List returns the known provider ids
func List() []string {
	return []string{Gemini, OpenAI, OpenRouter, Groq, Blackbox, LiteLLM}
}

// New builds a provider with fresh rotation state over the given key list
func New(name string, apiKeys []string) (Provider, error) {
	switch name {
	case Gemini:
		return newGemini(apiKeys), nil
	case OpenAI, OpenRouter, Groq, Blackbox, LiteLLM:
		return newChat(name, apiKeys)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// ModelChoices returns the model list for a provider id, prefixed with the
// AutoRotation sentinel where supported.
func ModelChoices(name string) ([]string, error) {
	p, err := New(name, nil)
	if err != nil {
		return nil, err
	}
	if name == Gemini {
		return append([]string{AutoRotation}, p.Models()...), nil
	}
	return p.Models(), nil
}

// selectKey resolves the key to use for one call. The orchestrator assigns
// keys round-robin, but a key parked after a rate limit is traded for the
// rotator's own pick while an alternative exists. Either way the chosen key
// is reserved and the returned wait honors the per-key spacing.
func selectKey(keys *rotation.Rotator, apiKey string) (string, time.Duration) {
	if keys.Parked(apiKey) && keys.Len() > 1 {
		return keys.Acquire()
	}
	return apiKey, keys.Reserve(apiKey)
}

// CheckKeys probes every key and returns the per-key outcome. Probes run
// sequentially; a raised token short-circuits the remaining keys.
func CheckKeys(p Provider, t *stop.Token, apiKeys []string, model string) map[string]KeyStatus {
	results := make(map[string]KeyStatus, len(apiKeys))
	for _, key := range apiKeys {
		if t.Stopped() {
			results[key] = KeyStatus{Code: 0, Message: "check cancelled"}
			continue
		}
		results[key] = p.CheckKey(t, key, model)
	}
	return results
}
