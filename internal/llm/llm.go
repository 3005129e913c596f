// Package llm provides the text-completion services used for field extraction.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCredential is returned when a provider has no API key configured.
var ErrNoCredential = errors.New("llm: no api credential configured")

// Params control a single completion call.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Completer sends one system instruction and one user message and returns
// the model's text reply. Implementations make exactly one attempt.
type Completer interface {
	Complete(ctx context.Context, system, user string, p Params) (string, error)
}

// Provider names accepted by NewProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewProvider returns the completer for the named provider. An empty API key
// is accepted; the returned completer then fails every call with ErrNoCredential.
func NewProvider(name, apiKey, model string) (Completer, error) {
	switch name {
	case ProviderOpenAI, "":
		return NewOpenAIClient(apiKey, model), nil
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
