package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
)

// ErrProviderUnavailable is returned when a provider has no credentials or
// is unknown.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// Attachment is a document sent alongside the prompt.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// Provider is a chat model able to answer a prompt, optionally about an
// attached image or PDF.
type Provider interface {
	Name() string
	// ExtractData returns the model's raw reply.
	ExtractData(ctx context.Context, prompt string, attachment *Attachment) (string, error)
	// Accepts reports whether attachments of this MIME type can be sent.
	Accepts(mimeType string) bool
}

// NewProvider builds the named provider from config.
func NewProvider(name string, cfg models.AIConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("%w: openai api key not configured", ErrProviderUnavailable)
		}
		return NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini api key not configured", ErrProviderUnavailable)
		}
		return NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model), nil
	case "ollama":
		if cfg.Ollama.BaseURL == "" {
			return nil, fmt.Errorf("%w: ollama base url not configured", ErrProviderUnavailable)
		}
		return NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderUnavailable, name)
	}
}

func imageMIME(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
