package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You extract structured data from invoices. Always respond with a single valid JSON object and nothing else."

// OpenAIProvider talks to OpenAI or any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	name   string
	// jsonMode requests a JSON object response format.
	jsonMode bool
}

// NewOpenAIProvider creates a provider for OpenAI; baseURL is optional.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		name:     "openai",
		jsonMode: true,
	}
}

// NewOllamaProvider creates a provider for a local Ollama server through its
// OpenAI-compatible API.
func NewOllamaProvider(baseURL, model string) *OpenAIProvider {
	config := openai.DefaultConfig("ollama")
	config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  model,
		name:   "ollama",
	}
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string { return p.name }

// Accepts reports whether the attachment can be sent as an image part.
func (p *OpenAIProvider) Accepts(mimeType string) bool {
	if p.name == "ollama" {
		return mimeType == "image/jpeg" || mimeType == "image/png"
	}
	return imageMIME(mimeType)
}

// ExtractData sends the prompt and optional image and returns the reply text.
func (p *OpenAIProvider) ExtractData(ctx context.Context, prompt string, attachment *Attachment) (string, error) {
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if attachment != nil {
		if !p.Accepts(attachment.MIMEType) {
			return "", fmt.Errorf("%s cannot read %s attachments", p.name, attachment.MIMEType)
		}
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + attachment.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(attachment.Data),
					Detail: openai.ImageURLDetailHigh,
				},
			},
		}
	} else {
		user.Content = prompt
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		MaxTokens:   4096,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			user,
		},
	}
	if p.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}
