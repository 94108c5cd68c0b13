package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider talks to Google Gemini. It reads images and PDFs.
type GeminiProvider struct {
	apiKey string
	model  string
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, model: model}
}

// Name identifies the provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Accepts reports whether Gemini can read the attachment.
func (p *GeminiProvider) Accepts(mimeType string) bool {
	return imageMIME(mimeType) || mimeType == "application/pdf"
}

// ExtractData sends the prompt and optional attachment and returns the reply text.
func (p *GeminiProvider) ExtractData(ctx context.Context, prompt string, attachment *Attachment) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(p.model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0)

	parts := []genai.Part{genai.Text(prompt)}
	if attachment != nil {
		if !p.Accepts(attachment.MIMEType) {
			return "", fmt.Errorf("gemini cannot read %s attachments", attachment.MIMEType)
		}
		parts = append(parts, genai.Blob{MIMEType: attachment.MIMEType, Data: attachment.Data})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	return sb.String(), nil
}
