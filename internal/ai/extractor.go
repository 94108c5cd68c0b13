package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"go.uber.org/zap"
)

// VisionExtractor sends the document itself to a multimodal model.
type VisionExtractor struct {
	provider Provider
	logger   *zap.Logger
	now      func() time.Time
}

// NewVisionExtractor creates the vision strategy.
func NewVisionExtractor(provider Provider, logger *zap.Logger) *VisionExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisionExtractor{provider: provider, logger: logger, now: time.Now}
}

// Method identifies the strategy.
func (e *VisionExtractor) Method() models.Method { return models.MethodVision }

// Accepts reports whether the document is an image the provider can read,
// or a PDF without a text layer when the provider reads PDFs directly.
func (e *VisionExtractor) Accepts(doc models.Document) bool {
	if e.provider == nil || !e.provider.Accepts(doc.MIMEType) {
		return false
	}
	if doc.IsImage() {
		return true
	}
	return doc.IsPDF() && strings.TrimSpace(doc.Text) == ""
}

// Attempt asks the model to read the document.
func (e *VisionExtractor) Attempt(ctx context.Context, doc models.Document) (*models.ExtractionResult, error) {
	prompt := buildPromptVision(e.now())
	reply, err := e.provider.ExtractData(ctx, prompt, &Attachment{Data: doc.Data, MIMEType: doc.MIMEType})
	if err != nil {
		return nil, fmt.Errorf("vision extraction failed: %w", err)
	}
	e.logger.Debug("vision reply received",
		zap.String("provider", e.provider.Name()),
		zap.Int("length", len(reply)))

	inv, err := ParseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vision reply: %w", err)
	}
	return &models.ExtractionResult{
		Method:     models.MethodVision,
		Confidence: models.ConfidenceVision,
		Data:       inv,
	}, nil
}

// TextModelExtractor sends the document text to a chat model.
type TextModelExtractor struct {
	provider Provider
	logger   *zap.Logger
	maxChars int
	now      func() time.Time
}

// NewTextModelExtractor creates the text model strategy. Text longer than
// maxChars is truncated; zero disables truncation.
func NewTextModelExtractor(provider Provider, maxChars int, logger *zap.Logger) *TextModelExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextModelExtractor{provider: provider, logger: logger, maxChars: maxChars, now: time.Now}
}

// Method identifies the strategy.
func (e *TextModelExtractor) Method() models.Method { return models.MethodTextModel }

// Accepts reports whether the document has text.
func (e *TextModelExtractor) Accepts(doc models.Document) bool {
	return e.provider != nil && strings.TrimSpace(doc.Text) != ""
}

// Attempt asks the model to structure the document text.
func (e *TextModelExtractor) Attempt(ctx context.Context, doc models.Document) (*models.ExtractionResult, error) {
	text := doc.Text
	if e.maxChars > 0 && len(text) > e.maxChars {
		e.logger.Debug("truncating document text",
			zap.Int("length", len(text)),
			zap.Int("max", e.maxChars))
		text = truncate(text, e.maxChars)
	}

	reply, err := e.provider.ExtractData(ctx, buildPromptText(text, e.now()), nil)
	if err != nil {
		return nil, fmt.Errorf("text model extraction failed: %w", err)
	}
	e.logger.Debug("text model reply received",
		zap.String("provider", e.provider.Name()),
		zap.Int("length", len(reply)))

	inv, err := ParseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text model reply: %w", err)
	}
	return &models.ExtractionResult{
		Method:     models.MethodTextModel,
		Confidence: models.ConfidenceTextModel,
		Data:       inv,
	}, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
