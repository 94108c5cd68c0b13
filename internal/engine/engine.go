package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/facturaIA/invoice-extraction-service/internal/document"
	"github.com/facturaIA/invoice-extraction-service/internal/metrics"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/parser"
	"github.com/facturaIA/invoice-extraction-service/internal/reconcile"
	"github.com/facturaIA/invoice-extraction-service/internal/services"
	"go.uber.org/zap"
)

// ErrNoInput is returned when a request carries neither bytes nor text.
var ErrNoInput = errors.New("no document bytes or text provided")

// Request is one document to extract.
type Request struct {
	Data     []byte
	MIMEType string
	// Text is pre-extracted document text, used instead of the PDF text layer.
	Text string
	// Previous is an earlier partial extraction of the same document. It only
	// fills fields every strategy left at their defaults.
	Previous *models.ExtractedInvoice
}

// Options configures an Engine.
type Options struct {
	// Timeout bounds each strategy attempt.
	Timeout      time.Duration
	Preprocessor *document.Preprocessor
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Engine is the extraction entry point.
type Engine struct {
	strategies   []Strategy
	orchestrator *Orchestrator
	preprocessor *document.Preprocessor
	validator    *services.InvoiceValidator
	classifier   *services.DocumentClassifier
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// New creates an engine that runs strategies in the given order.
func New(strategies []Strategy, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		strategies:   strategies,
		orchestrator: NewOrchestrator(strategies, opts.Timeout, logger, opts.Metrics),
		preprocessor: opts.Preprocessor,
		validator:    services.NewInvoiceValidator(),
		classifier:   services.NewDocumentClassifier(),
		logger:       logger,
		metrics:      opts.Metrics,
	}
}

// Extract runs the strategy chain, merges and reconciles the candidates and
// validates the result. Only a request without input fails; every other
// problem ends up in the outcome.
func (e *Engine) Extract(ctx context.Context, req Request) (*models.ReconciliationOutcome, error) {
	start := time.Now()

	doc, err := e.prepare(req)
	if err != nil {
		return nil, err
	}

	results, attempts := e.orchestrator.Run(ctx, doc)
	if req.Previous != nil {
		results = append(results, models.ExtractionResult{
			Method:     models.MethodPrevious,
			Confidence: models.ConfidencePrevious,
			Data:       reconcile.Reconcile(*req.Previous),
		})
	}

	invoice := Merge(results)
	validation := e.validator.Validate(invoice, doc.Text)

	outcome := &models.ReconciliationOutcome{
		Invoice:            invoice,
		IsPlausibleInvoice: validation.Valid,
		Reason:             validation.Reason(),
		Attempts:           attempts,
		Validation:         validation,
	}

	elapsed := time.Since(start)
	e.metrics.RecordExtraction(outcome.IsPlausibleInvoice, elapsed)
	if outcome.IsPlausibleInvoice {
		e.logger.Info("engine.extract.done",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("candidates", len(results)),
			zap.Duration("duration", elapsed))
	} else {
		e.logger.Info("engine.extract.implausible",
			zap.String("reason", outcome.Reason),
			zap.Int("candidates", len(results)),
			zap.Duration("duration", elapsed))
	}
	return outcome, nil
}

// PreliminaryCheck decides whether full extraction is worthwhile. It reuses
// the regex strategy on text, or the vision strategy on image-only input, and
// applies the rejection rules only. Without any signal it lets the document
// through.
func (e *Engine) PreliminaryCheck(ctx context.Context, req Request) (bool, string, error) {
	doc, err := e.prepare(req)
	if err != nil {
		return false, "", err
	}

	var candidate *models.ExtractionResult
	if strings.TrimSpace(doc.Text) != "" {
		candidate, _ = e.regexStrategy().Attempt(ctx, doc)
	} else if vision := e.strategy(models.MethodVision); vision != nil && vision.Accepts(doc) {
		candidate, err = e.orchestrator.attempt(ctx, vision, doc)
		if err != nil {
			e.logger.Warn("engine.preliminary.vision_failed", zap.Error(err))
		}
	}
	if candidate == nil || !contributes(candidate.Data) {
		return true, "", nil
	}

	result := e.classifier.Classify(candidate.Data, doc.Text)
	if !result.Valid {
		e.logger.Info("engine.preliminary.rejected", zap.String("reason", result.Reason()))
	}
	return result.Valid, result.Reason(), nil
}

// prepare resolves the MIME type and the text layer and shrinks images.
func (e *Engine) prepare(req Request) (models.Document, error) {
	if len(req.Data) == 0 && strings.TrimSpace(req.Text) == "" {
		return models.Document{}, ErrNoInput
	}

	doc := models.Document{
		Data:     req.Data,
		MIMEType: document.DetectMIME(req.Data, req.MIMEType),
		Text:     req.Text,
	}

	if strings.TrimSpace(doc.Text) == "" {
		switch {
		case doc.IsPDF():
			text, err := document.PDFText(doc.Data)
			if err != nil {
				e.logger.Warn("engine.pdf.text_failed", zap.Error(err))
			}
			doc.Text = text
		case document.IsText(doc.MIMEType):
			doc.Text = string(doc.Data)
		}
	}

	if doc.IsImage() && e.preprocessor != nil {
		doc.Data, doc.MIMEType = e.preprocessor.PrepareImage(doc.Data, doc.MIMEType)
	}
	return doc, nil
}

func (e *Engine) strategy(m models.Method) Strategy {
	for _, s := range e.strategies {
		if s.Method() == m {
			return s
		}
	}
	return nil
}

func (e *Engine) regexStrategy() Strategy {
	if s := e.strategy(models.MethodRegex); s != nil {
		return s
	}
	return parser.NewExtractor(e.logger)
}
