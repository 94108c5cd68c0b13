// Package engine runs the extraction strategies over a document, merges
// their candidates and decides whether the result is a plausible invoice.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/facturaIA/invoice-extraction-service/internal/metrics"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"go.uber.org/zap"
)

// shortCircuitConfidence is the lowest confidence whose complete result ends
// the strategy chain.
const shortCircuitConfidence = models.ConfidenceTextModel

// Strategy is one independent way of turning a document into an invoice
// candidate.
type Strategy interface {
	Method() models.Method
	// Accepts reports whether the strategy can work on doc at all.
	Accepts(doc models.Document) bool
	// Attempt returns a candidate, or an error when it produced nothing usable.
	Attempt(ctx context.Context, doc models.Document) (*models.ExtractionResult, error)
}

// Orchestrator runs strategies one after another in priority order.
type Orchestrator struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewOrchestrator creates an orchestrator. timeout bounds each attempt; zero
// means no per-attempt limit.
func NewOrchestrator(strategies []Strategy, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{strategies: strategies, timeout: timeout, logger: logger, metrics: m}
}

// Run attempts every accepting strategy until one yields a confident result
// with line items and a positive total. Failures are recorded, never returned.
func (o *Orchestrator) Run(ctx context.Context, doc models.Document) ([]models.ExtractionResult, []models.StrategyAttempt) {
	var (
		results  []models.ExtractionResult
		attempts []models.StrategyAttempt
		done     bool
	)

	for _, s := range o.strategies {
		method := s.Method()
		if done || !s.Accepts(doc) {
			attempts = append(attempts, models.StrategyAttempt{Method: method, Skipped: true})
			o.metrics.RecordAttempt(string(method), metrics.OutcomeSkipped)
			continue
		}

		start := time.Now()
		res, err := o.attempt(ctx, s, doc)
		attempt := models.StrategyAttempt{Method: method, Duration: time.Since(start)}

		switch {
		case err != nil:
			attempt.Error = err.Error()
			o.logger.Warn("engine.strategy.failed",
				zap.String("method", string(method)),
				zap.Duration("duration", attempt.Duration),
				zap.Error(err))
			o.metrics.RecordAttempt(string(method), metrics.OutcomeFailed)
		case res == nil || !contributes(res.Data):
			o.logger.Debug("engine.strategy.empty", zap.String("method", string(method)))
			o.metrics.RecordAttempt(string(method), metrics.OutcomeEmpty)
		default:
			attempt.Produced = true
			attempt.Confidence = res.Confidence
			results = append(results, *res)
			o.logger.Debug("engine.strategy.produced",
				zap.String("method", string(method)),
				zap.Float64("confidence", res.Confidence),
				zap.Duration("duration", attempt.Duration))
			o.metrics.RecordAttempt(string(method), metrics.OutcomeProduced)
			done = complete(*res)
		}
		attempts = append(attempts, attempt)
	}
	return results, attempts
}

// attempt calls the strategy under the per-attempt deadline and turns a panic
// into an error.
func (o *Orchestrator) attempt(ctx context.Context, s Strategy, doc models.Document) (res *models.ExtractionResult, err error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("strategy %s panicked: %v", s.Method(), r)
		}
	}()
	return s.Attempt(ctx, doc)
}

// complete reports whether a result is good enough to stop the chain.
func complete(res models.ExtractionResult) bool {
	return res.Confidence >= shortCircuitConfidence &&
		res.Data.HasItems() &&
		res.Data.Total.IsPositive()
}

// contributes reports whether any field of inv carries a non-default value.
func contributes(inv models.ExtractedInvoice) bool {
	return !models.IsDefaultString(inv.InvoiceNumber) ||
		!models.IsDefaultString(inv.Date) ||
		!models.IsDefaultString(inv.DueDate) ||
		!models.IsDefaultString(inv.Vendor) ||
		!models.IsDefaultString(inv.Customer) ||
		!models.IsDefaultItems(inv.Items) ||
		!inv.Subtotal.IsZero() ||
		!inv.Tax.IsZero() ||
		!inv.Total.IsZero()
}
