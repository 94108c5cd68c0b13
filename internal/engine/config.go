package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/facturaIA/invoice-extraction-service/internal/ai"
	"github.com/facturaIA/invoice-extraction-service/internal/document"
	"github.com/facturaIA/invoice-extraction-service/internal/metrics"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
	"github.com/facturaIA/invoice-extraction-service/internal/parser"
	"go.uber.org/zap"
)

// NewFromConfig builds the strategies named in cfg.Extraction.Strategies.
// Model strategies whose provider lacks credentials are left out; unknown
// names are ignored.
func NewFromConfig(cfg *models.Config, logger *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var strategies []Strategy
	for _, name := range cfg.Extraction.Strategies {
		s, err := buildStrategy(strings.TrimSpace(name), cfg, logger)
		switch {
		case errors.Is(err, ai.ErrProviderUnavailable):
			logger.Info("engine.strategy.disabled", zap.String("strategy", name), zap.Error(err))
			continue
		case err != nil:
			logger.Warn("engine.strategy.unknown", zap.String("strategy", name), zap.Error(err))
			continue
		}
		strategies = append(strategies, s)
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no extraction strategy available from %v", cfg.Extraction.Strategies)
	}

	methods := make([]string, 0, len(strategies))
	for _, s := range strategies {
		methods = append(methods, string(s.Method()))
	}
	logger.Info("engine.strategies", zap.Strings("order", methods))

	return New(strategies, Options{
		Timeout:      cfg.AI.RequestTimeout,
		Preprocessor: document.NewPreprocessor(cfg.Extraction.VisionMaxDimension, logger),
		Logger:       logger,
		Metrics:      m,
	}), nil
}

func buildStrategy(name string, cfg *models.Config, logger *zap.Logger) (Strategy, error) {
	switch models.Method(name) {
	case models.MethodVision:
		provider, err := ai.NewProvider(cfg.AI.VisionProvider, cfg.AI)
		if err != nil {
			return nil, err
		}
		return ai.NewVisionExtractor(provider, logger.Named("vision")), nil
	case models.MethodTextModel:
		provider, err := ai.NewProvider(cfg.AI.TextProvider, cfg.AI)
		if err != nil {
			return nil, err
		}
		return ai.NewTextModelExtractor(provider, cfg.Extraction.MaxTextChars, logger.Named("text_model")), nil
	case models.MethodRegex:
		return parser.NewExtractor(logger.Named("regex")), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
