package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordAttempt("regex", OutcomeProduced)
	m.RecordAttempt("regex", OutcomeProduced)
	m.RecordAttempt("vision", OutcomeFailed)
	m.RecordExtraction(true, 250*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StrategyAttempts.WithLabelValues("regex", OutcomeProduced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StrategyAttempts.WithLabelValues("vision", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("true")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExtractionDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAttempt("regex", OutcomeSkipped)
		m.RecordExtraction(false, time.Second)
	})
}
