package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecording(t *testing.T) {
	m := New()

	m.IngestRuns.Inc()
	m.RecordEntry("new")
	m.RecordEntry("new")
	m.RecordEntry("duplicate")
	m.RecordSearch(false, time.Now(), nil)
	m.RecordSearch(true, time.Now(), errors.New("boom"))
	m.RecordGeneration(KindSummary, time.Now(), nil)
	m.RecordGeneration(KindSummary, time.Now(), errors.New("quota"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Entries.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Entries.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("plain", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues("enhanced", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues(KindSummary, "error")))
}

func TestExport(t *testing.T) {
	m := New()
	m.IngestRuns.Add(3)
	m.TrendingLookups.WithLabelValues("hit").Inc()

	out, err := m.Export()
	require.NoError(t, err)
	assert.Contains(t, out, "# TYPE newslens_ingest_runs_total counter")
	assert.Contains(t, out, "newslens_ingest_runs_total 3")
	assert.Contains(t, out, `newslens_trending_lookups_total{result="hit"} 1`)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
