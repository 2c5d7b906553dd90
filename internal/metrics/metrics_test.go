package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	// Should not panic
	m.RecordLoad(true, time.Millisecond, 1, 2, 3)
	m.RecordClassification("urgent", "negative")
	m.RecordStatusChange("resolved")
	m.RecordReply("smtp", true)
	assert.NotNil(t, m.Handler())
}

func TestIndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()
	a.RecordLoad(true, time.Millisecond, 2, 1, 0)
	b.RecordLoad(false, time.Millisecond, 0, 0, 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordLoad(true, 10*time.Millisecond, 3, 1, 0)
	m.RecordClassification("urgent", "neutral")
	m.RecordStatusChange("resolved")
	m.RecordReply("smtp", false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, `triage_loads_total{outcome="ok"} 1`)
	assert.Contains(t, out, `triage_records_total{result="retained"} 3`)
	assert.Contains(t, out, `triage_collection_size 3`)
	assert.Contains(t, out, `triage_classified_total{priority="urgent",sentiment="neutral"} 1`)
	assert.Contains(t, out, `triage_status_changes_total{status="resolved"} 1`)
	assert.Contains(t, out, `triage_replies_total{outcome="failed",provider="smtp"} 1`)
}
