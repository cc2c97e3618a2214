package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Edit(EditRecorded)
	m.Edit(EditRecorded)
	m.Edit(EditRejected)
	m.Navigate("undo", nil)
	m.Navigate("redo", errors.New("nothing to redo"))
	m.Released(nil)
	m.Released(errors.New("busy"))
	m.Swept(3)
	m.Swept(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EditsTotal.WithLabelValues(EditRecorded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EditsTotal.WithLabelValues(EditRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NavigationsTotal.WithLabelValues("undo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NavigationsTotal.WithLabelValues("redo", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReleasedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailuresTotal.WithLabelValues("release")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweptTotal))
}

func TestGauges(t *testing.T) {
	m := New()
	m.Position(4, 2)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Depth))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cursor))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Edit(EditRecorded)
		m.Navigate("undo", nil)
		m.PersistFailure("create")
		m.Released(nil)
		m.Swept(1)
		m.Position(1, 0)
		m.ObserveSnapshot(time.Now())
	})
	assert.Nil(t, m.Registry())
}

func TestHandler(t *testing.T) {
	m := New()
	m.Edit(EditRecorded)
	m.ObserveSnapshot(time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `cfgedit_history_edits_total{result="recorded"} 1`)
	assert.Contains(t, rec.Body.String(), "cfgedit_history_snapshot_seconds_count 1")
}
