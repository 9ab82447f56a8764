package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.IncSeen()
	r.IncSeen()
	r.AddInserted(5)
	r.IncSkipped()
	r.IncFlush("committed")
	r.IncFlush("rolled_back")
	r.IncFlushError()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.recordsSeen))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.recordsInserted))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recordsSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushes.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushes.WithLabelValues("rolled_back")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flushErrors))
}

func TestRecorder_NilSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.IncSeen()
		r.AddInserted(3)
		r.IncSkipped()
		r.IncFlush("committed")
		r.IncFlushError()
	})
}
