// Package metrics exposes prometheus counters for the batch loader.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder counts loader activity. All methods are nil-safe so callers can
// treat the recorder as optional.
type Recorder struct {
	recordsSeen     prometheus.Counter
	recordsInserted prometheus.Counter
	recordsSkipped  prometheus.Counter
	flushes         *prometheus.CounterVec
	flushErrors     prometheus.Counter
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		recordsSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "cnr_loader_records_seen_total",
			Help: "Envelopes read from input files.",
		}),
		recordsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cnr_loader_records_inserted_total",
			Help: "Fact rows submitted for insert.",
		}),
		recordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cnr_loader_records_skipped_total",
			Help: "Envelopes skipped for an unknown site type or missing fact.",
		}),
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cnr_loader_flushes_total",
			Help: "Flush outcomes by result (committed, rolled_back).",
		}, []string{"result"}),
		flushErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cnr_loader_flush_errors_total",
			Help: "Flushes aborted by a store failure.",
		}),
	}
}

func (r *Recorder) IncSeen() {
	if r != nil {
		r.recordsSeen.Inc()
	}
}

func (r *Recorder) AddInserted(n int) {
	if r != nil {
		r.recordsInserted.Add(float64(n))
	}
}

func (r *Recorder) IncSkipped() {
	if r != nil {
		r.recordsSkipped.Inc()
	}
}

func (r *Recorder) IncFlush(result string) {
	if r != nil {
		r.flushes.WithLabelValues(result).Inc()
	}
}

func (r *Recorder) IncFlushError() {
	if r != nil {
		r.flushErrors.Inc()
	}
}
