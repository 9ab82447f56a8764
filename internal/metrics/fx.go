package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

func newRecorder() *Recorder {
	return NewRecorder(prometheus.DefaultRegisterer)
}

var Module = fx.Module("metrics",
	fx.Provide(newRecorder),
)
