// Package prom counts mirror events in Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/unkn0wn-root/hotmirror"
)

// Hooks implements hotmirror.Hooks. All series are labelled by the mirror's
// value key.
type Hooks struct {
	reconciles    *prometheus.CounterVec
	unchanged     *prometheus.CounterVec
	size          *prometheus.GaugeVec
	version       *prometheus.GaugeVec
	parseErrors   *prometheus.CounterVec
	decodeErrors  *prometheus.CounterVec
	reconcileErrs *prometheus.CounterVec
	writeErrs     *prometheus.CounterVec
}

var _ hotmirror.Hooks = (*Hooks)(nil)

// New registers the metrics with reg; nil means prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		reconciles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmirror_reconciles_total",
			Help: "Number of full reconciliations of a mirror",
		}, []string{"mirror"}),
		unchanged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmirror_version_unchanged_total",
			Help: "Number of version checks that found nothing to fetch",
		}, []string{"mirror"}),
		size: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hotmirror_size",
			Help: "Number of elements held by a mirror after its last reconciliation",
		}, []string{"mirror"}),
		version: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hotmirror_version",
			Help: "Version counter observed at the last reconciliation",
		}, []string{"mirror"}),
		parseErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmirror_version_parse_errors_total",
			Help: "Number of unparsable version counters read",
		}, []string{"mirror"}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmirror_decode_errors_total",
			Help: "Number of stored elements skipped because they failed to decode",
		}, []string{"mirror"}),
		reconcileErrs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmirror_reconcile_errors_total",
			Help: "Number of failed version checks or reconciliations",
		}, []string{"mirror"}),
		writeErrs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotmirror_write_errors_total",
			Help: "Number of failed write-throughs",
		}, []string{"mirror", "op"}),
	}
}

func (h *Hooks) Reconciled(valueKey string, version int64, size int) {
	h.reconciles.WithLabelValues(valueKey).Inc()
	h.size.WithLabelValues(valueKey).Set(float64(size))
	h.version.WithLabelValues(valueKey).Set(float64(version))
}

func (h *Hooks) VersionUnchanged(valueKey string, _ int64) {
	h.unchanged.WithLabelValues(valueKey).Inc()
}

func (h *Hooks) VersionParseError(versionKey, _ string) {
	h.parseErrors.WithLabelValues(versionKey).Inc()
}

func (h *Hooks) DecodeError(valueKey string, _ error) {
	h.decodeErrors.WithLabelValues(valueKey).Inc()
}

func (h *Hooks) ReconcileError(valueKey string, _ error) {
	h.reconcileErrs.WithLabelValues(valueKey).Inc()
}

func (h *Hooks) WriteError(valueKey, op string, _ error) {
	h.writeErrs.WithLabelValues(valueKey, op).Inc()
}
