// Package metrics exposes Prometheus instruments for filter dispatch.
package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the dispatcher instruments. A nil *Metrics records nothing.
type Metrics struct {
	Dispatches     *prometheus.CounterVec
	Rejections     *prometheus.CounterVec
	Failures       *prometheus.CounterVec
	KernelDuration *prometheus.HistogramVec
}

// New registers the instruments on reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bilateral_dispatch_total",
			Help: "Total number of bilateral filter calls per backend",
		}, []string{"op", "backend"}),

		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bilateral_dispatch_rejected_total",
			Help: "Total number of calls rejected before reaching a backend",
		}, []string{"op", "reason"}),

		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bilateral_kernel_failures_total",
			Help: "Total number of kernel calls that returned an error",
		}, []string{"op", "backend"}),

		KernelDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bilateral_kernel_duration_seconds",
			Help:    "Duration of bilateral filter kernel calls",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"op", "backend"}),
	}
}

// ObserveDispatch counts one kernel call and records how long it took.
func (m *Metrics) ObserveDispatch(op, backend string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(op, backend).Inc()
	m.KernelDuration.WithLabelValues(op, backend).Observe(elapsed.Seconds())
}

// ObserveRejection counts a call refused by the dispatcher.
func (m *Metrics) ObserveRejection(op, reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(op, reason).Inc()
}

// ObserveFailure counts a routed kernel call that returned an error.
func (m *Metrics) ObserveFailure(op, backend string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(op, backend).Inc()
}

// Dump writes every gathered sample as "name{labels} value", one per line.
// Histograms are reported as their _count and _sum.
func Dump(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			labels := ""
			if len(pairs) > 0 {
				labels = "{" + strings.Join(pairs, ",") + "}"
			}

			switch {
			case m.GetCounter() != nil:
				_, err = fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				_, err = fmt.Fprintf(w, "%s%s %g\n", mf.GetName(), labels, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				_, err = fmt.Fprintf(w, "%s_count%s %d\n%s_sum%s %g\n",
					mf.GetName(), labels, h.GetSampleCount(), mf.GetName(), labels, h.GetSampleSum())
			}
			if err != nil {
				return errors.Wrap(err, "write metrics")
			}
		}
	}
	return nil
}
