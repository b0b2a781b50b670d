package metrics

import (
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusRecorder implements Recorder on a private registry.
type PrometheusRecorder struct {
	registry      *prom.Registry
	stageDuration *prom.HistogramVec
	chapters      *prom.CounterVec
	retries       *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the pipeline metrics.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prom.NewRegistry()
	pr := &PrometheusRecorder{registry: reg}

	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "bookbinder",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.chapters = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "bookbinder",
		Name:      "chapters_total",
		Help:      "Chapter outcomes by result",
	}, []string{"result"})
	pr.retries = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "bookbinder",
		Name:      "render_retries_total",
		Help:      "Render retries by stage (transient failures)",
	}, []string{"stage"})

	reg.MustRegister(pr.stageDuration, pr.chapters, pr.retries)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncChapter(result ResultLabel) {
	p.chapters.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncRetry(stage string) {
	p.retries.WithLabelValues(stage).Inc()
}

// Dump gathers the registry and renders text exposition format.
func (p *PrometheusRecorder) Dump() (string, error) {
	families, err := p.registry.Gather()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	enc := expfmt.NewEncoder(&sb, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
