// Package metrics records per-run pipeline metrics.
//
// Components receive a Recorder through dependency injection; the default
// NoopRecorder makes metrics optional without nil checks. The CLI injects a
// PrometheusRecorder and dumps the gathered families into the run summary;
// bookbinder is a one-shot process, so there is no scrape endpoint.
package metrics

import "time"

// ResultLabel classifies a per-chapter outcome.
type ResultLabel string

const (
	ResultOK      ResultLabel = "ok"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines the metrics operations the pipeline emits.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncChapter(result ResultLabel)
	IncRetry(stage string)
	// Dump renders all gathered metrics in text exposition format.
	Dump() (string, error)
}

// NoopRecorder is the default Recorder; every method does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncChapter(ResultLabel)                     {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) Dump() (string, error)                      { return "", nil }
