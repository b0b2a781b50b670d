package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopRecorder_DumpIsEmpty(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("scan", time.Second)
	r.IncChapter(ResultOK)
	r.IncRetry("render")

	out, err := r.Dump()
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestPrometheusRecorder_DumpContainsRecordedSeries(t *testing.T) {
	r := NewPrometheusRecorder()
	r.ObserveStageDuration("render", 250*time.Millisecond)
	r.IncChapter(ResultOK)
	r.IncChapter(ResultOK)
	r.IncChapter(ResultFailed)
	r.IncRetry("render")

	out, err := r.Dump()
	require.NoError(t, err)
	require.Contains(t, out, "bookbinder_stage_duration_seconds")
	require.Contains(t, out, `bookbinder_chapters_total{result="ok"} 2`)
	require.Contains(t, out, `bookbinder_chapters_total{result="failed"} 1`)
	require.Contains(t, out, `bookbinder_render_retries_total{stage="render"} 1`)
}

func TestPrometheusRecorder_IndependentRegistries(t *testing.T) {
	first := NewPrometheusRecorder()
	second := NewPrometheusRecorder()
	first.IncChapter(ResultOK)

	out, err := second.Dump()
	require.NoError(t, err)
	require.NotContains(t, out, `result="ok"} 1`)
}
