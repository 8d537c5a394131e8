package worker

import (
	"testing"

	"github.com/dunamismax/photoresize/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOutputsCountsByActionAndFormat(t *testing.T) {
	m := newMetrics()
	m.observeOutputs([]pipeline.Output{
		{Action: "export", Format: "jpeg", Bytes: 1200},
		{Action: "crop", Format: "jpeg", Bytes: 800},
		{Action: "export", Format: "jpeg", Bytes: 900},
	})

	if got := testutil.ToFloat64(m.outputsTotal.WithLabelValues("export", "jpeg")); got != 2 {
		t.Fatalf("expected 2 export outputs, got %v", got)
	}
	if got := testutil.ToFloat64(m.outputsTotal.WithLabelValues("crop", "jpeg")); got != 1 {
		t.Fatalf("expected 1 crop output, got %v", got)
	}
	if n := testutil.CollectAndCount(m.outputBytes); n != 1 {
		t.Fatalf("expected one output_bytes series, got %d", n)
	}
}
