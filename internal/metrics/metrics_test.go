package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOrigin(t *testing.T) {
	if got := Origin(true); got != "bulk" {
		t.Errorf("Origin(true) = %q; want bulk", got)
	}
	if got := Origin(false); got != "single" {
		t.Errorf("Origin(false) = %q; want single", got)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if pagesGeneratedTotal == nil || jobsTotal == nil ||
		httpRequestsTotal == nil || activeWorkers == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObservePage(t *testing.T) {
	Init()
	before := testutil.ToFloat64(pagesGeneratedTotal.WithLabelValues("single", "success"))
	bytesBefore := testutil.ToFloat64(pageBytesTotal)

	ObservePage("single", "success", 128, 10*time.Millisecond)

	if val := testutil.ToFloat64(pagesGeneratedTotal.WithLabelValues("single", "success")); val != before+1 {
		t.Errorf("Expected pages counter to be %f, got %f", before+1, val)
	}
	if val := testutil.ToFloat64(pageBytesTotal); val != bytesBefore+128 {
		t.Errorf("Expected page bytes to be %f, got %f", bytesBefore+128, val)
	}
}

func TestActiveWorkersGauge(t *testing.T) {
	Init()
	start := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if val := testutil.ToFloat64(activeWorkers); val != start+1 {
		t.Errorf("Expected active workers to be %f, got %f", start+1, val)
	}
}

func TestObserveJobAndRow(t *testing.T) {
	Init()
	jobs := testutil.ToFloat64(jobsTotal.WithLabelValues("completed"))
	rows := testutil.ToFloat64(bulkRowsTotal.WithLabelValues("failed"))

	ObserveJob("completed")
	ObserveRow("failed")

	if val := testutil.ToFloat64(jobsTotal.WithLabelValues("completed")); val != jobs+1 {
		t.Errorf("Expected jobs counter to be %f, got %f", jobs+1, val)
	}
	if val := testutil.ToFloat64(bulkRowsTotal.WithLabelValues("failed")); val != rows+1 {
		t.Errorf("Expected rows counter to be %f, got %f", rows+1, val)
	}
}
