package telemetry

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		status int
		err    error
		want   string
	}{
		{200, nil, "2xx"},
		{204, nil, "2xx"},
		{401, nil, "401"},
		{403, nil, "4xx"},
		{503, nil, "5xx"},
		{0, errors.New("boom"), "error"},
		{0, nil, "unknown"},
	}
	for _, tt := range tests {
		if got := StatusLabel(tt.status, tt.err); got != tt.want {
			t.Errorf("StatusLabel(%d, %v) = %q, want %q", tt.status, tt.err, got, tt.want)
		}
	}
}

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("GET", 200, nil, 10*time.Millisecond)
	m.ObserveRequest("GET", 401, nil, 10*time.Millisecond)
	m.IncRetry()
	m.IncRenewal(true)
	m.IncRenewal(false)
	m.IncRenewalWait("joined")
	m.IncSessionClear("logout")
	m.IncBootstrap("authenticated")

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("401")); got != 1 {
		t.Errorf("requests{401} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RetriesTotal); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RenewalsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("renewals{failure} = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	hist, ok := byName["saccosphere_api_request_duration_seconds"]
	if !ok {
		t.Fatal("duration histogram not registered")
	}
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("histogram samples = %d, want 2", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 200, nil, time.Millisecond)
	m.IncRetry()
	m.IncRenewal(true)
	m.IncRenewalWait("joined")
	m.IncSessionClear("logout")
	m.IncBootstrap("aborted")
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.IncRenewal(true)

	path := filepath.Join(t.TempDir(), "client.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `saccosphere_credential_renewals_total{result="success"} 1`) {
		t.Errorf("textfile missing renewal counter:\n%s", data)
	}
}

func TestTracing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr, err := NewTracing(true, &buf)
	if err != nil {
		t.Fatalf("NewTracing() error = %v", err)
	}
	_, span := tr.Tracer().Start(context.Background(), "test.span")
	span.End()
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "test.span") {
		t.Errorf("exported spans missing test.span: %s", buf.String())
	}

	off, err := NewTracing(false, nil)
	if err != nil {
		t.Fatalf("NewTracing(false) error = %v", err)
	}
	_, span = off.Tracer().Start(context.Background(), "ignored")
	span.End()
	if err := off.Shutdown(context.Background()); err != nil {
		t.Errorf("noop Shutdown() error = %v", err)
	}
}
