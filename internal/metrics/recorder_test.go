package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// counterValue sums the counter samples of a family whose labels include want
func counterValue(t *testing.T, r *Recorder, name string, want map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestRecorderBuilds(t *testing.T) {
	r := NewRecorder(false)
	r.RecordBuild("observations", "ok", 10*time.Millisecond)
	r.RecordBuild("observations", "ok", 20*time.Millisecond)
	r.RecordBuild("single", "error", time.Millisecond)

	tests := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"kind": "observations", "result": "ok"}, 2},
		{map[string]string{"kind": "single", "result": "error"}, 1},
		{map[string]string{"kind": "single", "result": "ok"}, 0},
		{nil, 3},
	}
	for _, tt := range tests {
		if got := counterValue(t, r, "topology_builds_total", tt.labels); got != tt.want {
			t.Errorf("builds_total%v: expected %v, got %v", tt.labels, tt.want, got)
		}
	}
}

func TestRecorderBuildDataQuality(t *testing.T) {
	r := NewRecorder(false)
	r.RecordDanglingReference("source")
	r.RecordDanglingReference("target")
	r.RecordDanglingReference("target")
	r.RecordPartialData("inventory")
	r.RecordDiscrepancy()

	if got := counterValue(t, r, "topology_dangling_rows_total", map[string]string{"direction": "target"}); got != 2 {
		t.Fatalf("expected 2 dangling target rows, got %v", got)
	}
	if got := counterValue(t, r, "topology_partial_data_total", map[string]string{"kind": "inventory"}); got != 1 {
		t.Fatalf("expected 1 partial inventory, got %v", got)
	}
	if got := counterValue(t, r, "topology_link_discrepancies_total", nil); got != 1 {
		t.Fatalf("expected 1 discrepancy, got %v", got)
	}
}

func TestRecorderHandler(t *testing.T) {
	r := NewRecorder(true)
	r.RecordRequest("/v1/map", http.StatusOK, 5*time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	text := string(body)
	for _, want := range []string{`topology_requests_total{code="200",route="/v1/map"} 1`, "go_goroutines"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected exposition to contain %q", want)
		}
	}
}
