package histogram

import (
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

func testWindow(t *testing.T) models.TimeWindow {
	t.Helper()
	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	w, err := models.NewTimeWindow(from, from.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected window error: %v", err)
	}
	return w
}

func TestSeriesBuilderZeroFills(t *testing.T) {
	w := testWindow(t)
	b := NewSeriesBuilder(w, time.Minute, models.ServiceTypeTomcat)
	if !b.Add(w.From.Add(90*time.Second), Of(models.ServiceTypeTomcat, 2, 0, 0, 0, 0)) {
		t.Fatalf("expected sample inside window to be accepted")
	}
	ts := b.Build()

	if ts.Len() != 5 {
		t.Fatalf("expected 5 slots, got %d", ts.Len())
	}
	points := ts.Points()
	for i, p := range points {
		want := w.From.Add(time.Duration(i) * time.Minute)
		if !p.Time.Equal(want) {
			t.Fatalf("slot %d: expected %v, got %v", i, want, p.Time)
		}
		if i == 1 && p.Histogram.Fast != 2 {
			t.Fatalf("expected 2 fast calls in slot 1, got %+v", p.Histogram)
		}
		if i != 1 && !p.Histogram.IsEmpty() {
			t.Fatalf("expected empty slot %d, got %+v", i, p.Histogram)
		}
	}
}

func TestSeriesBuilderDropsOutsideWindow(t *testing.T) {
	w := testWindow(t)
	b := NewSeriesBuilder(w, time.Minute, models.ServiceTypeTomcat)
	if b.Add(w.From.Add(-time.Minute), Of(models.ServiceTypeTomcat, 1, 0, 0, 0, 0)) {
		t.Fatalf("expected sample before window to be dropped")
	}
	if b.Add(w.To, Of(models.ServiceTypeTomcat, 1, 0, 0, 0, 0)) {
		t.Fatalf("expected sample at window end to be dropped")
	}
	if got := b.Build().Total(models.ServiceTypeTomcat).Total(); got != 0 {
		t.Fatalf("expected empty series, got %d calls", got)
	}
}

func TestTimeSeriesAtAndAddSeries(t *testing.T) {
	w := testWindow(t)
	a := NewSeriesBuilder(w, time.Minute, models.ServiceTypeMySQL)
	a.Add(w.From, Of(models.ServiceTypeMySQL, 1, 1, 0, 0, 0))
	b := NewSeriesBuilder(w, time.Minute, models.ServiceTypeMySQL)
	b.Add(w.From.Add(30*time.Second), Of(models.ServiceTypeMySQL, 0, 0, 0, 0, 3))

	sum := NewSeriesBuilder(w, time.Minute, models.ServiceTypeMySQL)
	sum.AddSeries(a.Build())
	sum.AddSeries(b.Build())
	ts := sum.Build()

	h, ok := ts.At(w.From.Add(10 * time.Second))
	if !ok {
		t.Fatalf("expected slot at window start")
	}
	if h.Total() != 5 || h.Error != 3 {
		t.Fatalf("unexpected first slot %+v", h)
	}
	if _, ok := ts.At(w.To.Add(time.Hour)); ok {
		t.Fatalf("expected no slot outside window")
	}
}

func TestNilTimeSeries(t *testing.T) {
	var ts *TimeSeries
	if ts.Len() != 0 || ts.Points() != nil || ts.Slot() != 0 {
		t.Fatalf("expected nil series to be empty")
	}
	if !ts.Total(models.ServiceTypeTomcat).IsEmpty() {
		t.Fatalf("expected empty total from nil series")
	}
}

func TestEmptySeries(t *testing.T) {
	w := testWindow(t)
	ts := EmptySeries(w, time.Minute, models.ServiceTypeUser)
	if ts.Len() != 5 {
		t.Fatalf("expected 5 slots, got %d", ts.Len())
	}
	for _, p := range ts.Points() {
		if p.Histogram.Type != models.ServiceTypeUser {
			t.Fatalf("expected user type on every slot")
		}
	}
}
