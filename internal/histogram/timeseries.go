package histogram

import (
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// Point is the histogram of one time slot
type Point struct {
	Time      time.Time `json:"time"`
	Histogram Histogram `json:"histogram"`
}

// TimeSeries is a window-aligned sequence of slot histograms.
// Every slot of the window is present; slots without data hold an empty histogram.
type TimeSeries struct {
	window models.TimeWindow
	slot   time.Duration
	points []Point
}

// Window returns the window the series covers
func (ts *TimeSeries) Window() models.TimeWindow {
	if ts == nil {
		return models.TimeWindow{}
	}
	return ts.window
}

// Slot returns the slot size
func (ts *TimeSeries) Slot() time.Duration {
	if ts == nil {
		return 0
	}
	return ts.slot
}

// Points returns a copy of the series points in time order
func (ts *TimeSeries) Points() []Point {
	if ts == nil {
		return nil
	}
	out := make([]Point, len(ts.points))
	copy(out, ts.points)
	return out
}

// Len returns the number of slots
func (ts *TimeSeries) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.points)
}

// At returns the histogram of the slot containing t
func (ts *TimeSeries) At(t time.Time) (Histogram, bool) {
	if ts == nil {
		return Histogram{}, false
	}
	start := utils.TruncateToSlot(t, ts.slot)
	for _, p := range ts.points {
		if p.Time.Equal(start) {
			return p.Histogram, true
		}
	}
	return Histogram{}, false
}

// Total sums every slot of the series
func (ts *TimeSeries) Total(t models.ServiceType) Histogram {
	total := New(t)
	if ts == nil {
		return total
	}
	for _, p := range ts.points {
		total = total.Add(p.Histogram)
	}
	return total
}

// SeriesBuilder accumulates slot histograms into a TimeSeries.
// A builder is owned by one goroutine.
type SeriesBuilder struct {
	window  models.TimeWindow
	slot    time.Duration
	typ     models.ServiceType
	buckets map[int64]Histogram
}

// NewSeriesBuilder creates a builder for window sampled at slot
func NewSeriesBuilder(window models.TimeWindow, slot time.Duration, t models.ServiceType) *SeriesBuilder {
	return &SeriesBuilder{
		window:  window,
		slot:    slot,
		typ:     t,
		buckets: make(map[int64]Histogram),
	}
}

// InWindow reports whether the slot containing at belongs to a series of window
func InWindow(window models.TimeWindow, slot time.Duration, at time.Time) bool {
	start := utils.TruncateToSlot(at, slot)
	return !start.Before(utils.TruncateToSlot(window.From, slot)) && start.Before(window.To)
}

// Add folds h into the slot containing at. Samples outside the window are dropped.
func (b *SeriesBuilder) Add(at time.Time, h Histogram) bool {
	if !InWindow(b.window, b.slot, at) {
		return false
	}
	key := utils.TruncateToSlot(at, b.slot).UnixMilli()
	current, ok := b.buckets[key]
	if !ok {
		current = New(b.typ)
	}
	b.buckets[key] = current.Add(h)
	return true
}

// AddSeries folds every point of ts into the builder
func (b *SeriesBuilder) AddSeries(ts *TimeSeries) {
	if ts == nil {
		return
	}
	for _, p := range ts.points {
		b.Add(p.Time, p.Histogram)
	}
}

// Build returns the zero-filled series
func (b *SeriesBuilder) Build() *TimeSeries {
	slots := b.window.Slots(b.slot)
	points := make([]Point, 0, len(slots))
	for _, start := range slots {
		h, ok := b.buckets[start.UnixMilli()]
		if !ok {
			h = New(b.typ)
		}
		points = append(points, Point{Time: start, Histogram: h.WithType(b.typ)})
	}
	return &TimeSeries{window: b.window, slot: b.slot, points: points}
}

// EmptySeries returns a zero-filled series for the window
func EmptySeries(window models.TimeWindow, slot time.Duration, t models.ServiceType) *TimeSeries {
	return NewSeriesBuilder(window, slot, t).Build()
}
