package histogram

import (
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// NodeHistogram is the latency summary of one node: its own histogram, the same data
// as a time series, and optionally the breakdown per instance.
type NodeHistogram struct {
	Application       models.Application
	Window            models.TimeWindow
	Self              Histogram
	TimeSeries        *TimeSeries
	PerInstance       map[string]Histogram
	PerInstanceSeries map[string]*TimeSeries
}

// Empty returns a placeholder histogram with no calls
func Empty(app models.Application, window models.TimeWindow) *NodeHistogram {
	return &NodeHistogram{
		Application: app,
		Window:      window,
		Self:        New(app.Type),
		PerInstance: map[string]Histogram{},
	}
}

// FromResponseTimes builds a node histogram from self-reported response rows
func FromResponseTimes(app models.Application, window models.TimeWindow, slot time.Duration, rows []*ResponseTime) *NodeHistogram {
	nh := Empty(app, window)

	series := NewSeriesBuilder(window, slot, app.Type)
	perInstance := make(map[string]*SeriesBuilder)

	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, id := range row.Instances() {
			h, _ := row.Instance(id)
			h = h.WithType(app.Type)
			if !series.Add(row.Timestamp, h) {
				continue
			}
			nh.Self = nh.Self.Add(h)
			nh.PerInstance[id] = nh.PerInstance[id].WithType(app.Type).Add(h)

			b := perInstance[id]
			if b == nil {
				b = NewSeriesBuilder(window, slot, app.Type)
				perInstance[id] = b
			}
			b.Add(row.Timestamp, h)
		}
	}

	nh.TimeSeries = series.Build()
	nh.PerInstanceSeries = make(map[string]*TimeSeries, len(perInstance))
	for id, b := range perInstance {
		nh.PerInstanceSeries[id] = b.Build()
	}
	return nh
}

// HasInstance reports whether the instance produced data in the window
func (nh *NodeHistogram) HasInstance(instanceID string) bool {
	if nh == nil {
		return false
	}
	_, ok := nh.PerInstance[instanceID]
	return ok
}

// InstanceIDs returns the instances with data, sorted
func (nh *NodeHistogram) InstanceIDs() []string {
	if nh == nil {
		return nil
	}
	ids := make([]string, 0, len(nh.PerInstance))
	for id := range nh.PerInstance {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
