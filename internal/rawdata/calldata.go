package rawdata

import (
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// CallKey identifies the two ends of a recorded call at instance or host level.
//
// On caller-reported rows Source is the calling instance id and Target is the host
// the callee was reached at (or the callee instance id for terminal dependencies).
// On callee-reported rows Source is the calling application name and Target is the
// serving instance id.
type CallKey struct {
	Source     string             `json:"source"`
	SourceType models.ServiceType `json:"source_type"`
	Target     string             `json:"target"`
	TargetType models.ServiceType `json:"target_type"`
}

func (k CallKey) less(other CallKey) bool {
	if k.Source != other.Source {
		return k.Source < other.Source
	}
	if k.Target != other.Target {
		return k.Target < other.Target
	}
	if k.SourceType.Code != other.SourceType.Code {
		return k.SourceType.Code < other.SourceType.Code
	}
	return k.TargetType.Code < other.TargetType.Code
}

// CallData holds the per-slot histograms of one CallKey
type CallData struct {
	Key   CallKey
	slots map[int64]histogram.Histogram
}

// NewCallData creates empty call data for key
func NewCallData(key CallKey) *CallData {
	return &CallData{Key: key, slots: make(map[int64]histogram.Histogram)}
}

// Add folds h into the slot starting at timestamp
func (c *CallData) Add(timestamp time.Time, h histogram.Histogram) {
	ms := timestamp.UnixMilli()
	current, ok := c.slots[ms]
	if !ok {
		current = histogram.New(c.Key.TargetType)
	}
	c.slots[ms] = current.Add(h)
}

// Total sums every slot
func (c *CallData) Total() histogram.Histogram {
	total := histogram.New(c.Key.TargetType)
	for _, h := range c.slots {
		total = total.Add(h)
	}
	return total
}

// Points returns the slot histograms in time order
func (c *CallData) Points() []histogram.Point {
	keys := make([]int64, 0, len(c.slots))
	for ms := range c.slots {
		keys = append(keys, ms)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]histogram.Point, 0, len(keys))
	for _, ms := range keys {
		points = append(points, histogram.Point{Time: utils.FromUnixMs(ms), Histogram: c.slots[ms]})
	}
	return points
}

// ObservedIn reports whether any slot falls inside window
func (c *CallData) ObservedIn(window models.TimeWindow, slot time.Duration) bool {
	for ms := range c.slots {
		if histogram.InWindow(window, slot, utils.FromUnixMs(ms)) {
			return true
		}
	}
	return false
}

func (c *CallData) clone() *CallData {
	out := NewCallData(c.Key)
	for ms, h := range c.slots {
		out.slots[ms] = h
	}
	return out
}

// CallDataMap groups call data by CallKey
type CallDataMap struct {
	data map[CallKey]*CallData
}

// NewCallDataMap creates an empty map
func NewCallDataMap() *CallDataMap {
	return &CallDataMap{data: make(map[CallKey]*CallData)}
}

// AddCallData adds one slot histogram for key
func (m *CallDataMap) AddCallData(key CallKey, timestamp time.Time, h histogram.Histogram) {
	cd := m.data[key]
	if cd == nil {
		cd = NewCallData(key)
		m.data[key] = cd
	}
	cd.Add(timestamp, h)
}

// AddCallDataMap merges every entry of other into m
func (m *CallDataMap) AddCallDataMap(other *CallDataMap) {
	if other == nil {
		return
	}
	for key, cd := range other.data {
		for ms, h := range cd.slots {
			m.AddCallData(key, utils.FromUnixMs(ms), h)
		}
	}
}

// Len returns the number of call keys
func (m *CallDataMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.data)
}

// Get returns the call data for key
func (m *CallDataMap) Get(key CallKey) (*CallData, bool) {
	if m == nil {
		return nil, false
	}
	cd, ok := m.data[key]
	return cd, ok
}

// CallData returns every entry ordered by key
func (m *CallDataMap) CallData() []*CallData {
	if m == nil {
		return nil
	}
	out := make([]*CallData, 0, len(m.data))
	for _, cd := range m.data {
		out = append(out, cd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// Total sums every entry, attributed to t
func (m *CallDataMap) Total(t models.ServiceType) histogram.Histogram {
	total := histogram.New(t)
	if m == nil {
		return total
	}
	for _, cd := range m.data {
		total = total.Add(cd.Total())
	}
	return total.WithType(t)
}

// SlotTotals sums every entry per slot, keyed by slot start in unix milliseconds
func (m *CallDataMap) SlotTotals(t models.ServiceType) map[int64]histogram.Histogram {
	out := make(map[int64]histogram.Histogram)
	if m == nil {
		return out
	}
	for _, cd := range m.data {
		for ms, h := range cd.slots {
			current, ok := out[ms]
			if !ok {
				current = histogram.New(t)
			}
			out[ms] = current.Add(h)
		}
	}
	return out
}

// ByTarget sums the slots inside window per Target, the callee instance or host.
// Targets with no slot in the window are left out.
func (m *CallDataMap) ByTarget(window models.TimeWindow, slot time.Duration, t models.ServiceType) map[string]histogram.Histogram {
	out := make(map[string]histogram.Histogram)
	if m == nil {
		return out
	}
	for key, cd := range m.data {
		for ms, h := range cd.slots {
			if !histogram.InWindow(window, slot, utils.FromUnixMs(ms)) {
				continue
			}
			out[key.Target] = out[key.Target].WithType(t).Add(h)
		}
	}
	return out
}

// TargetSeries returns one time series per Target
func (m *CallDataMap) TargetSeries(window models.TimeWindow, slot time.Duration, t models.ServiceType) map[string]*histogram.TimeSeries {
	builders := make(map[string]*histogram.SeriesBuilder)
	for _, cd := range m.CallData() {
		b := builders[cd.Key.Target]
		if b == nil {
			b = histogram.NewSeriesBuilder(window, slot, t)
			builders[cd.Key.Target] = b
		}
		for ms, h := range cd.slots {
			b.Add(utils.FromUnixMs(ms), h)
		}
	}
	out := make(map[string]*histogram.TimeSeries, len(builders))
	for target, b := range builders {
		out[target] = b.Build()
	}
	return out
}

// Clone returns a deep copy
func (m *CallDataMap) Clone() *CallDataMap {
	out := NewCallDataMap()
	if m == nil {
		return out
	}
	for key, cd := range m.data {
		out.data[key] = cd.clone()
	}
	return out
}
