package topology

import (
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// Discrepancy records a slot where the caller and the callee reported different
// totals for the same edge. The link keeps the larger count per bucket.
type Discrepancy struct {
	Slot   time.Time           `json:"slot"`
	Source histogram.Histogram `json:"source"`
	Target histogram.Histogram `json:"target"`
}

// Link is a directed edge between two applications. It is unique per ordered pair
// no matter how many rows reported it.
type Link struct {
	key           rawdata.LinkKey
	from          models.Application
	to            models.Application
	createdBy     rawdata.Direction
	sourceCalls   *rawdata.CallDataMap
	targetCalls   *rawdata.CallDataMap
	histogram     histogram.Histogram
	timeSeries    *histogram.TimeSeries
	discrepancies []Discrepancy
}

func newLink(from, to models.Application, createdBy rawdata.Direction) *Link {
	return &Link{
		key:         rawdata.NewLinkKey(from, to),
		from:        from,
		to:          to,
		createdBy:   createdBy,
		sourceCalls: rawdata.NewCallDataMap(),
		targetCalls: rawdata.NewCallDataMap(),
		histogram:   histogram.New(to.Type),
	}
}

// Key returns the link identity
func (l *Link) Key() rawdata.LinkKey { return l.key }

// From returns the calling application
func (l *Link) From() models.Application { return l.from }

// To returns the called application
func (l *Link) To() models.Application { return l.to }

// CreatedBy tells which observation side created the link
func (l *Link) CreatedBy() rawdata.Direction { return l.createdBy }

// SourceCalls returns the caller-reported call data
func (l *Link) SourceCalls() *rawdata.CallDataMap { return l.sourceCalls }

// TargetCalls returns the callee-reported call data
func (l *Link) TargetCalls() *rawdata.CallDataMap { return l.targetCalls }

// Histogram returns the merged histogram of both sides
func (l *Link) Histogram() histogram.Histogram { return l.histogram }

// TimeSeries returns the merged per-slot histograms
func (l *Link) TimeSeries() *histogram.TimeSeries { return l.timeSeries }

// Discrepancies returns the slots where both sides disagreed
func (l *Link) Discrepancies() []Discrepancy {
	out := make([]Discrepancy, len(l.discrepancies))
	copy(out, l.discrepancies)
	return out
}

// IsSentinel reports whether the link ends at an unresolved RPC destination
func (l *Link) IsSentinel() bool {
	return l.to.Type.IsSentinel()
}

// merge computes the link histogram from both sides. Each slot takes the bucket-wise
// union of the two reports since they describe the same calls.
func (l *Link) merge(window models.TimeWindow, slot time.Duration) {
	t := l.to.Type
	source := l.sourceCalls.SlotTotals(t)
	target := l.targetCalls.SlotTotals(t)

	slots := make([]int64, 0, len(source)+len(target))
	for ms := range source {
		slots = append(slots, ms)
	}
	for ms := range target {
		if _, ok := source[ms]; !ok {
			slots = append(slots, ms)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	series := histogram.NewSeriesBuilder(window, slot, t)
	total := histogram.New(t)
	l.discrepancies = nil
	for _, ms := range slots {
		s, hasSource := source[ms]
		g, hasTarget := target[ms]
		merged := s.WithType(t).Union(g)
		if hasSource && hasTarget && s.Total() != g.Total() {
			l.discrepancies = append(l.discrepancies, Discrepancy{Slot: utils.FromUnixMs(ms), Source: s, Target: g})
		}
		if series.Add(utils.FromUnixMs(ms), merged) {
			total = total.Add(merged)
		}
	}
	l.histogram = total
	l.timeSeries = series.Build()
}

// LinkList holds the links of a map
type LinkList struct {
	links map[rawdata.LinkKey]*Link
}

// NewLinkList creates an empty list
func NewLinkList() *LinkList {
	return &LinkList{links: make(map[rawdata.LinkKey]*Link)}
}

// addLink returns the link from -> to, creating it if needed
func (l *LinkList) addLink(from, to models.Application, createdBy rawdata.Direction) (*Link, bool) {
	key := rawdata.NewLinkKey(from, to)
	if link, ok := l.links[key]; ok {
		return link, false
	}
	link := newLink(from, to, createdBy)
	l.links[key] = link
	return link, true
}

// Get returns the link with key
func (l *LinkList) Get(key rawdata.LinkKey) (*Link, bool) {
	link, ok := l.links[key]
	return link, ok
}

// Len returns the number of links
func (l *LinkList) Len() int {
	return len(l.links)
}

// Links returns every link ordered by key
func (l *LinkList) Links() []*Link {
	out := make([]*Link, 0, len(l.links))
	for _, link := range l.links {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key.Less(out[j].key) })
	return out
}

// Inbound returns the links ending at app, ordered by key
func (l *LinkList) Inbound(app models.Application) []*Link {
	var out []*Link
	for _, link := range l.Links() {
		if link.to.Equal(app) {
			out = append(out, link)
		}
	}
	return out
}

// Outbound returns the links starting at app, ordered by key
func (l *LinkList) Outbound(app models.Application) []*Link {
	var out []*Link
	for _, link := range l.Links() {
		if link.from.Equal(app) {
			out = append(out, link)
		}
	}
	return out
}

func (l *LinkList) remove(key rawdata.LinkKey) {
	delete(l.links, key)
}
