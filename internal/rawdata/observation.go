package rawdata

import (
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// LinkKey is the identity of a directed edge between two applications
type LinkKey struct {
	From models.ApplicationKey
	To   models.ApplicationKey
}

// NewLinkKey creates the key of the edge from -> to
func NewLinkKey(from, to models.Application) LinkKey {
	return LinkKey{From: from.Key(), To: to.Key()}
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%s(%d)->%s(%d)", k.From.Name, k.From.Code, k.To.Name, k.To.Code)
}

// Less orders keys by source then destination
func (k LinkKey) Less(other LinkKey) bool {
	if k.From != other.From {
		return applicationKeyLess(k.From, other.From)
	}
	return applicationKeyLess(k.To, other.To)
}

func applicationKeyLess(a, b models.ApplicationKey) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Code < b.Code
}

// EdgeObservationRow is the aggregated raw data of one edge reported from one side
type EdgeObservationRow struct {
	From  models.Application
	To    models.Application
	Calls *CallDataMap
}

// NewEdgeObservationRow creates a row with no calls
func NewEdgeObservationRow(from, to models.Application) *EdgeObservationRow {
	return &EdgeObservationRow{From: from, To: to, Calls: NewCallDataMap()}
}

// Key returns the edge identity of the row
func (r *EdgeObservationRow) Key() LinkKey {
	return NewLinkKey(r.From, r.To)
}

// Direction tells which side of an edge reported a row
type Direction int

const (
	DirectionSource Direction = iota
	DirectionTarget
)

func (d Direction) String() string {
	if d == DirectionTarget {
		return "target"
	}
	return "source"
}

// DualEdgeObservationSet holds the caller-reported (Source) and callee-reported
// (Target) rows of a window. The same edge usually appears on both sides.
//
// Acceptors maps the host an RPC caller addressed to the application accepting
// calls there. It resolves RPC client sentinels to concrete nodes.
type DualEdgeObservationSet struct {
	Source    map[LinkKey]*EdgeObservationRow
	Target    map[LinkKey]*EdgeObservationRow
	Acceptors map[string]models.Application
}

// NewDualEdgeObservationSet creates an empty set
func NewDualEdgeObservationSet() *DualEdgeObservationSet {
	return &DualEdgeObservationSet{
		Source:    make(map[LinkKey]*EdgeObservationRow),
		Target:    make(map[LinkKey]*EdgeObservationRow),
		Acceptors: make(map[string]models.Application),
	}
}

// AddSource records caller-reported calls on the edge from -> to
func (s *DualEdgeObservationSet) AddSource(from, to models.Application, key CallKey, timestamp time.Time, h histogram.Histogram) {
	addRow(s.Source, from, to).Calls.AddCallData(key, timestamp, h)
}

// AddTarget records callee-reported calls on the edge from -> to
func (s *DualEdgeObservationSet) AddTarget(from, to models.Application, key CallKey, timestamp time.Time, h histogram.Histogram) {
	addRow(s.Target, from, to).Calls.AddCallData(key, timestamp, h)
}

// AddAcceptor maps an acceptor host to the application serving it
func (s *DualEdgeObservationSet) AddAcceptor(host string, app models.Application) {
	s.Acceptors[host] = app
}

// Acceptor returns the application accepting calls at host
func (s *DualEdgeObservationSet) Acceptor(host string) (models.Application, bool) {
	app, ok := s.Acceptors[host]
	return app, ok
}

// SourceRows returns the caller-reported rows ordered by key
func (s *DualEdgeObservationSet) SourceRows() []*EdgeObservationRow {
	return sortedRows(s.Source)
}

// TargetRows returns the callee-reported rows ordered by key
func (s *DualEdgeObservationSet) TargetRows() []*EdgeObservationRow {
	return sortedRows(s.Target)
}

// IsEmpty reports whether neither side holds a row
func (s *DualEdgeObservationSet) IsEmpty() bool {
	return len(s.Source) == 0 && len(s.Target) == 0
}

func addRow(rows map[LinkKey]*EdgeObservationRow, from, to models.Application) *EdgeObservationRow {
	key := NewLinkKey(from, to)
	row := rows[key]
	if row == nil {
		row = NewEdgeObservationRow(from, to)
		rows[key] = row
	}
	return row
}

func sortedRows(rows map[LinkKey]*EdgeObservationRow) []*EdgeObservationRow {
	out := make([]*EdgeObservationRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}
