package histogram

import (
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// ResponseTime is the self-reported response histogram of one application for one
// time slot, broken down by the instance that served the calls.
type ResponseTime struct {
	Application models.Application
	Timestamp   time.Time
	instances   map[string]Histogram
}

// NewResponseTime creates an empty response row
func NewResponseTime(app models.Application, timestamp time.Time) *ResponseTime {
	return &ResponseTime{
		Application: app,
		Timestamp:   timestamp,
		instances:   make(map[string]Histogram),
	}
}

// AddInstance folds h into the instance's histogram
func (r *ResponseTime) AddInstance(instanceID string, h Histogram) {
	current, ok := r.instances[instanceID]
	if !ok {
		current = New(r.Application.Type)
	}
	r.instances[instanceID] = current.Add(h)
}

// Instances returns the instance ids in sorted order
func (r *ResponseTime) Instances() []string {
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Instance returns one instance's histogram
func (r *ResponseTime) Instance(instanceID string) (Histogram, bool) {
	h, ok := r.instances[instanceID]
	return h, ok
}

// Total sums every instance of the row
func (r *ResponseTime) Total() Histogram {
	total := New(r.Application.Type)
	for _, h := range r.instances {
		total = total.Add(h)
	}
	return total
}

// ResponseSummary is an in-memory collection of response rows, keyed by application.
// It is filled before a build and only read during one.
type ResponseSummary struct {
	mu      sync.RWMutex
	schemas Schemas
	slot    time.Duration
	rows    map[models.ApplicationKey]map[int64]*ResponseTime
}

// NewResponseSummary creates an empty summary. Raw samples are aligned to slot.
func NewResponseSummary(schemas Schemas, slot time.Duration) *ResponseSummary {
	if schemas == nil {
		schemas = DefaultSchemas()
	}
	if slot <= 0 {
		slot = time.Minute
	}
	return &ResponseSummary{
		schemas: schemas,
		slot:    slot,
		rows:    make(map[models.ApplicationKey]map[int64]*ResponseTime),
	}
}

// AddResponseTime merges a response row into the summary
func (s *ResponseSummary) AddResponseTime(row *ResponseTime) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.rowUnsafe(row.Application, row.Timestamp)
	for id, h := range row.instances {
		target.AddInstance(id, h)
	}
}

// AddSample records one call served by instanceID
func (s *ResponseSummary) AddSample(app models.Application, instanceID string, at time.Time, elapsed time.Duration, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema := s.schemas.For(app.Type)
	row := s.rowUnsafe(app, utils.TruncateToSlot(at, s.slot))
	row.AddInstance(instanceID, New(app.Type).AddSample(schema, elapsed, isError))
}

// ResponseTimes returns the rows of app inside window, ordered by timestamp
func (s *ResponseSummary) ResponseTimes(app models.Application, window models.TimeWindow) []*ResponseTime {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTime := s.rows[app.Key()]
	out := make([]*ResponseTime, 0, len(byTime))
	for _, row := range byTime {
		if window.Contains(row.Timestamp) {
			out = append(out, row.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// rowUnsafe returns the row for app at timestamp, creating it (caller must hold lock)
func (s *ResponseSummary) rowUnsafe(app models.Application, timestamp time.Time) *ResponseTime {
	byTime := s.rows[app.Key()]
	if byTime == nil {
		byTime = make(map[int64]*ResponseTime)
		s.rows[app.Key()] = byTime
	}
	key := timestamp.UnixMilli()
	row := byTime[key]
	if row == nil {
		row = NewResponseTime(app, timestamp)
		byTime[key] = row
	}
	return row
}

func (r *ResponseTime) clone() *ResponseTime {
	out := NewResponseTime(r.Application, r.Timestamp)
	for id, h := range r.instances {
		out.instances[id] = h
	}
	return out
}
