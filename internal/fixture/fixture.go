// Package fixture turns YAML observation fixtures into the inputs of a map build.
package fixture

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/internal/registry"
	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Dataset is a decoded fixture
type Dataset struct {
	Window       models.TimeWindow
	Application  *models.Application
	Observations *rawdata.DualEdgeObservationSet
	Agents       []models.AgentSnapshot
	Registry     *registry.Memory
	Responses    []*histogram.ResponseTime
	Catalog      *models.Catalog
}

// Seeder receives a dataset; the SQLite store implements it
type Seeder interface {
	InsertObservationSet(ctx context.Context, set *rawdata.DualEdgeObservationSet) error
	PutAgent(ctx context.Context, agent models.AgentSnapshot) error
	InsertResponseTime(ctx context.Context, app models.Application, instanceID string, timestamp time.Time, h histogram.Histogram) error
}

// Load decodes a validated fixture. Service types are resolved by name against the
// built-in types, then those of cfg, then those of the fixture itself.
func Load(f *config.Fixture, cfg *config.Config) (*Dataset, error) {
	if f == nil {
		return nil, fmt.Errorf("fixture is nil")
	}
	if cfg == nil {
		cfg = config.Default()
	}

	merged := &config.Config{ServiceTypes: append(append([]config.ServiceType{}, cfg.ServiceTypes...), f.ServiceTypes...)}
	catalog, err := merged.Catalog()
	if err != nil {
		return nil, fmt.Errorf("service types: %w", err)
	}
	d := &Dataset{
		Observations: rawdata.NewDualEdgeObservationSet(),
		Registry:     registry.NewMemory(),
		Catalog:      catalog,
	}

	if d.Window, err = parseWindow(f.Window); err != nil {
		return nil, err
	}
	if f.Application != nil {
		app, err := d.application(*f.Application)
		if err != nil {
			return nil, fmt.Errorf("application: %w", err)
		}
		d.Application = &app
	}
	if err := d.loadEdges(f.Edges); err != nil {
		return nil, err
	}
	for i, a := range f.Acceptors {
		app, err := d.application(a.Application)
		if err != nil {
			return nil, fmt.Errorf("acceptor %d: %w", i, err)
		}
		d.Observations.AddAcceptor(a.Host, app)
	}
	if err := d.loadAgents(f.Agents); err != nil {
		return nil, err
	}
	if err := d.loadResponses(f.Responses); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFile reads, validates and decodes a fixture file
func LoadFile(path string, cfg *config.Config) (*Dataset, error) {
	f, err := config.LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return Load(f, cfg)
}

// Summary returns the response rows as an in-memory summary
func (d *Dataset) Summary(schemas histogram.Schemas, slot time.Duration) *histogram.ResponseSummary {
	summary := histogram.NewResponseSummary(schemas, slot)
	for _, row := range d.Responses {
		summary.AddResponseTime(row)
	}
	return summary
}

// Seed writes the dataset into a store
func (d *Dataset) Seed(ctx context.Context, store Seeder) error {
	if err := store.InsertObservationSet(ctx, d.Observations); err != nil {
		return fmt.Errorf("seed observations: %w", err)
	}
	for _, agent := range d.Agents {
		if err := store.PutAgent(ctx, agent); err != nil {
			return fmt.Errorf("seed agent %s: %w", agent.InstanceID, err)
		}
	}
	for _, row := range d.Responses {
		for _, id := range row.Instances() {
			h, _ := row.Instance(id)
			if err := store.InsertResponseTime(ctx, row.Application, id, row.Timestamp, h); err != nil {
				return fmt.Errorf("seed response %s: %w", id, err)
			}
		}
	}
	return nil
}

func (d *Dataset) loadEdges(edges []config.FixtureEdge) error {
	for i, edge := range edges {
		from, err := d.application(edge.From)
		if err != nil {
			return fmt.Errorf("edge %d: from: %w", i, err)
		}
		to, err := d.application(edge.To)
		if err != nil {
			return fmt.Errorf("edge %d: to: %w", i, err)
		}
		for j, call := range edge.Calls {
			ts, err := config.ParseTimestamp(call.Timestamp)
			if err != nil {
				return fmt.Errorf("edge %d, call %d: %w", i, j, err)
			}
			key := rawdata.CallKey{Source: call.Source, SourceType: from.Type, Target: call.Target, TargetType: to.Type}
			h := toHistogram(to.Type, call.Histogram)
			switch edge.Direction {
			case "source":
				d.Observations.AddSource(from, to, key, ts, h)
			case "target":
				d.Observations.AddTarget(from, to, key, ts, h)
			default:
				return fmt.Errorf("edge %d: invalid direction %q", i, edge.Direction)
			}
		}
	}
	return nil
}

func (d *Dataset) loadAgents(agents []config.FixtureAgent) error {
	for _, a := range agents {
		serviceType := models.ServiceTypeUndefined
		if a.ServiceType != "" {
			t, ok := d.Catalog.LookupName(a.ServiceType)
			if !ok {
				return fmt.Errorf("agent %s: unknown service type %s", a.InstanceID, a.ServiceType)
			}
			serviceType = t
		}
		state, err := models.ParseLifecycleState(a.State)
		if err != nil {
			return fmt.Errorf("agent %s: %w", a.InstanceID, err)
		}
		var startedAt time.Time
		if a.StartedAt != "" {
			if startedAt, err = config.ParseTimestamp(a.StartedAt); err != nil {
				return fmt.Errorf("agent %s: %w", a.InstanceID, err)
			}
		}

		agent := models.AgentSnapshot{
			InstanceID:      a.InstanceID,
			ApplicationName: a.Application,
			Hostname:        a.Hostname,
			IP:              a.IP,
			ServiceType:     serviceType,
			State:           state,
			StartedAt:       startedAt,
		}
		if err := d.Registry.Register(agent); err != nil {
			return fmt.Errorf("agent %s: %w", a.InstanceID, err)
		}
		d.Agents = append(d.Agents, agent)
	}
	return nil
}

func (d *Dataset) loadResponses(responses []config.FixtureResponse) error {
	type rowKey struct {
		app models.ApplicationKey
		ms  int64
	}
	rows := make(map[rowKey]*histogram.ResponseTime)
	for i, r := range responses {
		app, err := d.application(r.Application)
		if err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
		ts, err := config.ParseTimestamp(r.Timestamp)
		if err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
		key := rowKey{app: app.Key(), ms: ts.UnixMilli()}
		row, ok := rows[key]
		if !ok {
			row = histogram.NewResponseTime(app, ts)
			rows[key] = row
			d.Responses = append(d.Responses, row)
		}
		row.AddInstance(r.InstanceID, toHistogram(app.Type, r.Histogram))
	}
	sort.SliceStable(d.Responses, func(i, j int) bool {
		return d.Responses[i].Timestamp.Before(d.Responses[j].Timestamp)
	})
	return nil
}

func (d *Dataset) application(a config.FixtureApp) (models.Application, error) {
	t, ok := d.Catalog.LookupName(a.ServiceType)
	if !ok {
		return models.Application{}, fmt.Errorf("%s: unknown service type %s", a.Name, a.ServiceType)
	}
	return models.NewApplication(a.Name, t), nil
}

func parseWindow(w config.FixtureWindow) (models.TimeWindow, error) {
	from, err := config.ParseTimestamp(w.From)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("window from: %w", err)
	}
	to, err := config.ParseTimestamp(w.To)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("window to: %w", err)
	}
	return models.NewTimeWindow(from, to)
}

func toHistogram(t models.ServiceType, h config.FixtureHistogram) histogram.Histogram {
	return histogram.Of(t, h.Fast, h.Normal, h.Slow, h.VerySlow, h.Error)
}
