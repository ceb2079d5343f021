package topology

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// InventoryResolver attaches the instance inventory to every node.
// It must run after HistogramAggregator since WAS filtering reads per-instance data.
type InventoryResolver struct {
	window      models.TimeWindow
	slot        time.Duration
	maxWorkers  int
	callTimeout time.Duration
	catalog     *models.Catalog
	logger      *slog.Logger
	metrics     Recorder
}

// NewInventoryResolver creates a resolver with bounded fan-out. Terminal inventories
// only list instances with call data in a slot of window.
func NewInventoryResolver(window models.TimeWindow, slot time.Duration, maxWorkers int, callTimeout time.Duration, catalog *models.Catalog, logger *slog.Logger, metrics Recorder) *InventoryResolver {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	return &InventoryResolver{
		window:      window,
		slot:        slot,
		catalog:     catalog,
		maxWorkers:  maxWorkers,
		callTimeout: callTimeout,
		logger:      logger,
		metrics:     orNop(metrics),
	}
}

// Resolve computes every node inventory and replaces the nodes with their final phase.
// Registry failures degrade the node to an empty inventory.
func (r *InventoryResolver) Resolve(ctx context.Context, nodes *NodeList, set *rawdata.DualEdgeObservationSet, registry InstanceRegistry) error {
	all := nodes.Nodes()
	results := make([]Inventory, len(all))
	terminalRows := set.SourceRows()

	g, gctx := errgroup.WithContext(ctx)
	if r.maxWorkers > 0 {
		g.SetLimit(r.maxWorkers)
	}
	for i, node := range all {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("inventory resolution panicked, using empty inventory",
						"application", node.app.String(), "panic", p)
					r.metrics.RecordPartialData(PartialPanic)
					results[i] = NewInventory(nil)
				}
			}()
			v := &roleInventory{ctx: gctx, resolver: r, node: node, rows: terminalRows, registry: registry}
			results[i] = models.VisitRole[Inventory](node.Role(), v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, node := range all {
		nodes.replace(node.withInventory(results[i]))
	}
	return nil
}

type roleInventory struct {
	ctx      context.Context
	resolver *InventoryResolver
	node     Node
	rows     []*rawdata.EdgeObservationRow
	registry InstanceRegistry
}

func (v *roleInventory) WAS() Inventory {
	r := v.resolver
	app := v.node.app

	ctx := v.ctx
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}
	agents, err := v.registry.InstancesFor(ctx, app.Name, r.window.To)
	if err != nil {
		r.logger.Warn("instance registry unavailable, using empty inventory", "application", app.String(), "error", err)
		r.metrics.RecordPartialData(PartialInventory)
		return NewInventory(nil)
	}
	if len(agents) == 0 {
		r.logger.Warn("no instances registered", "application", app.String())
		r.metrics.RecordPartialData(PartialInventory)
		return NewInventory(nil)
	}
	return NewInventory(filterObservedOrRunning(normalizeAgents(r.catalog, agents), v.node))
}

func (v *roleInventory) Terminal() Inventory {
	app := v.node.app
	seen := make(map[string]bool)
	var agents []models.AgentSnapshot
	for _, row := range v.rows {
		if !row.To.Equal(app) {
			continue
		}
		for _, cd := range row.Calls.CallData() {
			id := cd.Key.Target
			if seen[id] || !cd.ObservedIn(v.resolver.window, v.resolver.slot) {
				continue
			}
			seen[id] = true
			agents = append(agents, models.AgentSnapshot{
				InstanceID:      id,
				ApplicationName: app.Name,
				Hostname:        id,
				ServiceType:     app.Type,
				State:           models.LifecycleUnknown,
			})
		}
	}
	return NewInventory(agents)
}

func (v *roleInventory) Unknown() Inventory {
	return UnresolvedInventory()
}

func (v *roleInventory) User() Inventory {
	return NewInventory(nil)
}

func (v *roleInventory) RPCClient() Inventory {
	return NewInventory(nil)
}

func (v *roleInventory) Other() Inventory {
	return NewInventory(nil)
}

// filterObservedOrRunning keeps the agents that produced data in the window or are
// still running at its end. It returns a new slice.
func filterObservedOrRunning(agents []models.AgentSnapshot, node Node) []models.AgentSnapshot {
	out := make([]models.AgentSnapshot, 0, len(agents))
	for _, a := range agents {
		if node.histogram.HasInstance(a.InstanceID) || a.IsRunning() {
			out = append(out, a)
		}
	}
	return out
}

// normalizeAgents fills in service types reported by code only
func normalizeAgents(catalog *models.Catalog, agents []models.AgentSnapshot) []models.AgentSnapshot {
	out := make([]models.AgentSnapshot, len(agents))
	for i, a := range agents {
		if a.ServiceType.Name == "" {
			a.ServiceType = catalog.Resolve(a.ServiceType.Code)
		}
		out[i] = a
	}
	return out
}
