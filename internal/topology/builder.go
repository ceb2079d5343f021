package topology

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/logger"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

const (
	// DefaultMaxWorkers bounds per-node fan-out
	DefaultMaxWorkers = 8
	// DefaultCallTimeout bounds each registry or histogram source call
	DefaultCallTimeout = 2 * time.Second
)

// Build kinds reported to the Recorder
const (
	BuildKindSingle       = "single"
	BuildKindObservations = "observations"
)

var tracer = otel.Tracer("topology-core/topology")

// Builder assembles application maps for one time window.
// A Builder holds no per-build state and may be used concurrently.
type Builder struct {
	window      models.TimeWindow
	slot        time.Duration
	maxSlots    int
	maxWorkers  int
	callTimeout time.Duration
	catalog     *models.Catalog
	logger      *slog.Logger
	metrics     Recorder
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics sets the build instrumentation
func WithMetrics(r Recorder) Option {
	return func(b *Builder) {
		b.metrics = orNop(r)
	}
}

// WithMaxWorkers bounds the per-node worker pool
func WithMaxWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxWorkers = n
		}
	}
}

// WithCallTimeout bounds each collaborator call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Builder) {
		if d >= 0 {
			b.callTimeout = d
		}
	}
}

// WithCatalog sets the catalog used to resolve service types of registry snapshots
func WithCatalog(c *models.Catalog) Option {
	return func(b *Builder) {
		if c != nil {
			b.catalog = c
		}
	}
}

// WithMaxSlots bounds the number of time-series slots
func WithMaxSlots(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxSlots = n
		}
	}
}

// NewBuilder creates a builder for window
func NewBuilder(window models.TimeWindow, opts ...Option) (*Builder, error) {
	if err := window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	b := &Builder{
		window:      window,
		maxSlots:    models.DefaultMaxSlots,
		maxWorkers:  DefaultMaxWorkers,
		callTimeout: DefaultCallTimeout,
		catalog:     models.DefaultCatalog(),
		logger:      logger.Component("topology"),
		metrics:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.slot = window.SlotSize(b.maxSlots)
	return b, nil
}

// Window returns the builder's window
func (b *Builder) Window() models.TimeWindow {
	return b.window
}

// Slot returns the time-series resolution chosen for the window
func (b *Builder) Slot() time.Duration {
	return b.slot
}

// BuildSingleApplication returns a map holding only app and its running instances.
// The map is empty when no instance is running.
func (b *Builder) BuildSingleApplication(ctx context.Context, app models.Application, registry InstanceRegistry) (m *ApplicationMap, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "topology.Builder.BuildSingleApplication",
		trace.WithAttributes(attribute.String("application", app.String())))
	defer func() { b.finish(span, BuildKindSingle, start, err) }()

	if registry == nil {
		return nil, fmt.Errorf("%w: instance registry is required", ErrInvalidArgument)
	}

	nodes := NewNodeList()
	links := NewLinkList()

	callCtx, cancel := b.callContext(ctx)
	agents, qerr := registry.InstancesFor(callCtx, app.Name, b.window.To)
	cancel()
	if qerr != nil {
		b.logger.Warn("instance registry unavailable", "application", app.String(), "error", qerr)
		b.metrics.RecordPartialData(PartialInventory)
		return newApplicationMap(b.window, nodes, links), nil
	}

	running := make([]models.AgentSnapshot, 0, len(agents))
	for _, a := range normalizeAgents(b.catalog, agents) {
		if a.IsRunning() {
			running = append(running, a)
		}
	}
	if len(running) == 0 {
		b.logger.Info("no running instances", "application", app.String())
		return newApplicationMap(b.window, nodes, links), nil
	}

	nodes.Add(app)
	node, _ := nodes.Get(app)
	nodes.replace(node.withHistogram(histogram.Empty(app, b.window)).withInventory(NewInventory(running)))
	return newApplicationMap(b.window, nodes, links), nil
}

// BuildFromObservations runs reconciliation, histogram aggregation and inventory
// resolution in that order. Partial data degrades single nodes; an invalid topology
// aborts the build.
func (b *Builder) BuildFromObservations(ctx context.Context, set *rawdata.DualEdgeObservationSet, registry InstanceRegistry, source NodeHistogramSource) (m *ApplicationMap, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "topology.Builder.BuildFromObservations")
	defer func() { b.finish(span, BuildKindObservations, start, err) }()

	switch {
	case set == nil:
		return nil, fmt.Errorf("%w: observation set is required", ErrInvalidArgument)
	case registry == nil:
		return nil, fmt.Errorf("%w: instance registry is required", ErrInvalidArgument)
	case source == nil:
		return nil, fmt.Errorf("%w: node histogram source is required", ErrInvalidArgument)
	}

	reconciler := NewEdgeReconciler(b.window, b.slot, b.logger, b.metrics)
	nodes, links, err := reconciler.Reconcile(set)
	if err != nil {
		return nil, err
	}
	span.AddEvent("reconciled", trace.WithAttributes(
		attribute.Int("nodes", nodes.Len()),
		attribute.Int("links", links.Len())))

	aggregator := NewHistogramAggregator(b.window, b.slot, b.maxWorkers, b.callTimeout, b.logger, b.metrics)
	if err := aggregator.Attach(ctx, nodes, links, source); err != nil {
		return nil, err
	}
	span.AddEvent("histograms attached")

	resolver := NewInventoryResolver(b.window, b.slot, b.maxWorkers, b.callTimeout, b.catalog, b.logger, b.metrics)
	if err := resolver.Resolve(ctx, nodes, set, registry); err != nil {
		return nil, err
	}
	span.AddEvent("inventories resolved")

	return newApplicationMap(b.window, nodes, links), nil
}

// HistogramSource returns the store-backed node histogram source for the builder's window
func (b *Builder) HistogramSource(store ResponseTimeStore) NodeHistogramSource {
	return StoreHistogramSource(store, b.window, b.slot)
}

// SummarySource returns the in-memory node histogram source for the builder's window
func (b *Builder) SummarySource(summary *histogram.ResponseSummary) NodeHistogramSource {
	return SummaryHistogramSource(summary, b.window, b.slot)
}

// Catalog returns the service type catalog
func (b *Builder) Catalog() *models.Catalog {
	return b.catalog
}

func (b *Builder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.callTimeout > 0 {
		return context.WithTimeout(ctx, b.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (b *Builder) finish(span trace.Span, kind string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error("build failed", "kind", kind, "window", b.window.String(), "error", err)
	}
	b.metrics.RecordBuild(kind, result, time.Since(start))
	span.End()
}
