// Package server exposes application map builds over HTTP and gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/policy"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/internal/topology"
	"github.com/GoSim-25-26J-441/topology-core/pkg/logger"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// ErrQueryTimeout is returned when the edge store does not answer before the query deadline
var ErrQueryTimeout = errors.New("edge store query timed out")

// DefaultQueryTimeout bounds the edge store query of one build
const DefaultQueryTimeout = 10 * time.Second

// MapRequest selects the window and, optionally, the application a map is built around
type MapRequest struct {
	Window      models.TimeWindow
	Application *models.Application
}

// MapService builds application maps from the backing stores
type MapService struct {
	edges        topology.EdgeStore
	responses    topology.ResponseTimeStore
	registry     topology.InstanceRegistry
	guard        *policy.Guard
	queryTimeout time.Duration
	builderOpts  []topology.Option
	schemas      histogram.Schemas
	logger       *slog.Logger
}

// ServiceOption configures a MapService
type ServiceOption func(*MapService)

// WithQueryTimeout sets the edge store deadline; zero disables it
func WithQueryTimeout(d time.Duration) ServiceOption {
	return func(s *MapService) {
		s.queryTimeout = d
	}
}

// WithGuard runs edge and response store calls through guard
func WithGuard(g *policy.Guard) ServiceOption {
	return func(s *MapService) {
		s.guard = g
	}
}

// WithBuilderOptions passes options to every builder
func WithBuilderOptions(opts ...topology.Option) ServiceOption {
	return func(s *MapService) {
		s.builderOpts = append(s.builderOpts, opts...)
	}
}

// WithSchemas sets the schemas used to label histograms in responses
func WithSchemas(schemas histogram.Schemas) ServiceOption {
	return func(s *MapService) {
		s.schemas = schemas
	}
}

// WithServiceLogger sets the service logger
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *MapService) {
		s.logger = l
	}
}

// NewMapService creates a service over the given stores
func NewMapService(edges topology.EdgeStore, responses topology.ResponseTimeStore, registry topology.InstanceRegistry, opts ...ServiceOption) *MapService {
	s := &MapService{
		edges:        edges,
		responses:    responses,
		registry:     registry,
		guard:        policy.NewGuard(nil, nil),
		queryTimeout: DefaultQueryTimeout,
		schemas:      histogram.DefaultSchemas(),
		logger:       logger.Component("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schemas returns the histogram schemas used for labels
func (s *MapService) Schemas() histogram.Schemas {
	return s.schemas
}

// Build queries the window's observations and builds the map. With an application set
// the observations are narrowed to the edges touching it, and when there are none the
// map holds that application alone.
func (s *MapService) Build(ctx context.Context, req MapRequest) (*topology.ApplicationMap, error) {
	b, err := topology.NewBuilder(req.Window, s.builderOpts...)
	if err != nil {
		return nil, err
	}

	set, err := s.queryObservations(ctx, req.Window)
	if err != nil {
		return nil, err
	}
	if req.Application != nil {
		set = neighborhood(set, *req.Application)
		if set.IsEmpty() {
			s.logger.Debug("no observations, building single application map", "application", req.Application.String())
			return b.BuildSingleApplication(ctx, *req.Application, s.registry)
		}
	}

	return b.BuildFromObservations(ctx, set, s.registry, b.HistogramSource(guardedResponses{next: s.responses, guard: s.guard}))
}

func (s *MapService) queryObservations(ctx context.Context, window models.TimeWindow) (*rawdata.DualEdgeObservationSet, error) {
	if s.edges == nil {
		return nil, fmt.Errorf("%w: edge store is required", topology.ErrInvalidArgument)
	}
	qctx := ctx
	if s.queryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.queryTimeout)
		defer cancel()
	}

	var set *rawdata.DualEdgeObservationSet
	err := s.guard.Do(qctx, "edge_store", "query_observations", func(ctx context.Context) error {
		var err error
		set, err = s.edges.QueryObservations(ctx, window)
		return err
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrQueryTimeout, s.queryTimeout, err)
		}
		return nil, fmt.Errorf("query observations: %w", err)
	}
	if set == nil {
		set = rawdata.NewDualEdgeObservationSet()
	}
	return set, nil
}

// neighborhood keeps the rows that start or end at app, and every acceptor
func neighborhood(set *rawdata.DualEdgeObservationSet, app models.Application) *rawdata.DualEdgeObservationSet {
	out := rawdata.NewDualEdgeObservationSet()
	touches := func(row *rawdata.EdgeObservationRow) bool {
		return row.From.Key() == app.Key() || row.To.Key() == app.Key()
	}
	for key, row := range set.Source {
		if touches(row) {
			out.Source[key] = row
		}
	}
	for key, row := range set.Target {
		if touches(row) {
			out.Target[key] = row
		}
	}
	for host, acceptor := range set.Acceptors {
		out.Acceptors[host] = acceptor
	}
	return out
}

// guardedResponses runs response store calls through the policy guard
type guardedResponses struct {
	next  topology.ResponseTimeStore
	guard *policy.Guard
}

func (g guardedResponses) SelectResponseTime(ctx context.Context, app models.Application, window models.TimeWindow) ([]*histogram.ResponseTime, error) {
	if g.next == nil {
		return nil, nil
	}
	var rows []*histogram.ResponseTime
	err := g.guard.Do(ctx, "response_store", "select_response_time", func(ctx context.Context) error {
		var err error
		rows, err = g.next.SelectResponseTime(ctx, app, window)
		return err
	})
	return rows, err
}
