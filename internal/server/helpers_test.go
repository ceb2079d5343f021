package server

import (
	"context"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/fixture"
	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/internal/store/sqlite"
	"github.com/GoSim-25-26J-441/topology-core/internal/topology"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

const (
	sampleFrom = "2024-01-01T10:00:00Z"
	sampleTo   = "2024-01-01T10:05:00Z"
)

// newSeededStore loads the sample fixture into an in-memory store
func newSeededStore(t *testing.T) (*sqlite.Store, *fixture.Dataset) {
	t.Helper()
	d, err := fixture.LoadFile("../../config/fixture.yaml", nil)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	store, err := sqlite.Open(":memory:", d.Catalog)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := d.Seed(context.Background(), store); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	return store, d
}

func newSampleService(t *testing.T, opts ...ServiceOption) (*MapService, *fixture.Dataset) {
	t.Helper()
	store, d := newSeededStore(t)
	opts = append([]ServiceOption{WithBuilderOptions(topology.WithCatalog(d.Catalog))}, opts...)
	return NewMapService(store, store, store, opts...), d
}

// edgeStoreFunc adapts a function to topology.EdgeStore
type edgeStoreFunc func(ctx context.Context, window models.TimeWindow) (*rawdata.DualEdgeObservationSet, error)

func (f edgeStoreFunc) QueryObservations(ctx context.Context, window models.TimeWindow) (*rawdata.DualEdgeObservationSet, error) {
	return f(ctx, window)
}

// blockingEdgeStore waits for the query deadline
var blockingEdgeStore = edgeStoreFunc(func(ctx context.Context, _ models.TimeWindow) (*rawdata.DualEdgeObservationSet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
})

// forkedUserSet has one user node calling two applications, which is not a valid map
func forkedUserSet() *rawdata.DualEdgeObservationSet {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	user := models.NewApplication("web", models.ServiceTypeUser)
	api := models.NewApplication("api", models.ServiceTypeTomcat)
	payment := models.NewApplication("payment", models.ServiceTypeSpringBoot)

	set := rawdata.NewDualEdgeObservationSet()
	for _, to := range []models.Application{api, payment} {
		key := rawdata.CallKey{Source: user.Name, SourceType: user.Type, Target: to.Name + "-1", TargetType: to.Type}
		set.AddTarget(user, to, key, base, histogram.Of(to.Type, 1, 0, 0, 0, 0))
	}
	return set
}

type emptyResponses struct{}

func (emptyResponses) SelectResponseTime(context.Context, models.Application, models.TimeWindow) ([]*histogram.ResponseTime, error) {
	return nil, nil
}
