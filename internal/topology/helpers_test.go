package topology

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/logger"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

var (
	base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	user    = models.NewApplication("api", models.ServiceTypeUser)
	api     = models.NewApplication("api", models.ServiceTypeTomcat)
	payment = models.NewApplication("payment", models.ServiceTypeSpringBoot)
	db      = models.NewApplication("orders-db", models.ServiceTypeMySQL)
	cache   = models.NewApplication("session-cache", models.ServiceTypeRedis)
	remote  = models.NewApplication("partner.example.com", models.ServiceTypeUnknown)
)

func testWindow(t *testing.T) models.TimeWindow {
	t.Helper()
	w, err := models.NewTimeWindow(base, base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected window error: %v", err)
	}
	return w
}

func testBuilder(t *testing.T, opts ...Option) (*Builder, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{partial: map[string]int{}, dangling: map[string]int{}}
	opts = append([]Option{WithLogger(logger.New("error", io.Discard)), WithMetrics(rec)}, opts...)
	b, err := NewBuilder(testWindow(t), opts...)
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}
	return b, rec
}

func fast(t models.ServiceType, n int64) histogram.Histogram {
	return histogram.Of(t, n, 0, 0, 0, 0)
}

func rpcClient(host string) models.Application {
	return models.NewApplication(host, models.ServiceTypeHTTPClient)
}

type fakeRecorder struct {
	mu            sync.Mutex
	builds        []string
	partial       map[string]int
	dangling      map[string]int
	discrepancies int
}

func (r *fakeRecorder) RecordBuild(kind, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds = append(r.builds, kind+":"+result)
}

func (r *fakeRecorder) RecordDanglingReference(direction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dangling[direction]++
}

func (r *fakeRecorder) RecordPartialData(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial[kind]++
}

func (r *fakeRecorder) RecordDiscrepancy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discrepancies++
}

type registryFunc func(ctx context.Context, name string, asOf time.Time) ([]models.AgentSnapshot, error)

func (f registryFunc) InstancesFor(ctx context.Context, name string, asOf time.Time) ([]models.AgentSnapshot, error) {
	return f(ctx, name, asOf)
}

// staticRegistry returns fixed snapshots per application name
type staticRegistry map[string][]models.AgentSnapshot

func (r staticRegistry) InstancesFor(_ context.Context, name string, _ time.Time) ([]models.AgentSnapshot, error) {
	return r[name], nil
}

func emptySource() NodeHistogramSource {
	return NodeHistogramSourceFunc(func(_ context.Context, app models.Application) (*histogram.NodeHistogram, error) {
		return nil, nil
	})
}

func agent(id, app, host string, state models.LifecycleState) models.AgentSnapshot {
	return models.AgentSnapshot{
		InstanceID:      id,
		ApplicationName: app,
		Hostname:        host,
		ServiceType:     models.ServiceTypeTomcat,
		State:           state,
	}
}

func nodeKeys(m *ApplicationMap) []models.ApplicationKey {
	var keys []models.ApplicationKey
	for _, n := range m.Nodes() {
		keys = append(keys, n.Key())
	}
	return keys
}

func linkKeys(m *ApplicationMap) []rawdata.LinkKey {
	var keys []rawdata.LinkKey
	for _, l := range m.Links() {
		keys = append(keys, l.Key())
	}
	return keys
}
