package topology

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

func TestUserNodeInheritsSingleOutboundLink(t *testing.T) {
	b, _ := testBuilder(t)
	set := rawdata.NewDualEdgeObservationSet()
	set.AddTarget(user, api, rawdata.CallKey{Source: "api", Target: "api-1"}, base, histogram.Of(api.Type, 6, 1, 0, 0, 2))
	set.AddTarget(user, api, rawdata.CallKey{Source: "api", Target: "api-1"}, base.Add(3*time.Minute), fast(api.Type, 1))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, ok := m.Node(user)
	if !ok {
		t.Fatalf("expected user node")
	}
	link, _ := m.Link(user, api)
	if !node.Histogram().Self.SameCounts(link.Histogram()) {
		t.Fatalf("expected user histogram %+v to equal link histogram %+v", node.Histogram().Self, link.Histogram())
	}
	if node.Histogram().TimeSeries != link.TimeSeries() {
		t.Fatalf("expected user time series to be the link's")
	}
	if node.Histogram().Self.Total() != 10 {
		t.Fatalf("expected 10 calls, got %d", node.Histogram().Self.Total())
	}
}

func TestUserNodeWithTwoOutboundLinksIsInvalid(t *testing.T) {
	b, rec := testBuilder(t)
	set := rawdata.NewDualEdgeObservationSet()
	set.AddTarget(user, api, rawdata.CallKey{Source: "api", Target: "api-1"}, base, fast(api.Type, 1))
	set.AddTarget(user, payment, rawdata.CallKey{Source: "api", Target: "payment-1"}, base, fast(payment.Type, 1))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if !errors.Is(err, ErrInvalidTopology) {
		t.Fatalf("expected ErrInvalidTopology, got %v", err)
	}
	if m != nil {
		t.Fatalf("expected no partial map")
	}
	if len(rec.builds) != 1 || rec.builds[0] != "observations:error" {
		t.Fatalf("expected failed build to be recorded, got %v", rec.builds)
	}
}

func TestUserNodeWithoutOutboundLinkIsEmpty(t *testing.T) {
	b, _ := testBuilder(t)
	set := rawdata.NewDualEdgeObservationSet()
	// the user node only shows up as a destination
	set.AddSource(api, user, rawdata.CallKey{Source: "api-1", Target: "api"}, base, fast(user.Type, 1))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if err != nil {
		t.Fatalf("expected zero outbound links to be non-fatal, got %v", err)
	}
	node, _ := m.Node(user)
	if node.Histogram() == nil || !node.Histogram().Self.IsEmpty() {
		t.Fatalf("expected empty user histogram, got %+v", node.Histogram())
	}
}

func TestWASNodeUsesSourceVerbatim(t *testing.T) {
	b, _ := testBuilder(t)
	summary := histogram.NewResponseSummary(nil, time.Minute)
	summary.AddSample(api, "api-1", base, 10*time.Millisecond, false)
	summary.AddSample(api, "api-2", base.Add(time.Minute), 4*time.Second, false)

	set := rawdata.NewDualEdgeObservationSet()
	set.AddTarget(user, api, rawdata.CallKey{Source: "api", Target: "api-1"}, base, fast(api.Type, 1))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, b.SummarySource(summary))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, _ := m.Node(api)
	nh := node.Histogram()
	if nh.Self.Fast != 1 || nh.Self.Slow != 1 {
		t.Fatalf("unexpected WAS histogram %+v", nh.Self)
	}
	if !nh.HasInstance("api-1") || !nh.HasInstance("api-2") {
		t.Fatalf("expected per-instance data for both instances, got %v", nh.InstanceIDs())
	}
}

func TestWASNodeSourceFailureDegrades(t *testing.T) {
	tests := []struct {
		name   string
		source NodeHistogramSource
		kind   string
	}{
		{
			name: "error",
			source: NodeHistogramSourceFunc(func(context.Context, models.Application) (*histogram.NodeHistogram, error) {
				return nil, errors.New("store unavailable")
			}),
			kind: PartialHistogram,
		},
		{
			name: "timeout",
			source: NodeHistogramSourceFunc(func(ctx context.Context, _ models.Application) (*histogram.NodeHistogram, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
			kind: PartialHistogram,
		},
		{
			name: "panic",
			source: NodeHistogramSourceFunc(func(context.Context, models.Application) (*histogram.NodeHistogram, error) {
				panic("corrupt row")
			}),
			kind: PartialPanic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, rec := testBuilder(t, WithCallTimeout(20*time.Millisecond))
			set := rawdata.NewDualEdgeObservationSet()
			set.AddTarget(user, api, rawdata.CallKey{Source: "api", Target: "api-1"}, base, fast(api.Type, 3))
			set.AddSource(api, db, rawdata.CallKey{Source: "api-1", Target: "db-1"}, base, fast(db.Type, 2))

			m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, tt.source)
			if err != nil {
				t.Fatalf("expected partial data to be non-fatal, got %v", err)
			}
			node, _ := m.Node(api)
			if node.Histogram() == nil || !node.Histogram().Self.IsEmpty() {
				t.Fatalf("expected empty WAS histogram, got %+v", node.Histogram())
			}
			other, _ := m.Node(db)
			if other.Histogram().Self.Total() != 2 {
				t.Fatalf("expected other nodes to be unaffected")
			}
			if rec.partial[tt.kind] != 1 {
				t.Fatalf("expected partial data %q to be recorded, got %v", tt.kind, rec.partial)
			}
		})
	}
}

func TestTerminalNodeAggregatesInboundLinks(t *testing.T) {
	b, _ := testBuilder(t)
	set := rawdata.NewDualEdgeObservationSet()
	set.AddSource(api, db, rawdata.CallKey{Source: "api-1", Target: "db-primary"}, base, fast(db.Type, 3))
	set.AddSource(api, db, rawdata.CallKey{Source: "api-2", Target: "db-replica"}, base.Add(time.Minute), histogram.Of(db.Type, 0, 0, 1, 0, 0))
	set.AddSource(payment, db, rawdata.CallKey{Source: "payment-1", Target: "db-primary"}, base, fast(db.Type, 4))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, _ := m.Node(db)
	nh := node.Histogram()
	if nh.Self.Total() != 8 {
		t.Fatalf("expected 8 calls, got %d", nh.Self.Total())
	}
	if nh.TimeSeries.Total(db.Type).Total() != 8 {
		t.Fatalf("expected time series to hold 8 calls")
	}
	if nh.PerInstance["db-primary"].Fast != 7 || nh.PerInstance["db-replica"].Slow != 1 {
		t.Fatalf("unexpected per-instance histograms %+v", nh.PerInstance)
	}
	if got := nh.PerInstanceSeries["db-primary"].Total(db.Type).Total(); got != 7 {
		t.Fatalf("expected 7 calls in db-primary series, got %d", got)
	}
}

func TestTerminalPerInstanceMatchesWindow(t *testing.T) {
	b, _ := testBuilder(t)
	set := rawdata.NewDualEdgeObservationSet()
	set.AddSource(api, db, rawdata.CallKey{Source: "api-1", Target: "db-1"}, base, fast(db.Type, 3))
	set.AddSource(api, db, rawdata.CallKey{Source: "api-1", Target: "db-old"}, base.Add(-time.Hour), fast(db.Type, 50))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, _ := m.Node(db)
	nh := node.Histogram()
	if nh.Self.Total() != 3 {
		t.Fatalf("expected 3 calls in the window, got %d", nh.Self.Total())
	}
	var sum int64
	for _, h := range nh.PerInstance {
		sum += h.Total()
	}
	if sum != nh.Self.Total() {
		t.Fatalf("per-instance sum %d disagrees with self %d: %+v", sum, nh.Self.Total(), nh.PerInstance)
	}
	if _, ok := nh.PerInstance["db-old"]; ok {
		t.Fatalf("expected no histogram for an instance idle in the window")
	}
}

func TestUnknownNodeAggregatesWithoutInstances(t *testing.T) {
	b, _ := testBuilder(t)
	set := rawdata.NewDualEdgeObservationSet()
	set.AddSource(api, remote, rawdata.CallKey{Source: "api-1", Target: "partner.example.com"}, base, fast(remote.Type, 2))
	set.AddSource(payment, remote, rawdata.CallKey{Source: "payment-1", Target: "partner.example.com"}, base, fast(remote.Type, 1))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, _ := m.Node(remote)
	if node.Histogram().Self.Total() != 3 {
		t.Fatalf("expected 3 calls, got %d", node.Histogram().Self.Total())
	}
	if len(node.Histogram().PerInstance) != 0 {
		t.Fatalf("expected no per-instance data for unknown node")
	}
}

func TestOtherRoleGetsPlaceholder(t *testing.T) {
	b, _ := testBuilder(t)
	odd := models.NewApplication("batch", models.ServiceType{Code: 7777, Name: "BATCH", Role: models.RoleOther, Schema: models.SchemaNormal})
	set := rawdata.NewDualEdgeObservationSet()
	set.AddSource(odd, db, rawdata.CallKey{Source: "batch-1", Target: "db-1"}, base, fast(db.Type, 1))

	m, err := b.BuildFromObservations(context.Background(), set, staticRegistry{}, emptySource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	node, _ := m.Node(odd)
	if node.Histogram() == nil || !node.Histogram().Self.IsEmpty() {
		t.Fatalf("expected empty placeholder histogram")
	}
	if !node.Inventory().Resolved() || node.Inventory().Len() != 0 {
		t.Fatalf("expected empty resolved inventory")
	}
}
