package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

var (
	base    = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	window  = models.TimeWindow{From: base, To: base.Add(5 * time.Minute)}
	api     = models.NewApplication("api", models.ServiceTypeTomcat)
	payment = models.NewApplication("payment", models.ServiceTypeSpringBoot)
	db      = models.NewApplication("orders-db", models.ServiceTypeMySQL)
)

// newTestStore creates an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestOpenAndPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
	// Migration is idempotent
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate error: %v", err)
	}
}

func TestQueryObservationsEmpty(t *testing.T) {
	s := newTestStore(t)
	set, err := s.QueryObservations(context.Background(), window)
	if err != nil {
		t.Fatalf("QueryObservations error: %v", err)
	}
	if !set.IsEmpty() {
		t.Fatalf("expected empty set")
	}
}

func TestQueryObservationsRejectsInvalidWindow(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.QueryObservations(context.Background(), models.TimeWindow{From: base, To: base}); err == nil {
		t.Fatalf("expected invalid window error")
	}
}

func TestInsertAndQueryObservations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	callerKey := rawdata.CallKey{Source: "api-1", SourceType: api.Type, Target: "payment-host:8080", TargetType: payment.Type}
	calleeKey := rawdata.CallKey{Source: "api", SourceType: api.Type, Target: "payment-1", TargetType: payment.Type}
	dbKey := rawdata.CallKey{Source: "api-1", SourceType: api.Type, Target: "db-host:3306", TargetType: db.Type}

	inserts := []struct {
		direction rawdata.Direction
		from, to  models.Application
		key       rawdata.CallKey
		at        time.Time
		h         histogram.Histogram
	}{
		{rawdata.DirectionSource, api, payment, callerKey, base, histogram.Of(payment.Type, 5, 1, 0, 0, 0)},
		{rawdata.DirectionSource, api, payment, callerKey, base.Add(time.Minute), histogram.Of(payment.Type, 2, 0, 0, 0, 1)},
		{rawdata.DirectionTarget, api, payment, calleeKey, base, histogram.Of(payment.Type, 5, 1, 0, 0, 0)},
		{rawdata.DirectionSource, api, db, dbKey, base, histogram.Of(db.Type, 3, 0, 0, 0, 0)},
		// Outside the window
		{rawdata.DirectionSource, api, db, dbKey, base.Add(10 * time.Minute), histogram.Of(db.Type, 100, 0, 0, 0, 0)},
	}
	for _, in := range inserts {
		if err := s.InsertObservation(ctx, in.direction, in.from, in.to, in.key, in.at, in.h); err != nil {
			t.Fatalf("InsertObservation error: %v", err)
		}
	}
	if err := s.PutAcceptor(ctx, "payment-host:8080", payment); err != nil {
		t.Fatalf("PutAcceptor error: %v", err)
	}

	set, err := s.QueryObservations(ctx, window)
	if err != nil {
		t.Fatalf("QueryObservations error: %v", err)
	}

	sources := set.SourceRows()
	if len(sources) != 2 {
		t.Fatalf("expected 2 source rows, got %d", len(sources))
	}
	paymentRow := set.Source[rawdata.NewLinkKey(api, payment)]
	if paymentRow == nil {
		t.Fatalf("expected api -> payment source row")
	}
	if total := paymentRow.Calls.Total(payment.Type).Total(); total != 9 {
		t.Fatalf("expected 9 caller-reported calls, got %d", total)
	}
	if paymentRow.To.Type.Code != models.ServiceTypeSpringBoot.Code || paymentRow.To.Type.Name != "SPRING_BOOT" {
		t.Fatalf("expected callee type resolved through the catalog, got %v", paymentRow.To.Type)
	}
	dbRow := set.Source[rawdata.NewLinkKey(api, db)]
	if dbRow == nil || dbRow.Calls.Total(db.Type).Total() != 3 {
		t.Fatalf("expected only in-window db calls")
	}

	if len(set.TargetRows()) != 1 {
		t.Fatalf("expected 1 target row, got %d", len(set.TargetRows()))
	}
	acceptor, ok := set.Acceptor("payment-host:8080")
	if !ok || !acceptor.Equal(payment) {
		t.Fatalf("expected acceptor payment, got %v (ok=%v)", acceptor, ok)
	}
}

func TestInsertObservationSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	set := rawdata.NewDualEdgeObservationSet()
	key := rawdata.CallKey{Source: "api-1", SourceType: api.Type, Target: "payment-1", TargetType: payment.Type}
	set.AddSource(api, payment, key, base, histogram.Of(payment.Type, 1, 2, 3, 0, 0))
	set.AddTarget(api, payment, key, base.Add(time.Minute), histogram.Of(payment.Type, 1, 0, 0, 0, 0))
	set.AddAcceptor("payment-host", payment)

	if err := s.InsertObservationSet(ctx, set); err != nil {
		t.Fatalf("InsertObservationSet error: %v", err)
	}
	got, err := s.QueryObservations(ctx, window)
	if err != nil {
		t.Fatalf("QueryObservations error: %v", err)
	}
	if len(got.SourceRows()) != 1 || len(got.TargetRows()) != 1 {
		t.Fatalf("expected one row per direction, got %d/%d", len(got.SourceRows()), len(got.TargetRows()))
	}
	if total := got.SourceRows()[0].Calls.Total(payment.Type); total.Slow != 3 {
		t.Fatalf("expected slow bucket 3, got %d", total.Slow)
	}
	if _, ok := got.Acceptor("payment-host"); !ok {
		t.Fatalf("expected acceptor to be stored")
	}
}

func TestSelectResponseTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := []struct {
		instance string
		at       time.Time
		h        histogram.Histogram
	}{
		{"api-1", base, histogram.Of(api.Type, 10, 0, 0, 0, 0)},
		{"api-2", base, histogram.Of(api.Type, 4, 1, 0, 0, 0)},
		{"api-1", base.Add(time.Minute), histogram.Of(api.Type, 0, 0, 1, 0, 0)},
		{"api-1", base.Add(time.Hour), histogram.Of(api.Type, 99, 0, 0, 0, 0)},
	}
	for _, r := range rows {
		if err := s.InsertResponseTime(ctx, api, r.instance, r.at, r.h); err != nil {
			t.Fatalf("InsertResponseTime error: %v", err)
		}
	}

	got, err := s.SelectResponseTime(ctx, api, window)
	if err != nil {
		t.Fatalf("SelectResponseTime error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 timestamps, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base) {
		t.Fatalf("expected first row at %s, got %s", base, got[0].Timestamp)
	}
	if ids := got[0].Instances(); len(ids) != 2 {
		t.Fatalf("expected 2 instances in first row, got %v", ids)
	}
	if total := got[0].Total().Total(); total != 15 {
		t.Fatalf("expected 15 calls in first row, got %d", total)
	}

	other, err := s.SelectResponseTime(ctx, payment, window)
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no rows for payment, got %d (err=%v)", len(other), err)
	}
}

func TestInstancesFor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	agents := []models.AgentSnapshot{
		{InstanceID: "api-1", ApplicationName: "api", Hostname: "host-a", IP: "10.0.0.1", ServiceType: api.Type, State: models.LifecycleRunning, StartedAt: base.Add(-time.Hour)},
		{InstanceID: "api-2", ApplicationName: "api", Hostname: "host-b", ServiceType: api.Type, State: models.LifecycleRunning, StartedAt: base.Add(-time.Hour)},
		{InstanceID: "api-3", ApplicationName: "api", Hostname: "host-c", ServiceType: api.Type, State: models.LifecycleRunning, StartedAt: base.Add(time.Hour)},
		{InstanceID: "payment-1", ApplicationName: "payment", Hostname: "host-d", ServiceType: payment.Type, State: models.LifecycleRunning},
	}
	for _, a := range agents {
		if err := s.PutAgent(ctx, a); err != nil {
			t.Fatalf("PutAgent error: %v", err)
		}
	}
	if err := s.PutAgentState(ctx, "api-2", models.LifecycleShutdown, base.Add(-time.Minute)); err != nil {
		t.Fatalf("PutAgentState error: %v", err)
	}
	if err := s.PutAgentState(ctx, "api-1", models.LifecycleShutdown, base.Add(time.Minute)); err != nil {
		t.Fatalf("PutAgentState error: %v", err)
	}

	got, err := s.InstancesFor(ctx, "api", base)
	if err != nil {
		t.Fatalf("InstancesFor error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 agents started by asOf, got %d", len(got))
	}
	if got[0].InstanceID != "api-1" || got[0].State != models.LifecycleRunning {
		t.Fatalf("expected api-1 running at asOf, got %s %s", got[0].InstanceID, got[0].State)
	}
	if got[0].IP != "10.0.0.1" || got[0].ServiceType.Name != "TOMCAT" {
		t.Fatalf("unexpected api-1 snapshot: %+v", got[0])
	}
	if got[1].InstanceID != "api-2" || got[1].State != models.LifecycleShutdown {
		t.Fatalf("expected api-2 shut down at asOf, got %s %s", got[1].InstanceID, got[1].State)
	}

	if err := s.PutAgent(ctx, models.AgentSnapshot{InstanceID: "x"}); err == nil {
		t.Fatalf("expected error for agent without application")
	}
}
