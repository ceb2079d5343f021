package topology

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// EdgeStore returns the raw edge observations of a window
type EdgeStore interface {
	QueryObservations(ctx context.Context, window models.TimeWindow) (*rawdata.DualEdgeObservationSet, error)
}

// InstanceRegistry returns the known instances of an application as of a point in time
type InstanceRegistry interface {
	InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error)
}

// ResponseTimeStore returns the self-reported response rows of an application
type ResponseTimeStore interface {
	SelectResponseTime(ctx context.Context, app models.Application, window models.TimeWindow) ([]*histogram.ResponseTime, error)
}

// NodeHistogramSource produces the self-reported histogram of a WAS node
type NodeHistogramSource interface {
	NodeHistogram(ctx context.Context, app models.Application) (*histogram.NodeHistogram, error)
}

// NodeHistogramSourceFunc adapts a function to NodeHistogramSource
type NodeHistogramSourceFunc func(ctx context.Context, app models.Application) (*histogram.NodeHistogram, error)

// NodeHistogram calls f
func (f NodeHistogramSourceFunc) NodeHistogram(ctx context.Context, app models.Application) (*histogram.NodeHistogram, error) {
	return f(ctx, app)
}

// StoreHistogramSource reads node histograms from a response time store
func StoreHistogramSource(store ResponseTimeStore, window models.TimeWindow, slot time.Duration) NodeHistogramSource {
	return NodeHistogramSourceFunc(func(ctx context.Context, app models.Application) (*histogram.NodeHistogram, error) {
		rows, err := store.SelectResponseTime(ctx, app, window)
		if err != nil {
			return nil, fmt.Errorf("select response time for %s: %w", app, err)
		}
		return histogram.FromResponseTimes(app, window, slot, rows), nil
	})
}

// SummaryHistogramSource reads node histograms from an in-memory response summary
func SummaryHistogramSource(summary *histogram.ResponseSummary, window models.TimeWindow, slot time.Duration) NodeHistogramSource {
	return NodeHistogramSourceFunc(func(_ context.Context, app models.Application) (*histogram.NodeHistogram, error) {
		return histogram.FromResponseTimes(app, window, slot, summary.ResponseTimes(app, window)), nil
	})
}
