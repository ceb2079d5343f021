package topology

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// HistogramAggregator attaches a histogram to every node, following the node's role
type HistogramAggregator struct {
	window      models.TimeWindow
	slot        time.Duration
	maxWorkers  int
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     Recorder
}

// NewHistogramAggregator creates an aggregator with bounded fan-out
func NewHistogramAggregator(window models.TimeWindow, slot time.Duration, maxWorkers int, callTimeout time.Duration, logger *slog.Logger, metrics Recorder) *HistogramAggregator {
	return &HistogramAggregator{
		window:      window,
		slot:        slot,
		maxWorkers:  maxWorkers,
		callTimeout: callTimeout,
		logger:      logger,
		metrics:     orNop(metrics),
	}
}

// Attach computes every node histogram and replaces the nodes with their new phase.
// A user node with more than one outbound link aborts with ErrInvalidTopology.
func (a *HistogramAggregator) Attach(ctx context.Context, nodes *NodeList, links *LinkList, source NodeHistogramSource) error {
	all := nodes.Nodes()
	index := indexLinks(links)
	results := make([]*histogram.NodeHistogram, len(all))

	g, gctx := errgroup.WithContext(ctx)
	if a.maxWorkers > 0 {
		g.SetLimit(a.maxWorkers)
	}
	for i, node := range all {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					a.logger.Error("histogram aggregation panicked, using empty histogram",
						"application", node.app.String(), "panic", p)
					a.metrics.RecordPartialData(PartialPanic)
					results[i] = histogram.Empty(node.app, a.window)
					err = nil
				}
			}()
			v := &roleHistogram{ctx: gctx, agg: a, node: node, index: index, source: source}
			res := models.VisitRole[histogramResult](node.Role(), v)
			if res.err != nil {
				return res.err
			}
			results[i] = res.histogram
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, node := range all {
		nodes.replace(node.withHistogram(results[i]))
	}
	return nil
}

type histogramResult struct {
	histogram *histogram.NodeHistogram
	err       error
}

type linkIndex struct {
	inbound  map[models.ApplicationKey][]*Link
	outbound map[models.ApplicationKey][]*Link
}

func indexLinks(links *LinkList) linkIndex {
	idx := linkIndex{
		inbound:  make(map[models.ApplicationKey][]*Link),
		outbound: make(map[models.ApplicationKey][]*Link),
	}
	for _, link := range links.Links() {
		idx.inbound[link.to.Key()] = append(idx.inbound[link.to.Key()], link)
		idx.outbound[link.from.Key()] = append(idx.outbound[link.from.Key()], link)
	}
	return idx
}

// roleHistogram is the per-node rule table, one method per role
type roleHistogram struct {
	ctx    context.Context
	agg    *HistogramAggregator
	node   Node
	index  linkIndex
	source NodeHistogramSource
}

func (v *roleHistogram) WAS() histogramResult {
	a := v.agg
	app := v.node.app

	ctx := v.ctx
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}
	h, err := v.source.NodeHistogram(ctx, app)
	if err != nil {
		a.logger.Warn("node histogram unavailable, using empty histogram", "application", app.String(), "error", err)
		a.metrics.RecordPartialData(PartialHistogram)
		return histogramResult{histogram: histogram.Empty(app, a.window)}
	}
	if h == nil {
		return histogramResult{histogram: histogram.Empty(app, a.window)}
	}
	return histogramResult{histogram: h}
}

func (v *roleHistogram) Terminal() histogramResult {
	nh := v.inbound()
	app := v.node.app
	for _, link := range v.index.inbound[app.Key()] {
		for id, h := range link.sourceCalls.ByTarget(v.agg.window, v.agg.slot, app.Type) {
			nh.PerInstance[id] = nh.PerInstance[id].WithType(app.Type).Add(h)
		}
	}
	merged := make(map[string]*histogram.SeriesBuilder)
	for _, link := range v.index.inbound[app.Key()] {
		for id, ts := range link.sourceCalls.TargetSeries(v.agg.window, v.agg.slot, app.Type) {
			b := merged[id]
			if b == nil {
				b = histogram.NewSeriesBuilder(v.agg.window, v.agg.slot, app.Type)
				merged[id] = b
			}
			b.AddSeries(ts)
		}
	}
	nh.PerInstanceSeries = make(map[string]*histogram.TimeSeries, len(merged))
	for id, b := range merged {
		nh.PerInstanceSeries[id] = b.Build()
	}
	return histogramResult{histogram: nh}
}

func (v *roleHistogram) Unknown() histogramResult {
	return histogramResult{histogram: v.inbound()}
}

func (v *roleHistogram) User() histogramResult {
	app := v.node.app
	outbound := v.index.outbound[app.Key()]
	switch len(outbound) {
	case 0:
		v.agg.logger.Warn("user node has no outbound link", "application", app.String())
		return histogramResult{histogram: histogram.Empty(app, v.agg.window)}
	case 1:
		link := outbound[0]
		nh := histogram.Empty(app, v.agg.window)
		nh.Self = link.histogram
		nh.TimeSeries = link.timeSeries
		return histogramResult{histogram: nh}
	default:
		v.agg.logger.Error("user node has more than one outbound link", "application", app.String(), "links", len(outbound))
		return histogramResult{err: fmt.Errorf("%w: user node %s has %d outbound links", ErrInvalidTopology, app, len(outbound))}
	}
}

func (v *roleHistogram) RPCClient() histogramResult {
	return histogramResult{histogram: histogram.Empty(v.node.app, v.agg.window)}
}

func (v *roleHistogram) Other() histogramResult {
	return histogramResult{histogram: histogram.Empty(v.node.app, v.agg.window)}
}

// inbound sums the histograms and time series of every link ending at the node
func (v *roleHistogram) inbound() *histogram.NodeHistogram {
	app := v.node.app
	nh := histogram.Empty(app, v.agg.window)
	series := histogram.NewSeriesBuilder(v.agg.window, v.agg.slot, app.Type)
	for _, link := range v.index.inbound[app.Key()] {
		nh.Self = nh.Self.Add(link.histogram)
		series.AddSeries(link.timeSeries)
	}
	nh.Self = nh.Self.WithType(app.Type)
	nh.TimeSeries = series.Build()
	return nh
}
