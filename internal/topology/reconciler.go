package topology

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// EdgeReconciler turns a dual observation set into the node and link skeleton of a map
type EdgeReconciler struct {
	window  models.TimeWindow
	slot    time.Duration
	logger  *slog.Logger
	metrics Recorder
}

// NewEdgeReconciler creates a reconciler for window sampled at slot
func NewEdgeReconciler(window models.TimeWindow, slot time.Duration, logger *slog.Logger, metrics Recorder) *EdgeReconciler {
	return &EdgeReconciler{window: window, slot: slot, logger: logger, metrics: orNop(metrics)}
}

// Reconcile registers one node per non-sentinel application and one link per
// (from, to) pair. Rows whose endpoint has no node are logged and skipped.
func (r *EdgeReconciler) Reconcile(set *rawdata.DualEdgeObservationSet) (*NodeList, *LinkList, error) {
	if set == nil {
		return nil, nil, fmt.Errorf("%w: observation set is required", ErrInvalidArgument)
	}

	sourceRows := set.SourceRows()
	targetRows := set.TargetRows()

	nodes := NewNodeList()
	r.addNodes(nodes, sourceRows)
	r.addNodes(nodes, targetRows)

	links := NewLinkList()
	var sentinels []sentinelRow
	sentinels = r.addLinks(nodes, links, sourceRows, rawdata.DirectionSource, sentinels)
	sentinels = r.addLinks(nodes, links, targetRows, rawdata.DirectionTarget, sentinels)

	// Sentinel rows go last so every concrete link already exists when deciding suppression.
	attributed := make(map[rawdata.LinkKey]bool)
	for _, s := range sentinels {
		r.addSentinelLink(set, nodes, links, s, attributed)
	}

	for _, link := range links.Links() {
		link.merge(r.window, r.slot)
		for _, d := range link.discrepancies {
			r.logger.Warn("caller and callee disagree on call count",
				"link", link.key.String(),
				"slot", d.Slot,
				"source_total", d.Source.Total(),
				"target_total", d.Target.Total())
			r.metrics.RecordDiscrepancy()
		}
	}

	r.logger.Debug("reconciled observations", "nodes", nodes.Len(), "links", links.Len())
	return nodes, links, nil
}

type sentinelRow struct {
	row       *rawdata.EdgeObservationRow
	direction rawdata.Direction
}

func (r *EdgeReconciler) addNodes(nodes *NodeList, rows []*rawdata.EdgeObservationRow) {
	for _, row := range rows {
		for _, app := range []models.Application{row.From, row.To} {
			if app.Type.IsSentinel() {
				continue
			}
			if nodes.Add(app) {
				r.logger.Debug("created node", "application", app.String())
			}
		}
	}
}

func (r *EdgeReconciler) addLinks(nodes *NodeList, links *LinkList, rows []*rawdata.EdgeObservationRow, direction rawdata.Direction, sentinels []sentinelRow) []sentinelRow {
	for _, row := range rows {
		if !nodes.Contains(row.From) {
			r.dangling(row, direction, row.From)
			continue
		}
		if row.To.Type.IsSentinel() {
			sentinels = append(sentinels, sentinelRow{row: row, direction: direction})
			continue
		}
		if !nodes.Contains(row.To) {
			r.dangling(row, direction, row.To)
			continue
		}
		link, _ := links.addLink(row.From, row.To, direction)
		attach(link, row, direction)
	}
	return sentinels
}

// addSentinelLink attributes a row ending at an RPC client sentinel. When the call
// target resolves to a node, the row is merged into the concrete link or dropped
// if that link already exists; otherwise the link to the sentinel is kept.
func (r *EdgeReconciler) addSentinelLink(set *rawdata.DualEdgeObservationSet, nodes *NodeList, links *LinkList, s sentinelRow, attributed map[rawdata.LinkKey]bool) {
	row := s.row
	resolved, ok := r.resolveSentinel(set, nodes, row.To)
	if !ok {
		link, _ := links.addLink(row.From, row.To, s.direction)
		attach(link, row, s.direction)
		r.logger.Debug("kept unresolved remote call", "from", row.From.String(), "to", row.To.String())
		return
	}

	key := rawdata.NewLinkKey(row.From, resolved)
	if _, exists := links.Get(key); exists && !attributed[key] {
		r.logger.Debug("suppressed rpc client link", "from", row.From.String(), "to", row.To.String(), "resolved", resolved.String())
		return
	}
	link, _ := links.addLink(row.From, resolved, s.direction)
	attach(link, row, s.direction)
	attributed[key] = true
	r.logger.Debug("attributed rpc client link to resolved node", "from", row.From.String(), "resolved", resolved.String())
}

// resolveSentinel finds the node an RPC client sentinel called: first by acceptor
// host, then by a callable node carrying the same name.
func (r *EdgeReconciler) resolveSentinel(set *rawdata.DualEdgeObservationSet, nodes *NodeList, sentinel models.Application) (models.Application, bool) {
	if app, ok := set.Acceptor(sentinel.Name); ok && callable(app) && nodes.Contains(app) {
		return app, true
	}
	if n, ok := nodes.FindCallable(sentinel.Name); ok {
		return n.Application(), true
	}
	return models.Application{}, false
}

func (r *EdgeReconciler) dangling(row *rawdata.EdgeObservationRow, direction rawdata.Direction, missing models.Application) {
	r.logger.Warn("dangling reference, skipping row",
		"direction", direction.String(),
		"from", row.From.String(),
		"to", row.To.String(),
		"missing", missing.String())
	r.metrics.RecordDanglingReference(direction.String())
}

func attach(link *Link, row *rawdata.EdgeObservationRow, direction rawdata.Direction) {
	if direction == rawdata.DirectionTarget {
		link.targetCalls.AddCallDataMap(row.Calls)
		return
	}
	link.sourceCalls.AddCallDataMap(row.Calls)
}
