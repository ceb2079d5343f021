package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/topology"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// MapView is the wire form of an application map
type MapView struct {
	Window WindowView `json:"window"`
	Nodes  []NodeView `json:"nodes"`
	Links  []LinkView `json:"links"`
}

// WindowView is an RFC 3339 window
type WindowView struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ApplicationView identifies an application
type ApplicationView struct {
	Name            string `json:"application_name"`
	ServiceType     string `json:"service_type"`
	ServiceTypeCode int16  `json:"service_type_code"`
}

// NodeView is one node with its histogram and instances
type NodeView struct {
	Key string `json:"key"`
	ApplicationView
	Role        string                    `json:"role"`
	Histogram   HistogramView             `json:"histogram"`
	TimeSeries  []PointView               `json:"time_series,omitempty"`
	PerInstance map[string]HistogramView  `json:"per_instance,omitempty"`
	Resolved    bool                      `json:"instances_resolved"`
	Instances   int                       `json:"instance_count"`
	ServerList  map[string][]InstanceView `json:"server_list,omitempty"`
}

// LinkView is one link with its merged histogram
type LinkView struct {
	Key           string            `json:"key"`
	From          ApplicationView   `json:"from"`
	To            ApplicationView   `json:"to"`
	CreatedBy     string            `json:"created_by"`
	Histogram     HistogramView     `json:"histogram"`
	TimeSeries    []PointView       `json:"time_series,omitempty"`
	Discrepancies []DiscrepancyView `json:"discrepancies,omitempty"`
}

// HistogramView holds bucket counts, both raw and labeled by the type's schema
type HistogramView struct {
	Total    int64            `json:"total"`
	Fast     int64            `json:"fast"`
	Normal   int64            `json:"normal"`
	Slow     int64            `json:"slow"`
	VerySlow int64            `json:"very_slow"`
	Error    int64            `json:"error"`
	Labeled  map[string]int64 `json:"labeled"`
}

// PointView is one time-series slot
type PointView struct {
	Time      string        `json:"time"`
	Histogram HistogramView `json:"histogram"`
}

// InstanceView is one agent of a node
type InstanceView struct {
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
	IP         string `json:"ip,omitempty"`
	State      string `json:"state"`
}

// DiscrepancyView is a slot where caller and callee disagree
type DiscrepancyView struct {
	Slot        string `json:"slot"`
	SourceTotal int64  `json:"source_total"`
	TargetTotal int64  `json:"target_total"`
}

// NewMapView converts a map using schemas for the histogram labels
func NewMapView(m *topology.ApplicationMap, schemas histogram.Schemas) MapView {
	if schemas == nil {
		schemas = histogram.DefaultSchemas()
	}
	view := MapView{
		Window: WindowView{From: formatTime(m.Window().From), To: formatTime(m.Window().To)},
		Nodes:  make([]NodeView, 0),
		Links:  make([]LinkView, 0),
	}

	for _, node := range m.Nodes() {
		app := node.Application()
		schema := schemas.For(app.Type)
		nv := NodeView{
			Key:             keyString(app),
			ApplicationView: applicationView(app),
			Role:            node.Role().String(),
			Resolved:        node.Inventory().Resolved(),
			Instances:       node.Inventory().Len(),
		}
		if h := node.Histogram(); h != nil {
			nv.Histogram = histogramView(h.Self, schema)
			nv.TimeSeries = seriesView(h.TimeSeries, schema)
			if len(h.PerInstance) > 0 {
				nv.PerInstance = make(map[string]HistogramView, len(h.PerInstance))
				for id, ih := range h.PerInstance {
					nv.PerInstance[id] = histogramView(ih, schema)
				}
			}
		} else {
			nv.Histogram = histogramView(histogram.New(app.Type), schema)
		}
		if byHost := node.Inventory().ByHost(); len(byHost) > 0 {
			nv.ServerList = make(map[string][]InstanceView, len(byHost))
			for hostname, agents := range byHost {
				instances := make([]InstanceView, 0, len(agents))
				for _, a := range agents {
					instances = append(instances, InstanceView{InstanceID: a.InstanceID, Hostname: a.Hostname, IP: a.IP, State: string(a.State)})
				}
				nv.ServerList[hostname] = instances
			}
		}
		view.Nodes = append(view.Nodes, nv)
	}

	for _, link := range m.Links() {
		schema := schemas.For(link.To().Type)
		lv := LinkView{
			Key:        link.Key().String(),
			From:       applicationView(link.From()),
			To:         applicationView(link.To()),
			CreatedBy:  link.CreatedBy().String(),
			Histogram:  histogramView(link.Histogram(), schema),
			TimeSeries: seriesView(link.TimeSeries(), schema),
		}
		for _, d := range link.Discrepancies() {
			lv.Discrepancies = append(lv.Discrepancies, DiscrepancyView{
				Slot:        formatTime(d.Slot),
				SourceTotal: d.Source.Total(),
				TargetTotal: d.Target.Total(),
			})
		}
		view.Links = append(view.Links, lv)
	}

	sort.Slice(view.Nodes, func(i, j int) bool { return view.Nodes[i].Key < view.Nodes[j].Key })
	return view
}

// Struct converts the view to a protobuf Struct through its JSON form
func (v MapView) Struct() (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal map view: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal map view: %w", err)
	}
	return structpb.NewStruct(fields)
}

func applicationView(app models.Application) ApplicationView {
	return ApplicationView{Name: app.Name, ServiceType: app.Type.Name, ServiceTypeCode: app.Type.Code}
}

func keyString(app models.Application) string {
	return fmt.Sprintf("%s^%s", app.Name, app.Type.Name)
}

func histogramView(h histogram.Histogram, schema histogram.Schema) HistogramView {
	return HistogramView{
		Total:    h.Total(),
		Fast:     h.Fast,
		Normal:   h.Normal,
		Slow:     h.Slow,
		VerySlow: h.VerySlow,
		Error:    h.Error,
		Labeled:  h.Labeled(schema),
	}
}

func seriesView(ts *histogram.TimeSeries, schema histogram.Schema) []PointView {
	if ts == nil {
		return nil
	}
	points := ts.Points()
	out := make([]PointView, 0, len(points))
	for _, p := range points {
		out = append(out, PointView{Time: formatTime(p.Time), Histogram: histogramView(p.Histogram, schema)})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
