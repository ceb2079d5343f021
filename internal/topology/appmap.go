package topology

import (
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// ApplicationMap is the read-only result of a build
type ApplicationMap struct {
	window models.TimeWindow
	nodes  []Node
	links  []*Link
}

func newApplicationMap(window models.TimeWindow, nodes *NodeList, links *LinkList) *ApplicationMap {
	return &ApplicationMap{window: window, nodes: nodes.Nodes(), links: links.Links()}
}

// Window returns the window the map was built for
func (m *ApplicationMap) Window() models.TimeWindow {
	return m.window
}

// Nodes returns the nodes ordered by application name then service type code
func (m *ApplicationMap) Nodes() []Node {
	out := make([]Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

// Links returns the links ordered by key
func (m *ApplicationMap) Links() []*Link {
	out := make([]*Link, len(m.links))
	copy(out, m.links)
	return out
}

// Node returns the node of app
func (m *ApplicationMap) Node(app models.Application) (Node, bool) {
	for _, n := range m.nodes {
		if n.app.Equal(app) {
			return n, true
		}
	}
	return Node{}, false
}

// Link returns the link from -> to
func (m *ApplicationMap) Link(from, to models.Application) (*Link, bool) {
	key := rawdata.NewLinkKey(from, to)
	for _, l := range m.links {
		if l.key == key {
			return l, true
		}
	}
	return nil, false
}

// IsEmpty reports whether the map has no nodes
func (m *ApplicationMap) IsEmpty() bool {
	return len(m.nodes) == 0
}
