package topology

import (
	"sort"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Node is one application of the map. Nodes are values built in phases: the
// reconciler creates the skeleton, the aggregator attaches the histogram and the
// resolver attaches the inventory. Each phase returns a new value.
type Node struct {
	app       models.Application
	histogram *histogram.NodeHistogram
	inventory Inventory
}

func newNode(app models.Application) Node {
	return Node{app: app}
}

func (n Node) withHistogram(h *histogram.NodeHistogram) Node {
	n.histogram = h
	return n
}

func (n Node) withInventory(inv Inventory) Node {
	n.inventory = inv
	return n
}

// Application returns the node's application
func (n Node) Application() models.Application {
	return n.app
}

// Key returns the node identity
func (n Node) Key() models.ApplicationKey {
	return n.app.Key()
}

// Role returns the role of the node's service type
func (n Node) Role() models.Role {
	return n.app.Role()
}

// Histogram returns the node histogram, nil before aggregation
func (n Node) Histogram() *histogram.NodeHistogram {
	return n.histogram
}

// Inventory returns the node's instances
func (n Node) Inventory() Inventory {
	return n.inventory
}

// NodeList holds one node per distinct application
type NodeList struct {
	nodes map[models.ApplicationKey]Node
}

// NewNodeList creates an empty list
func NewNodeList() *NodeList {
	return &NodeList{nodes: make(map[models.ApplicationKey]Node)}
}

// Add registers app unless it is already present. It reports whether a node was created.
func (l *NodeList) Add(app models.Application) bool {
	if _, ok := l.nodes[app.Key()]; ok {
		return false
	}
	l.nodes[app.Key()] = newNode(app)
	return true
}

// Get returns the node of app
func (l *NodeList) Get(app models.Application) (Node, bool) {
	n, ok := l.nodes[app.Key()]
	return n, ok
}

// Contains reports whether app has a node
func (l *NodeList) Contains(app models.Application) bool {
	_, ok := l.nodes[app.Key()]
	return ok
}

// FindByName returns the non-sentinel nodes carrying name, ordered by service type code
func (l *NodeList) FindByName(name string) []Node {
	var out []Node
	for _, n := range l.nodes {
		if n.app.Name == name {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].app.Less(out[j].app) })
	return out
}

// FindCallable returns the node named name that can receive calls. User entry nodes
// never do; WAS nodes win over other roles, then the lowest service type code.
func (l *NodeList) FindCallable(name string) (Node, bool) {
	var best Node
	found := false
	for _, n := range l.FindByName(name) {
		if !callable(n.app) {
			continue
		}
		if !found || (n.Role() == models.RoleWAS && best.Role() != models.RoleWAS) {
			best = n
			found = true
		}
	}
	return best, found
}

func callable(app models.Application) bool {
	role := app.Role()
	return role != models.RoleUser && role != models.RoleRPCClient
}

// Len returns the number of nodes
func (l *NodeList) Len() int {
	return len(l.nodes)
}

// Nodes returns every node ordered by application name then service type code
func (l *NodeList) Nodes() []Node {
	out := make([]Node, 0, len(l.nodes))
	for _, n := range l.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].app.Less(out[j].app) })
	return out
}

func (l *NodeList) replace(n Node) {
	l.nodes[n.Key()] = n
}
