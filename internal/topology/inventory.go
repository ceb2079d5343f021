package topology

import (
	"sort"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Inventory is the set of instances backing a node.
// An unresolved inventory means the instances cannot be known, which is not the same
// as a resolved inventory with no instances.
type Inventory struct {
	resolved  bool
	instances []models.AgentSnapshot
}

// UnresolvedInventory returns the inventory of a node whose instances cannot be known
func UnresolvedInventory() Inventory {
	return Inventory{}
}

// NewInventory returns a resolved inventory, ordered by hostname then instance id
func NewInventory(instances []models.AgentSnapshot) Inventory {
	sorted := make([]models.AgentSnapshot, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Hostname != sorted[j].Hostname {
			return sorted[i].Hostname < sorted[j].Hostname
		}
		return sorted[i].InstanceID < sorted[j].InstanceID
	})
	return Inventory{resolved: true, instances: sorted}
}

// Resolved reports whether the inventory was looked up
func (inv Inventory) Resolved() bool {
	return inv.resolved
}

// Instances returns a copy of the instances
func (inv Inventory) Instances() []models.AgentSnapshot {
	out := make([]models.AgentSnapshot, len(inv.instances))
	copy(out, inv.instances)
	return out
}

// Len returns the number of instances
func (inv Inventory) Len() int {
	return len(inv.instances)
}

// Contains reports whether an instance id is part of the inventory
func (inv Inventory) Contains(instanceID string) bool {
	for _, a := range inv.instances {
		if a.InstanceID == instanceID {
			return true
		}
	}
	return false
}

// ByHost groups the instances by hostname
func (inv Inventory) ByHost() map[string][]models.AgentSnapshot {
	out := make(map[string][]models.AgentSnapshot)
	for _, a := range inv.instances {
		out[a.Hostname] = append(out[a.Hostname], a)
	}
	return out
}
