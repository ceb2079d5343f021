package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Memory tracks agents across hosts along with their lifecycle history
type Memory struct {
	mu        sync.RWMutex
	hosts     map[string]*host
	instances map[string]*instance
}

// host groups the instances running on one machine
type host struct {
	name      string
	instances []string
}

// instance is a registered agent and its state changes, oldest first
type instance struct {
	agent   models.AgentSnapshot
	history []stateChange
}

type stateChange struct {
	at    time.Time
	state models.LifecycleState
}

// NewMemory creates an empty in-memory registry
func NewMemory() *Memory {
	return &Memory{
		hosts:     make(map[string]*host),
		instances: make(map[string]*instance),
	}
}

// Register adds or replaces an agent. Its State applies from StartedAt.
func (m *Memory) Register(agent models.AgentSnapshot) error {
	if agent.InstanceID == "" {
		return fmt.Errorf("instance id is required")
	}
	if agent.ApplicationName == "" {
		return fmt.Errorf("instance %s: application name is required", agent.InstanceID)
	}
	if agent.State == "" {
		agent.State = models.LifecycleUnknown
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.instances[agent.InstanceID]; ok {
		m.removeFromHostUnsafe(prev.agent.Hostname, agent.InstanceID)
	}
	m.instances[agent.InstanceID] = &instance{
		agent:   agent,
		history: []stateChange{{at: agent.StartedAt, state: agent.State}},
	}

	h, ok := m.hosts[agent.Hostname]
	if !ok {
		h = &host{name: agent.Hostname}
		m.hosts[agent.Hostname] = h
	}
	h.instances = append(h.instances, agent.InstanceID)
	return nil
}

// SetState records a lifecycle change of an instance at a point in time
func (m *Memory) SetState(instanceID string, state models.LifecycleState, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[instanceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, instanceID)
	}
	inst.history = append(inst.history, stateChange{at: at, state: state})
	sort.SliceStable(inst.history, func(i, j int) bool { return inst.history[i].at.Before(inst.history[j].at) })
	return nil
}

// InstancesFor returns the instances of an application started by asOf, with their state at asOf
func (m *Memory) InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.AgentSnapshot, 0)
	for _, inst := range m.instances {
		if inst.agent.ApplicationName != applicationName {
			continue
		}
		if !inst.agent.StartedAt.IsZero() && inst.agent.StartedAt.After(asOf) {
			continue
		}
		snapshot := inst.agent
		snapshot.State = inst.stateAt(asOf)
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out, nil
}

// Hosts returns the known hostnames in order
func (m *Memory) Hosts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.hosts))
	for name := range m.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstancesOnHost returns the instance ids registered on a host
func (m *Memory) InstancesOnHost(hostname string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hosts[hostname]
	if !ok {
		return nil
	}
	ids := make([]string, len(h.instances))
	copy(ids, h.instances)
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered instances
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

func (m *Memory) removeFromHostUnsafe(hostname, instanceID string) {
	h, ok := m.hosts[hostname]
	if !ok {
		return
	}
	for i, id := range h.instances {
		if id == instanceID {
			h.instances = append(h.instances[:i], h.instances[i+1:]...)
			break
		}
	}
	if len(h.instances) == 0 {
		delete(m.hosts, hostname)
	}
}

// stateAt returns the last state recorded at or before t
func (i *instance) stateAt(t time.Time) models.LifecycleState {
	state := models.LifecycleUnknown
	for _, change := range i.history {
		if change.at.After(t) {
			break
		}
		state = change.state
	}
	return state
}
