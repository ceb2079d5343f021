package registry

import (
	"context"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/policy"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Guarded runs registry calls under retry and circuit breaker policies
type Guarded struct {
	next  InstanceRegistry
	guard *policy.Guard
	name  string
}

// NewGuarded wraps next; name identifies the backend in circuit state
func NewGuarded(next InstanceRegistry, guard *policy.Guard, name string) *Guarded {
	if name == "" {
		name = "registry"
	}
	return &Guarded{next: next, guard: guard, name: name}
}

// InstancesFor calls the wrapped registry through the guard
func (g *Guarded) InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error) {
	var agents []models.AgentSnapshot
	err := g.guard.Do(ctx, g.name, "instances_for", func(ctx context.Context) error {
		var err error
		agents, err = g.next.InstancesFor(ctx, applicationName, asOf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agents, nil
}
