// Package registry provides instance registries: an in-memory registry,
// a read-only TTL cache and a policy-guarded wrapper for remote backends.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// ErrUnknownInstance is returned when a state change names an unregistered instance
var ErrUnknownInstance = errors.New("unknown instance")

// InstanceRegistry returns the known instances of an application as of a point in time
type InstanceRegistry interface {
	InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error)
}

// Func adapts a function to InstanceRegistry
type Func func(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error)

// InstancesFor calls f
func (f Func) InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error) {
	return f(ctx, applicationName, asOf)
}

func cloneSnapshots(in []models.AgentSnapshot) []models.AgentSnapshot {
	if in == nil {
		return nil
	}
	out := make([]models.AgentSnapshot, len(in))
	copy(out, in)
	return out
}
