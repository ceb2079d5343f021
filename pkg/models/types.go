package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// DefaultMaxSlots bounds the number of time-series slots per window
const DefaultMaxSlots = 200

// ErrInvalidWindow is returned for a missing or inverted time window
var ErrInvalidWindow = errors.New("invalid time window")

// Application is a named service of a given type. It is comparable and used as a map key.
type Application struct {
	Name string      `json:"name"`
	Type ServiceType `json:"service_type"`
}

// NewApplication creates an application value
func NewApplication(name string, serviceType ServiceType) Application {
	return Application{Name: name, Type: serviceType}
}

// ApplicationKey is the identity of an application: its name and service type code
type ApplicationKey struct {
	Name string
	Code int16
}

// Key returns the identity of the application
func (a Application) Key() ApplicationKey {
	return ApplicationKey{Name: a.Name, Code: a.Type.Code}
}

// Equal compares applications by name and service type code
func (a Application) Equal(other Application) bool {
	return a.Key() == other.Key()
}

// Role returns the role of the application's service type
func (a Application) Role() Role {
	return a.Type.Role
}

func (a Application) String() string {
	return a.Name + "/" + a.Type.Name
}

// Less orders applications by name, then service type code
func (a Application) Less(other Application) bool {
	if a.Name != other.Name {
		return a.Name < other.Name
	}
	return a.Type.Code < other.Type.Code
}

// TimeWindow is the half-open interval [From, To) every query is scoped to.
// To is also the reference instant for instance liveness.
type TimeWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewTimeWindow creates a validated window
func NewTimeWindow(from, to time.Time) (TimeWindow, error) {
	w := TimeWindow{From: from, To: to}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate checks that both bounds are set and ordered
func (w TimeWindow) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidWindow)
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidWindow, w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// IsZero reports whether the window is unset
func (w TimeWindow) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// Duration returns the window length
func (w TimeWindow) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// Contains reports whether t falls in [From, To)
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// SlotSize returns the time-series resolution for the window
func (w TimeWindow) SlotSize(maxSlots int) time.Duration {
	return utils.ChooseSlotSize(w.Duration(), maxSlots)
}

// Slots returns the start of every slot overlapping the window
func (w TimeWindow) Slots(slot time.Duration) []time.Time {
	if slot <= 0 || !w.From.Before(w.To) {
		return nil
	}
	start := utils.TruncateToSlot(w.From, slot)
	slots := make([]time.Time, 0, int(w.Duration()/slot)+1)
	for t := start; t.Before(w.To); t = t.Add(slot) {
		slots = append(slots, t)
	}
	return slots
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// LifecycleState is the last known state of a process instance
type LifecycleState string

const (
	LifecycleRunning            LifecycleState = "running"
	LifecycleShutdown           LifecycleState = "shutdown"
	LifecycleUnexpectedShutdown LifecycleState = "unexpected_shutdown"
	LifecycleDisconnected       LifecycleState = "disconnected"
	LifecycleUnknown            LifecycleState = "unknown"
)

// ParseLifecycleState parses a lifecycle state name
func ParseLifecycleState(s string) (LifecycleState, error) {
	switch state := LifecycleState(strings.ToLower(strings.TrimSpace(s))); state {
	case LifecycleRunning, LifecycleShutdown, LifecycleUnexpectedShutdown, LifecycleDisconnected, LifecycleUnknown:
		return state, nil
	case "":
		return LifecycleUnknown, nil
	default:
		return LifecycleUnknown, fmt.Errorf("invalid lifecycle state: %s", s)
	}
}

// IsRunning reports whether the instance is alive
func (s LifecycleState) IsRunning() bool {
	return s == LifecycleRunning
}

// AgentSnapshot is one process instance backing an application
type AgentSnapshot struct {
	InstanceID      string         `json:"instance_id"`
	ApplicationName string         `json:"application_name"`
	Hostname        string         `json:"hostname"`
	IP              string         `json:"ip,omitempty"`
	ServiceType     ServiceType    `json:"service_type"`
	State           LifecycleState `json:"state"`
	StartedAt       time.Time      `json:"started_at,omitempty"`
}

// IsRunning reports whether the snapshot's state is running
func (a AgentSnapshot) IsRunning() bool {
	return a.State.IsRunning()
}
