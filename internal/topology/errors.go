package topology

import "errors"

var (
	// ErrInvalidArgument is returned when a build precondition is not met
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTopology is returned when the observations describe an impossible graph.
	// The build is aborted and no partial map is returned.
	ErrInvalidTopology = errors.New("invalid topology")
)
