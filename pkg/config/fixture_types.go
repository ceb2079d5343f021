package config

// Fixture is an offline snapshot of everything a map build reads: raw edge rows,
// acceptor hosts, registered agents and self-reported response rows.
type Fixture struct {
	Window       FixtureWindow     `yaml:"window"`
	Application  *FixtureApp       `yaml:"application,omitempty"` // build a single-application map when set and edges are empty
	Edges        []FixtureEdge     `yaml:"edges"`
	Acceptors    []FixtureAcceptor `yaml:"acceptors,omitempty"`
	Agents       []FixtureAgent    `yaml:"agents,omitempty"`
	Responses    []FixtureResponse `yaml:"responses,omitempty"`
	ServiceTypes []ServiceType     `yaml:"service_types,omitempty"`
}

// FixtureWindow is an RFC 3339 time window
type FixtureWindow struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// FixtureApp names an application by name and service type name
type FixtureApp struct {
	Name        string `yaml:"name"`
	ServiceType string `yaml:"service_type"`
}

// FixtureEdge is one reported edge
type FixtureEdge struct {
	From      FixtureApp    `yaml:"from"`
	To        FixtureApp    `yaml:"to"`
	Direction string        `yaml:"direction"` // source (caller-reported) or target (callee-reported)
	Calls     []FixtureCall `yaml:"calls"`
}

// FixtureCall is one slot of call data on an edge
type FixtureCall struct {
	Source    string           `yaml:"source"`
	Target    string           `yaml:"target"`
	Timestamp string           `yaml:"timestamp"`
	Histogram FixtureHistogram `yaml:"histogram"`
}

// FixtureHistogram holds bucket counts
type FixtureHistogram struct {
	Fast     int64 `yaml:"fast"`
	Normal   int64 `yaml:"normal"`
	Slow     int64 `yaml:"slow"`
	VerySlow int64 `yaml:"very_slow"`
	Error    int64 `yaml:"error"`
}

// FixtureAcceptor maps an acceptor host to an application
type FixtureAcceptor struct {
	Host        string     `yaml:"host"`
	Application FixtureApp `yaml:"application"`
}

// FixtureAgent is a registered instance
type FixtureAgent struct {
	InstanceID  string `yaml:"instance_id"`
	Application string `yaml:"application"`
	Hostname    string `yaml:"hostname"`
	IP          string `yaml:"ip,omitempty"`
	ServiceType string `yaml:"service_type"`
	State       string `yaml:"state"`
	StartedAt   string `yaml:"started_at,omitempty"`
}

// FixtureResponse is a self-reported response row of one instance
type FixtureResponse struct {
	Application FixtureApp       `yaml:"application"`
	InstanceID  string           `yaml:"instance_id"`
	Timestamp   string           `yaml:"timestamp"`
	Histogram   FixtureHistogram `yaml:"histogram"`
}
