package config

import (
	"fmt"
	"os"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
	"github.com/GoSim-25-26J-441/topology-core/pkg/utils"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFixture loads and parses a fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file %s: %w", path, err)
	}
	fixture, err := ParseFixtureYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture file %s: %w", path, err)
	}
	return fixture, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}

	if err := validateBuilder(&cfg.Builder); err != nil {
		return fmt.Errorf("builder validation failed: %w", err)
	}

	schemaNames := map[string]bool{models.SchemaNormal: true, models.SchemaFast: true}
	for _, s := range cfg.Schemas {
		if s.Name == "" {
			return fmt.Errorf("histogram schema name cannot be empty")
		}
		fast, normal, slow, err := s.Thresholds()
		if err != nil {
			return fmt.Errorf("histogram schema %s: %w", s.Name, err)
		}
		if fast <= 0 || normal <= fast || slow <= normal {
			return fmt.Errorf("histogram schema %s: thresholds must be positive and increasing", s.Name)
		}
		schemaNames[s.Name] = true
	}

	for _, st := range cfg.ServiceTypes {
		if st.Name == "" {
			return fmt.Errorf("service type %d: name cannot be empty", st.Code)
		}
		if st.Schema != "" && !schemaNames[st.Schema] {
			return fmt.Errorf("service type %s references unknown histogram schema: %s", st.Name, st.Schema)
		}
	}
	if _, err := cfg.Catalog(); err != nil {
		return fmt.Errorf("service_types validation failed: %w", err)
	}

	if err := validateRegistry(&cfg.Registry); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}

	if cfg.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}

	if cfg.Server.HTTPAddr == "" && cfg.Server.GRPCAddr == "" {
		return fmt.Errorf("at least one of server http_addr or grpc_addr must be set")
	}
	if _, err := cfg.Server.GetShutdownTimeout(); err != nil {
		return fmt.Errorf("invalid shutdown_timeout %s: %w", cfg.Server.ShutdownTimeout, err)
	}

	return nil
}

// validateBuilder validates the builder tuning
func validateBuilder(b *Builder) error {
	if b.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", b.MaxWorkers)
	}
	if b.MaxSlots <= 0 {
		return fmt.Errorf("max_slots must be positive, got %d", b.MaxSlots)
	}
	callTimeout, err := b.GetCallTimeout()
	if err != nil {
		return fmt.Errorf("invalid call_timeout %s: %w", b.CallTimeout, err)
	}
	if callTimeout < 0 {
		return fmt.Errorf("call_timeout cannot be negative, got %s", b.CallTimeout)
	}
	queryTimeout, err := b.GetQueryTimeout()
	if err != nil {
		return fmt.Errorf("invalid query_timeout %s: %w", b.QueryTimeout, err)
	}
	if queryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", b.QueryTimeout)
	}
	return nil
}

// validateRegistry validates the registry client configuration
func validateRegistry(r *Registry) error {
	ttl, err := r.GetCacheTTL()
	if err != nil {
		return fmt.Errorf("invalid cache_ttl %s: %w", r.CacheTTL, err)
	}
	if ttl < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %s", r.CacheTTL)
	}

	if r.Retry != nil {
		if r.Retry.MaxRetries < 0 {
			return fmt.Errorf("retry max_retries cannot be negative, got %d", r.Retry.MaxRetries)
		}
		if _, err := utils.ParseBackoffKind(r.Retry.Backoff); err != nil {
			return fmt.Errorf("invalid backoff type: %s (must be exponential, linear, or constant)", r.Retry.Backoff)
		}
		if r.Retry.BaseMs < 0 {
			return fmt.Errorf("retry base_ms cannot be negative, got %d", r.Retry.BaseMs)
		}
		if r.Retry.MaxMs < 0 {
			return fmt.Errorf("retry max_ms cannot be negative, got %d", r.Retry.MaxMs)
		}
		if r.Retry.Jitter < 0 || r.Retry.Jitter > 1 {
			return fmt.Errorf("retry jitter must be between 0 and 1, got %g", r.Retry.Jitter)
		}
	}

	if r.CircuitBreaker != nil {
		if r.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuit_breaker failure_threshold must be positive, got %d", r.CircuitBreaker.FailureThreshold)
		}
		if r.CircuitBreaker.SuccessThreshold <= 0 {
			return fmt.Errorf("circuit_breaker success_threshold must be positive, got %d", r.CircuitBreaker.SuccessThreshold)
		}
		if _, err := r.CircuitBreaker.GetOpenTimeout(); err != nil {
			return fmt.Errorf("invalid circuit_breaker open_timeout %s: %w", r.CircuitBreaker.OpenTimeout, err)
		}
	}

	return nil
}

// validateFixture validates a fixture file
func validateFixture(f *Fixture) error {
	from, err := ParseTimestamp(f.Window.From)
	if err != nil {
		return fmt.Errorf("window from: %w", err)
	}
	to, err := ParseTimestamp(f.Window.To)
	if err != nil {
		return fmt.Errorf("window to: %w", err)
	}
	if _, err := models.NewTimeWindow(from, to); err != nil {
		return err
	}

	if len(f.Edges) == 0 && f.Application == nil {
		return fmt.Errorf("at least one edge or an application must be defined")
	}
	if f.Application != nil {
		if err := validateFixtureApp(*f.Application); err != nil {
			return fmt.Errorf("application: %w", err)
		}
	}

	for i, edge := range f.Edges {
		if err := validateFixtureApp(edge.From); err != nil {
			return fmt.Errorf("edge %d: from: %w", i, err)
		}
		if err := validateFixtureApp(edge.To); err != nil {
			return fmt.Errorf("edge %d: to: %w", i, err)
		}
		if edge.Direction != "source" && edge.Direction != "target" {
			return fmt.Errorf("edge %d: direction must be 'source' or 'target', got %s", i, edge.Direction)
		}
		for j, call := range edge.Calls {
			if call.Source == "" || call.Target == "" {
				return fmt.Errorf("edge %d, call %d: source and target cannot be empty", i, j)
			}
			if _, err := ParseTimestamp(call.Timestamp); err != nil {
				return fmt.Errorf("edge %d, call %d: %w", i, j, err)
			}
			if err := validateFixtureHistogram(call.Histogram); err != nil {
				return fmt.Errorf("edge %d, call %d: %w", i, j, err)
			}
		}
	}

	for i, a := range f.Acceptors {
		if a.Host == "" {
			return fmt.Errorf("acceptor %d: host cannot be empty", i)
		}
		if err := validateFixtureApp(a.Application); err != nil {
			return fmt.Errorf("acceptor %d: %w", i, err)
		}
	}

	instanceIDs := make(map[string]bool)
	for _, a := range f.Agents {
		if a.InstanceID == "" {
			return fmt.Errorf("agent instance_id cannot be empty")
		}
		if instanceIDs[a.InstanceID] {
			return fmt.Errorf("duplicate agent instance_id: %s", a.InstanceID)
		}
		instanceIDs[a.InstanceID] = true
		if a.Application == "" {
			return fmt.Errorf("agent %s: application cannot be empty", a.InstanceID)
		}
		if _, err := models.ParseLifecycleState(a.State); err != nil {
			return fmt.Errorf("agent %s: %w", a.InstanceID, err)
		}
		if a.StartedAt != "" {
			if _, err := ParseTimestamp(a.StartedAt); err != nil {
				return fmt.Errorf("agent %s: started_at: %w", a.InstanceID, err)
			}
		}
	}

	for i, r := range f.Responses {
		if err := validateFixtureApp(r.Application); err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
		if r.InstanceID == "" {
			return fmt.Errorf("response %d: instance_id cannot be empty", i)
		}
		if _, err := ParseTimestamp(r.Timestamp); err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
		if err := validateFixtureHistogram(r.Histogram); err != nil {
			return fmt.Errorf("response %d: %w", i, err)
		}
	}

	return nil
}

func validateFixtureApp(a FixtureApp) error {
	if a.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if a.ServiceType == "" {
		return fmt.Errorf("application %s: service_type cannot be empty", a.Name)
	}
	return nil
}

func validateFixtureHistogram(h FixtureHistogram) error {
	if h.Fast < 0 || h.Normal < 0 || h.Slow < 0 || h.VerySlow < 0 || h.Error < 0 {
		return fmt.Errorf("histogram counts cannot be negative")
	}
	return nil
}

// ParseTimestamp parses an RFC 3339 timestamp as used in fixtures
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
