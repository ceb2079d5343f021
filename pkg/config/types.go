package config

import (
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Config represents the main service configuration
type Config struct {
	LogLevel     string            `yaml:"log_level"`
	LogFormat    string            `yaml:"log_format"` // json or text
	Builder      Builder           `yaml:"builder"`
	Schemas      []HistogramSchema `yaml:"histogram_schemas,omitempty"`
	ServiceTypes []ServiceType     `yaml:"service_types,omitempty"`
	Registry     Registry          `yaml:"registry"`
	Store        Store             `yaml:"store"`
	Server       Server            `yaml:"server"`
}

// Builder tunes map construction
type Builder struct {
	MaxWorkers   int    `yaml:"max_workers"`
	CallTimeout  string `yaml:"call_timeout"`  // per registry or response store call, e.g. "2s"
	QueryTimeout string `yaml:"query_timeout"` // edge store query for a whole map
	MaxSlots     int    `yaml:"max_slots"`
}

// HistogramSchema sets the latency bucket thresholds of a schema
type HistogramSchema struct {
	Name   string `yaml:"name"`
	Fast   string `yaml:"fast"`
	Normal string `yaml:"normal"`
	Slow   string `yaml:"slow"`
}

// ServiceType registers or overrides a service type
type ServiceType struct {
	Code   int16  `yaml:"code"`
	Name   string `yaml:"name"`
	Desc   string `yaml:"desc,omitempty"`
	Role   string `yaml:"role"`   // was, terminal, unknown, user, rpc_client, other
	Schema string `yaml:"schema"` // normal or fast unless defined in histogram_schemas
}

// Registry configures the instance registry client
type Registry struct {
	CacheTTL       string                `yaml:"cache_ttl"`
	Retry          *RetryPolicy          `yaml:"retry,omitempty"`
	CircuitBreaker *CircuitBreakerPolicy `yaml:"circuit_breaker,omitempty"`
}

// RetryPolicy represents retry configuration
type RetryPolicy struct {
	Enabled    bool    `yaml:"enabled"`
	MaxRetries int     `yaml:"max_retries"`
	Backoff    string  `yaml:"backoff"` // exponential, linear, constant
	BaseMs     int     `yaml:"base_ms"`
	MaxMs      int     `yaml:"max_ms,omitempty"`
	Jitter     float64 `yaml:"jitter,omitempty"` // +/- fraction of each delay, 0 to 1
}

// CircuitBreakerPolicy represents circuit breaker configuration
type CircuitBreakerPolicy struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold int    `yaml:"failure_threshold"`
	SuccessThreshold int    `yaml:"success_threshold"`
	OpenTimeout      string `yaml:"open_timeout"`
}

// Store configures the SQLite backing store
type Store struct {
	Path string `yaml:"path"` // file path or ":memory:"
}

// Server configures the serving shell
type Server struct {
	HTTPAddr        string `yaml:"http_addr"`
	GRPCAddr        string `yaml:"grpc_addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Builder: Builder{
			MaxWorkers:   8,
			CallTimeout:  "2s",
			QueryTimeout: "10s",
			MaxSlots:     models.DefaultMaxSlots,
		},
		Registry: Registry{
			CacheTTL: "30s",
			Retry: &RetryPolicy{
				Enabled:    true,
				MaxRetries: 2,
				Backoff:    "exponential",
				BaseMs:     50,
				MaxMs:      1000,
				Jitter:     0.2,
			},
			CircuitBreaker: &CircuitBreakerPolicy{
				Enabled:          true,
				FailureThreshold: 5,
				SuccessThreshold: 2,
				OpenTimeout:      "30s",
			},
		},
		Store: Store{Path: "topology.db"},
		Server: Server{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: "10s",
		},
	}
}

// GetCallTimeout parses the call timeout
func (b *Builder) GetCallTimeout() (time.Duration, error) {
	return time.ParseDuration(b.CallTimeout)
}

// GetQueryTimeout parses the query timeout
func (b *Builder) GetQueryTimeout() (time.Duration, error) {
	return time.ParseDuration(b.QueryTimeout)
}

// GetCacheTTL parses the registry cache TTL
func (r *Registry) GetCacheTTL() (time.Duration, error) {
	return time.ParseDuration(r.CacheTTL)
}

// GetOpenTimeout parses how long a circuit stays open
func (c *CircuitBreakerPolicy) GetOpenTimeout() (time.Duration, error) {
	return time.ParseDuration(c.OpenTimeout)
}

// GetShutdownTimeout parses the graceful shutdown timeout
func (s *Server) GetShutdownTimeout() (time.Duration, error) {
	return time.ParseDuration(s.ShutdownTimeout)
}

// Thresholds parses the three schema thresholds
func (h *HistogramSchema) Thresholds() (fast, normal, slow time.Duration, err error) {
	if fast, err = time.ParseDuration(h.Fast); err != nil {
		return 0, 0, 0, fmt.Errorf("fast: %w", err)
	}
	if normal, err = time.ParseDuration(h.Normal); err != nil {
		return 0, 0, 0, fmt.Errorf("normal: %w", err)
	}
	if slow, err = time.ParseDuration(h.Slow); err != nil {
		return 0, 0, 0, fmt.Errorf("slow: %w", err)
	}
	return fast, normal, slow, nil
}

// Catalog returns the built-in service types overridden by the configured ones
func (c *Config) Catalog() (*models.Catalog, error) {
	byCode := make(map[int16]models.ServiceType)
	var order []int16
	for _, t := range models.DefaultServiceTypes() {
		byCode[t.Code] = t
		order = append(order, t.Code)
	}
	for _, st := range c.ServiceTypes {
		role, err := models.ParseRole(st.Role)
		if err != nil {
			return nil, fmt.Errorf("service type %s: %w", st.Name, err)
		}
		if _, exists := byCode[st.Code]; !exists {
			order = append(order, st.Code)
		}
		desc := st.Desc
		if desc == "" {
			desc = st.Name
		}
		schema := st.Schema
		if schema == "" {
			schema = models.SchemaNormal
		}
		byCode[st.Code] = models.ServiceType{Code: st.Code, Name: st.Name, Desc: desc, Role: role, Schema: schema}
	}
	types := make([]models.ServiceType, 0, len(order))
	for _, code := range order {
		types = append(types, byCode[code])
	}
	return models.NewCatalog(types...)
}
