package models

import (
	"fmt"
	"sort"
	"strings"
)

// Role classifies how a service type takes part in the topology.
// The set of roles is closed; use VisitRole to dispatch on it.
type Role uint8

const (
	RoleOther Role = iota
	RoleWAS
	RoleTerminal
	RoleUnknown
	RoleUser
	RoleRPCClient
)

// Roles lists every role variant
var Roles = []Role{RoleOther, RoleWAS, RoleTerminal, RoleUnknown, RoleUser, RoleRPCClient}

func (r Role) String() string {
	switch r {
	case RoleWAS:
		return "was"
	case RoleTerminal:
		return "terminal"
	case RoleUnknown:
		return "unknown"
	case RoleUser:
		return "user"
	case RoleRPCClient:
		return "rpc_client"
	default:
		return "other"
	}
}

// ParseRole parses a role name as written in configuration
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "was":
		return RoleWAS, nil
	case "terminal":
		return RoleTerminal, nil
	case "unknown":
		return RoleUnknown, nil
	case "user":
		return RoleUser, nil
	case "rpc_client":
		return RoleRPCClient, nil
	case "other", "":
		return RoleOther, nil
	default:
		return RoleOther, fmt.Errorf("invalid role: %s (must be was, terminal, unknown, user, rpc_client, or other)", s)
	}
}

// RoleVisitor has one method per role variant.
// Adding a role means adding a method here, which breaks every visitor until it handles it.
type RoleVisitor[T any] interface {
	WAS() T
	Terminal() T
	Unknown() T
	User() T
	RPCClient() T
	Other() T
}

// VisitRole dispatches r to the matching visitor method
func VisitRole[T any](r Role, v RoleVisitor[T]) T {
	switch r {
	case RoleWAS:
		return v.WAS()
	case RoleTerminal:
		return v.Terminal()
	case RoleUnknown:
		return v.Unknown()
	case RoleUser:
		return v.User()
	case RoleRPCClient:
		return v.RPCClient()
	default:
		return v.Other()
	}
}

// Histogram schema names
const (
	SchemaNormal = "normal"
	SchemaFast   = "fast"
)

// ServiceType identifies the kind of process or dependency behind an application
type ServiceType struct {
	Code   int16  `json:"code" yaml:"code"`
	Name   string `json:"name" yaml:"name"`
	Desc   string `json:"desc,omitempty" yaml:"desc,omitempty"`
	Role   Role   `json:"role" yaml:"-"`
	Schema string `json:"schema" yaml:"schema"`
}

// IsSentinel reports whether the type marks an unresolved outgoing RPC
func (t ServiceType) IsSentinel() bool {
	return t.Role == RoleRPCClient
}

func (t ServiceType) String() string {
	return fmt.Sprintf("%s(%d)", t.Name, t.Code)
}

// Built-in service types
var (
	ServiceTypeUndefined  = ServiceType{Code: -1, Name: "UNDEFINED", Desc: "UNDEFINED", Role: RoleOther, Schema: SchemaNormal}
	ServiceTypeUnknown    = ServiceType{Code: 1, Name: "UNKNOWN", Desc: "UNKNOWN", Role: RoleUnknown, Schema: SchemaNormal}
	ServiceTypeUser       = ServiceType{Code: 2, Name: "USER", Desc: "USER", Role: RoleUser, Schema: SchemaNormal}
	ServiceTypeStandAlone = ServiceType{Code: 1000, Name: "STAND_ALONE", Desc: "STAND_ALONE", Role: RoleWAS, Schema: SchemaNormal}
	ServiceTypeTomcat     = ServiceType{Code: 1010, Name: "TOMCAT", Desc: "TOMCAT", Role: RoleWAS, Schema: SchemaNormal}
	ServiceTypeSpringBoot = ServiceType{Code: 1210, Name: "SPRING_BOOT", Desc: "SPRING_BOOT", Role: RoleWAS, Schema: SchemaNormal}
	ServiceTypeMySQL      = ServiceType{Code: 2100, Name: "MYSQL", Desc: "MYSQL", Role: RoleTerminal, Schema: SchemaNormal}
	ServiceTypeOracle     = ServiceType{Code: 2300, Name: "ORACLE", Desc: "ORACLE", Role: RoleTerminal, Schema: SchemaNormal}
	ServiceTypeMemcached  = ServiceType{Code: 8050, Name: "MEMCACHED", Desc: "MEMCACHED", Role: RoleTerminal, Schema: SchemaFast}
	ServiceTypeRedis      = ServiceType{Code: 8200, Name: "REDIS", Desc: "REDIS", Role: RoleTerminal, Schema: SchemaFast}
	ServiceTypeKafka      = ServiceType{Code: 8660, Name: "KAFKA_CLIENT", Desc: "KAFKA", Role: RoleTerminal, Schema: SchemaNormal}
	ServiceTypeHTTPClient = ServiceType{Code: 9050, Name: "HTTP_CLIENT", Desc: "HTTP_CLIENT", Role: RoleRPCClient, Schema: SchemaNormal}
	ServiceTypeGRPCClient = ServiceType{Code: 9160, Name: "GRPC_CLIENT", Desc: "GRPC", Role: RoleRPCClient, Schema: SchemaNormal}
)

// Catalog resolves service type codes
type Catalog struct {
	byCode map[int16]ServiceType
	byName map[string]ServiceType
}

// NewCatalog builds a catalog; codes and names must be unique
func NewCatalog(types ...ServiceType) (*Catalog, error) {
	c := &Catalog{
		byCode: make(map[int16]ServiceType, len(types)),
		byName: make(map[string]ServiceType, len(types)),
	}
	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("service type %d: name cannot be empty", t.Code)
		}
		if _, exists := c.byCode[t.Code]; exists {
			return nil, fmt.Errorf("duplicate service type code: %d", t.Code)
		}
		if _, exists := c.byName[t.Name]; exists {
			return nil, fmt.Errorf("duplicate service type name: %s", t.Name)
		}
		if t.Schema == "" {
			t.Schema = SchemaNormal
		}
		c.byCode[t.Code] = t
		c.byName[t.Name] = t
	}
	return c, nil
}

// DefaultServiceTypes returns the built-in service types
func DefaultServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceTypeUndefined,
		ServiceTypeUnknown,
		ServiceTypeUser,
		ServiceTypeStandAlone,
		ServiceTypeTomcat,
		ServiceTypeSpringBoot,
		ServiceTypeMySQL,
		ServiceTypeOracle,
		ServiceTypeMemcached,
		ServiceTypeRedis,
		ServiceTypeKafka,
		ServiceTypeHTTPClient,
		ServiceTypeGRPCClient,
	}
}

// DefaultCatalog returns a catalog of the built-in service types
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultServiceTypes()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the service type registered under code
func (c *Catalog) Lookup(code int16) (ServiceType, bool) {
	t, ok := c.byCode[code]
	return t, ok
}

// LookupName returns the service type registered under name
func (c *Catalog) LookupName(name string) (ServiceType, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Resolve returns the registered type for code, or an UNDEFINED type carrying the code
func (c *Catalog) Resolve(code int16) ServiceType {
	if t, ok := c.byCode[code]; ok {
		return t
	}
	undefined := ServiceTypeUndefined
	undefined.Code = code
	undefined.Name = fmt.Sprintf("UNDEFINED_%d", code)
	return undefined
}

// Types returns every registered type ordered by code
func (c *Catalog) Types() []ServiceType {
	out := make([]ServiceType, 0, len(c.byCode))
	for _, t := range c.byCode {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
