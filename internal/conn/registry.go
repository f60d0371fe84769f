package conn

import (
	"context"
	"errors"
)

// ErrNotFound is returned (wrapped) by registries for unknown connection ids.
var ErrNotFound = errors.New("connection not found")

// Connection is a registry record. Field names follow the registry's own
// vocabulary: Login maps to a descriptor's User and Schema to its Database.
type Connection struct {
	ID       string            `json:"conn_id" yaml:"conn_id"`
	Type     string            `json:"conn_type,omitempty" yaml:"conn_type,omitempty"`
	Host     string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int               `json:"port,omitempty" yaml:"port,omitempty"`
	Login    string            `json:"login,omitempty" yaml:"login,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	Schema   string            `json:"schema,omitempty" yaml:"schema,omitempty"`
	Extra    map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Registry looks up connections by symbolic name.
type Registry interface {
	Lookup(ctx context.Context, id string) (*Connection, error)
}

// RegistryFunc adapts a function to the Registry interface.
type RegistryFunc func(ctx context.Context, id string) (*Connection, error)

// Lookup calls f.
func (f RegistryFunc) Lookup(ctx context.Context, id string) (*Connection, error) {
	return f(ctx, id)
}
