package conn

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMarkers identify an identifier as a literal connection string.
var DefaultMarkers = []string{"postgresql://", "postgres://"}

// SecretResolver expands secret references found in registry passwords.
type SecretResolver interface {
	ResolveValue(ctx context.Context, value string) (string, error)
}

// Resolver turns connection identifiers into descriptors.
type Resolver struct {
	registry Registry
	markers  []string
	secrets  SecretResolver
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMarkers replaces the connection-string markers.
func WithMarkers(markers ...string) Option {
	return func(r *Resolver) {
		r.markers = markers
	}
}

// WithSecrets resolves $SECRET: references in registry passwords.
func WithSecrets(s SecretResolver) Option {
	return func(r *Resolver) {
		r.secrets = s
	}
}

// NewResolver creates a resolver backed by the given registry. The registry
// may be nil when only literal connection strings are used.
func NewResolver(registry Registry, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		markers:  DefaultMarkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsConnString reports whether id contains one of the resolver's markers.
func (r *Resolver) IsConnString(id string) bool {
	for _, m := range r.markers {
		if m != "" && strings.Contains(id, m) {
			return true
		}
	}
	return false
}

// Resolve returns the descriptor for id. Literal connection strings are
// returned as a single-field descriptor. Registry errors are returned as is.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Descriptor, error) {
	if r.IsConnString(id) {
		return &Descriptor{DSN: id}, nil
	}
	if r.registry == nil {
		return nil, fmt.Errorf("%w: %s (no registry configured)", ErrNotFound, id)
	}

	c, err := r.registry.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	password := c.Password
	if r.secrets != nil && password != "" {
		password, err = r.secrets.ResolveValue(ctx, password)
		if err != nil {
			return nil, fmt.Errorf("resolve password for %s: %w", id, err)
		}
	}

	return &Descriptor{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.Login,
		Password: password,
		Database: c.Schema,
	}, nil
}
