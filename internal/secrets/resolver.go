package secrets

import (
	"context"
	"fmt"
	"strings"
)

const refPrefix = "$SECRET:"

// Resolver expands $SECRET:name references.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver over store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveValue returns value unchanged unless it is a $SECRET: reference, in
// which case the referenced secret is loaded.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	name, ok := RefName(value)
	if !ok {
		return value, nil
	}
	if name == "" {
		return "", fmt.Errorf("empty secret name in reference")
	}
	v, err := r.store.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get secret '%s': %w", name, err)
	}
	return string(v), nil
}

// IsRef reports whether value is a secret reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, refPrefix)
}

// RefName extracts the secret name from a reference.
func RefName(value string) (string, bool) {
	if !IsRef(value) {
		return "", false
	}
	return strings.TrimPrefix(value, refPrefix), true
}

// Ref builds a reference to the named secret.
func Ref(name string) string {
	return refPrefix + name
}
