package registry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oriys/pgrun/internal/conn"
)

// DefaultEnvPrefix is prepended to the upper-cased connection id.
const DefaultEnvPrefix = "PGRUN_CONN_"

// Env looks connections up in environment variables holding connection URIs.
type Env struct {
	prefix string
	getenv func(string) (string, bool)
}

// NewEnv creates an environment registry. An empty prefix selects
// DefaultEnvPrefix.
func NewEnv(prefix string) *Env {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &Env{prefix: prefix, getenv: os.LookupEnv}
}

// VarName returns the environment variable consulted for id.
func (e *Env) VarName(id string) string {
	name := strings.ToUpper(id)
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return e.prefix + name
}

// Lookup implements conn.Registry.
func (e *Env) Lookup(_ context.Context, id string) (*conn.Connection, error) {
	v, ok := e.getenv(e.VarName(id))
	if !ok || v == "" {
		return nil, fmt.Errorf("%w: %s", conn.ErrNotFound, id)
	}
	return ParseURI(id, v)
}
