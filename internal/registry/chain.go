package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/oriys/pgrun/internal/conn"
)

// Chain consults registries in order. A registry that reports
// conn.ErrNotFound passes the lookup on; any other error stops it.
type Chain []conn.Registry

// Lookup implements conn.Registry.
func (c Chain) Lookup(ctx context.Context, id string) (*conn.Connection, error) {
	for _, r := range c {
		found, err := r.Lookup(ctx, id)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, conn.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", conn.ErrNotFound, id)
}
