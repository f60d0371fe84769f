package registry

import (
	"context"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/secrets"
)

// Store is a writable registry that can also hold sealed secrets.
type Store interface {
	conn.Registry
	secrets.Backend
	Save(ctx context.Context, c *conn.Connection) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*conn.Connection, error)
	Close() error
}

var (
	_ Store = (*Redis)(nil)
	_ Store = (*Postgres)(nil)
	_ Store = (*Lazy)(nil)
)
