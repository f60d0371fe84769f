package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/secrets"
)

// Postgres keeps connections and sealed secrets in a metadata database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the metadata database and creates the registry
// tables if they do not exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("registry DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create registry pool: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping registry: %w", err)
	}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS connections (
			conn_id TEXT PRIMARY KEY,
			conn_type TEXT NOT NULL DEFAULT 'postgres',
			host TEXT NOT NULL DEFAULT '',
			port INTEGER NOT NULL DEFAULT 0,
			login TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			schema TEXT NOT NULL DEFAULT '',
			extra JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Lookup implements conn.Registry.
func (p *Postgres) Lookup(ctx context.Context, id string) (*conn.Connection, error) {
	c := &conn.Connection{}
	var extra []byte
	err := p.pool.QueryRow(ctx, `
		SELECT conn_id, conn_type, host, port, login, password, schema, extra
		FROM connections WHERE conn_id = $1`, id).Scan(
		&c.ID, &c.Type, &c.Host, &c.Port, &c.Login, &c.Password, &c.Schema, &extra)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", conn.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &c.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return c, nil
}

// Save upserts a connection.
func (p *Postgres) Save(ctx context.Context, c *conn.Connection) error {
	if c.ID == "" {
		return fmt.Errorf("connection id is required")
	}
	var extra []byte
	if len(c.Extra) > 0 {
		var err error
		if extra, err = json.Marshal(c.Extra); err != nil {
			return fmt.Errorf("marshal extra: %w", err)
		}
	}
	connType := c.Type
	if connType == "" {
		connType = "postgres"
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO connections (conn_id, conn_type, host, port, login, password, schema, extra, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (conn_id) DO UPDATE SET
			conn_type = EXCLUDED.conn_type, host = EXCLUDED.host, port = EXCLUDED.port,
			login = EXCLUDED.login, password = EXCLUDED.password, schema = EXCLUDED.schema,
			extra = EXCLUDED.extra, updated_at = EXCLUDED.updated_at`,
		c.ID, connType, c.Host, c.Port, c.Login, c.Password, c.Schema, extra, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save connection %s: %w", c.ID, err)
	}
	return nil
}

// Delete removes a connection.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM connections WHERE conn_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", conn.ErrNotFound, id)
	}
	return nil
}

// List returns all connections ordered by id.
func (p *Postgres) List(ctx context.Context) ([]*conn.Connection, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT conn_id, conn_type, host, port, login, password, schema, extra
		FROM connections ORDER BY conn_id`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []*conn.Connection
	for rows.Next() {
		c := &conn.Connection{}
		var extra []byte
		if err := rows.Scan(&c.ID, &c.Type, &c.Host, &c.Port, &c.Login, &c.Password, &c.Schema, &extra); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &c.Extra); err != nil {
				return nil, fmt.Errorf("unmarshal extra: %w", err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveSecret implements secrets.Backend.
func (p *Postgres) SaveSecret(ctx context.Context, name, sealed string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO secrets (name, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		name, sealed)
	if err != nil {
		return fmt.Errorf("save secret %s: %w", name, err)
	}
	return nil
}

// GetSecret implements secrets.Backend.
func (p *Postgres) GetSecret(ctx context.Context, name string) (string, error) {
	var v string
	err := p.pool.QueryRow(ctx, `SELECT value FROM secrets WHERE name = $1`, name).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", secrets.ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	return v, nil
}

// DeleteSecret implements secrets.Backend.
func (p *Postgres) DeleteSecret(ctx context.Context, name string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM secrets WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete secret %s: %w", name, err)
	}
	return nil
}
