package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/secrets"
)

const (
	connKeyPrefix   = "pgrun:conn:"
	connSetKey      = "pgrun:conns"
	secretKeyPrefix = "pgrun:secret:"
)

// Redis stores one hash per connection plus a set of known ids.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Lookup implements conn.Registry.
func (r *Redis) Lookup(ctx context.Context, id string) (*conn.Connection, error) {
	fields, err := r.client.HGetAll(ctx, connKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", conn.ErrNotFound, id)
	}
	return fromHash(id, fields)
}

// Save writes a connection, replacing any previous one with the same id.
func (r *Redis) Save(ctx context.Context, c *conn.Connection) error {
	fields, err := toHash(c)
	if err != nil {
		return err
	}
	key := connKeyPrefix + c.ID
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, connSetKey, c.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save connection %s: %w", c.ID, err)
	}
	return nil
}

// Delete removes a connection.
func (r *Redis) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, connKeyPrefix+id)
	pipe.SRem(ctx, connSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", conn.ErrNotFound, id)
	}
	return nil
}

// List returns all connections ordered by id.
func (r *Redis) List(ctx context.Context) ([]*conn.Connection, error) {
	ids, err := r.client.SMembers(ctx, connSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	sort.Strings(ids)

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, connKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	out := make([]*conn.Connection, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := fromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveSecret implements secrets.Backend.
func (r *Redis) SaveSecret(ctx context.Context, name, sealed string) error {
	return r.client.Set(ctx, secretKeyPrefix+name, sealed, 0).Err()
}

// GetSecret implements secrets.Backend.
func (r *Redis) GetSecret(ctx context.Context, name string) (string, error) {
	v, err := r.client.Get(ctx, secretKeyPrefix+name).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: %s", secrets.ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	return v, nil
}

// DeleteSecret implements secrets.Backend.
func (r *Redis) DeleteSecret(ctx context.Context, name string) error {
	return r.client.Del(ctx, secretKeyPrefix+name).Err()
}

func toHash(c *conn.Connection) (map[string]interface{}, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("connection id is required")
	}
	fields := map[string]interface{}{
		"conn_type": c.Type,
		"host":      c.Host,
		"port":      strconv.Itoa(c.Port),
		"login":     c.Login,
		"password":  c.Password,
		"schema":    c.Schema,
	}
	if len(c.Extra) > 0 {
		extra, err := json.Marshal(c.Extra)
		if err != nil {
			return nil, fmt.Errorf("marshal extra: %w", err)
		}
		fields["extra"] = string(extra)
	}
	return fields, nil
}

func fromHash(id string, f map[string]string) (*conn.Connection, error) {
	c := &conn.Connection{
		ID:       id,
		Type:     f["conn_type"],
		Host:     f["host"],
		Login:    f["login"],
		Password: f["password"],
		Schema:   f["schema"],
	}
	if p := f["port"]; p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("connection %s: invalid port %q", id, p)
		}
		c.Port = port
	}
	if e := f["extra"]; e != "" {
		if err := json.Unmarshal([]byte(e), &c.Extra); err != nil {
			return nil, fmt.Errorf("connection %s: unmarshal extra: %w", id, err)
		}
	}
	return c, nil
}
