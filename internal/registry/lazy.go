package registry

import (
	"context"
	"sync"

	"github.com/oriys/pgrun/internal/conn"
)

// Lazy connects its backend on first use. Until then nothing is dialed, so a
// caller that only resolves literal connection strings never touches it.
type Lazy struct {
	connect func(ctx context.Context) (Store, error)

	mu    sync.Mutex
	store Store
}

// NewLazy wraps connect. A failed connect is retried on the next call.
func NewLazy(connect func(ctx context.Context) (Store, error)) *Lazy {
	return &Lazy{connect: connect}
}

// Get returns the connected backend, connecting if needed.
func (l *Lazy) Get(ctx context.Context) (Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}
	s, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}
	l.store = s
	return s, nil
}

// Connected reports whether the backend has been dialed.
func (l *Lazy) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store != nil
}

// Lookup implements conn.Registry.
func (l *Lazy) Lookup(ctx context.Context, id string) (*conn.Connection, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Lookup(ctx, id)
}

func (l *Lazy) Save(ctx context.Context, c *conn.Connection) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Save(ctx, c)
}

func (l *Lazy) Delete(ctx context.Context, id string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

func (l *Lazy) List(ctx context.Context) ([]*conn.Connection, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx)
}

func (l *Lazy) SaveSecret(ctx context.Context, name, sealed string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.SaveSecret(ctx, name, sealed)
}

func (l *Lazy) GetSecret(ctx context.Context, name string) (string, error) {
	s, err := l.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.GetSecret(ctx, name)
}

func (l *Lazy) DeleteSecret(ctx context.Context, name string) error {
	s, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return s.DeleteSecret(ctx, name)
}

// Close closes the backend if it was connected.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}
