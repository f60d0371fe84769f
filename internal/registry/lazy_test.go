package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/oriys/pgrun/internal/conn"
)

type stubStore struct {
	Store
	closed bool
}

func (s *stubStore) Lookup(_ context.Context, id string) (*conn.Connection, error) {
	return &conn.Connection{ID: id, Host: "stub"}, nil
}

func (s *stubStore) Close() error {
	s.closed = true
	return nil
}

func TestLazy_ConnectsOnFirstUse(t *testing.T) {
	dials := 0
	stub := &stubStore{}
	l := NewLazy(func(context.Context) (Store, error) {
		dials++
		return stub, nil
	})

	if l.Connected() || dials != 0 {
		t.Fatal("nothing should be dialed before first use")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close before connect: %v", err)
	}

	for i := 0; i < 2; i++ {
		c, err := l.Lookup(context.Background(), "wh")
		if err != nil || c.Host != "stub" {
			t.Fatalf("Lookup = %+v, %v", c, err)
		}
	}
	if dials != 1 {
		t.Fatalf("dials = %d, want 1", dials)
	}

	if err := l.Close(); err != nil || !stub.closed {
		t.Fatalf("Close = %v, closed = %v", err, stub.closed)
	}
}

func TestLazy_ConnectErrorRetried(t *testing.T) {
	down := errors.New("connection refused")
	dials := 0
	l := NewLazy(func(context.Context) (Store, error) {
		dials++
		if dials == 1 {
			return nil, down
		}
		return &stubStore{}, nil
	})

	if _, err := l.Lookup(context.Background(), "wh"); !errors.Is(err, down) {
		t.Fatalf("got %v, want %v", err, down)
	}
	if c, err := l.Lookup(context.Background(), "wh"); err != nil || c.Host != "stub" {
		t.Fatalf("second Lookup = %+v, %v", c, err)
	}
	if dials != 2 || !l.Connected() {
		t.Fatalf("dials = %d, connected = %v", dials, l.Connected())
	}
}
