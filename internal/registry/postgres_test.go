package registry

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/secrets"
)

// newTestPostgres connects to PGRUN_TEST_REGISTRY_DSN, skipping when unset.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("PGRUN_TEST_REGISTRY_DSN")
	if dsn == "" {
		t.Skip("PGRUN_TEST_REGISTRY_DSN not set, skipping")
	}
	p, err := NewPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPostgres_SaveLookupDelete(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	in := &conn.Connection{ID: "pgrun-test", Host: "h", Port: 5432, Login: "u", Password: "p", Schema: "db"}
	if err := p.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() { _ = p.Delete(context.Background(), "pgrun-test") })

	got, err := p.Lookup(ctx, "pgrun-test")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Type != "postgres" || got.Host != "h" || got.Port != 5432 || got.Schema != "db" {
		t.Fatalf("Lookup = %+v", got)
	}

	in.Host = "h2"
	if err := p.Save(ctx, in); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	got, _ = p.Lookup(ctx, "pgrun-test")
	if got.Host != "h2" {
		t.Fatalf("upsert did not update host: %+v", got)
	}

	if err := p.Delete(ctx, "pgrun-test"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := p.Lookup(ctx, "pgrun-test"); !errors.Is(err, conn.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_Secrets(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()

	if err := p.SaveSecret(ctx, "pgrun-test", "sealed"); err != nil {
		t.Fatalf("SaveSecret: %v", err)
	}
	v, err := p.GetSecret(ctx, "pgrun-test")
	if err != nil || v != "sealed" {
		t.Fatalf("GetSecret = %q, %v", v, err)
	}
	if err := p.DeleteSecret(ctx, "pgrun-test"); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}
	if _, err := p.GetSecret(ctx, "pgrun-test"); !errors.Is(err, secrets.ErrNotFound) {
		t.Fatalf("expected secrets.ErrNotFound, got %v", err)
	}
}

func TestNewPostgres_EmptyDSN(t *testing.T) {
	if _, err := NewPostgres(context.Background(), ""); err == nil {
		t.Fatal("empty DSN should fail")
	}
}
