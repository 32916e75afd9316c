package persistence

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/config"
)

func TestMigrationNames(t *testing.T) {
	names, err := MigrationNames()
	if err != nil {
		t.Fatalf("MigrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "migrations/0001_tickets.sql" {
		t.Fatalf("names = %v", names)
	}
}

func TestMigrationsCarryIndexes(t *testing.T) {
	content, err := migrationFiles.ReadFile("migrations/0001_tickets.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sql := string(content)
	for _, want := range []string{
		"ON tickets (created_at)",
		"ON tickets (current_state)",
		"ON tickets (closed_at)",
		"ON tickets (created_at, current_state)",
		"ON tickets (created_at, closed_at)",
		"ON ticket_history (ts)",
		"ON ticket_history (action, ts)",
		"ON classifiers (parent_id)",
		"USING GIN (ancestors)",
		"ON classifiers (root_id, level)",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("migration lacks %q", want)
		}
	}
}

func TestNoDSN(t *testing.T) {
	pg, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if pg.PoolHandle() != nil {
		t.Fatal("expected no pool without a DSN")
	}
	if err := pg.Ping(context.Background()); err == nil {
		t.Fatal("Ping without a pool must fail")
	}
	if err := RunMigrations(context.Background(), nil, zap.NewNop()); err != nil {
		t.Fatalf("RunMigrations without pool: %v", err)
	}
}

func TestNewRedis_UnreachableReturnsClosableClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	r, err := NewRedis(ctx, config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error for an unreachable redis")
	}
	if r == nil || r.Client == nil {
		t.Fatal("client must be returned so the caller can close it")
	}
	r.Close()

	var missing *Redis
	if err := missing.Ping(context.Background()); err == nil {
		t.Fatal("Ping on a nil wrapper must fail")
	}
}
