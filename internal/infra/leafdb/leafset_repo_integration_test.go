//go:build integration
// +build integration

package leafdb

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"addrproof/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestLeafSetRepo_SaveLatest(t *testing.T) {
	pool := setupPool(t)
	repo := NewLeafSetRepo(pool)
	ctx := context.Background()

	if _, err := repo.Latest(ctx, "jp-13"); domain.CodeOf(err) != domain.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	v1 := domain.LeafSet{ID: "jp-13", Version: 1, Leaves: []string{"pid-b", "pid-a"}, Root: []byte{1, 2, 3}, UpdatedAt: now}
	v2 := domain.LeafSet{ID: "jp-13", Version: 2, Leaves: []string{"pid-b", "pid-a", "pid-c"}, Root: []byte{4, 5, 6}, UpdatedAt: now.Add(time.Hour)}
	for _, set := range []domain.LeafSet{v1, v2} {
		if err := repo.Save(ctx, set); err != nil {
			t.Fatalf("save v%d: %v", set.Version, err)
		}
	}

	got, err := repo.Latest(ctx, "jp-13")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Version != 2 || strings.Join(got.Leaves, ",") != "pid-b,pid-a,pid-c" {
		t.Fatalf("unexpected leaf set: %+v", got)
	}
	if !got.UpdatedAt.Equal(v2.UpdatedAt) {
		t.Fatalf("updated_at mismatch: %v", got.UpdatedAt)
	}
	if err := repo.Save(ctx, v2); err == nil {
		t.Fatal("expected duplicate version to fail")
	}
}

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if dsn == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		payload, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read migration %s: %v", name, err)
		}
		if _, err := pool.Exec(ctx, string(payload)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
	if _, err := pool.Exec(ctx, `TRUNCATE leaf_set_members, leaf_sets`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}
