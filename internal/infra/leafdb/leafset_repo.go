package leafdb

import (
	"context"
	"errors"
	"fmt"

	"addrproof/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeafSetRepo stores each published leaf set version with its members in
// insertion order.
type LeafSetRepo struct {
	Pool *pgxpool.Pool
}

func NewLeafSetRepo(pool *pgxpool.Pool) *LeafSetRepo {
	return &LeafSetRepo{Pool: pool}
}

func (r *LeafSetRepo) Save(ctx context.Context, set domain.LeafSet) error {
	if r == nil || r.Pool == nil {
		return fmt.Errorf("db not configured")
	}
	if set.ID == "" || set.Version < 1 {
		return domain.InputError("save leaf set", "set id and positive version are required")
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
INSERT INTO leaf_sets (set_id, version, root, leaf_count, updated_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, query, set.ID, set.Version, set.Root, len(set.Leaves), set.UpdatedAt); err != nil {
		return err
	}

	rows := make([][]any, 0, len(set.Leaves))
	for i, leaf := range set.Leaves {
		rows = append(rows, []any{set.ID, set.Version, i, leaf})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"leaf_set_members"},
		[]string{"set_id", "version", "leaf_index", "leaf"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *LeafSetRepo) Latest(ctx context.Context, setID string) (*domain.LeafSet, error) {
	if r == nil || r.Pool == nil {
		return nil, fmt.Errorf("db not configured")
	}
	query := `
SELECT set_id, version, root, leaf_count, updated_at
FROM leaf_sets
WHERE set_id = $1
ORDER BY version DESC
LIMIT 1`
	var (
		set   domain.LeafSet
		count int
	)
	err := r.Pool.QueryRow(ctx, query, setID).Scan(&set.ID, &set.Version, &set.Root, &count, &set.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	set.UpdatedAt = set.UpdatedAt.UTC()

	rows, err := r.Pool.Query(ctx, `
SELECT leaf
FROM leaf_set_members
WHERE set_id = $1 AND version = $2
ORDER BY leaf_index`, set.ID, set.Version)
	if err != nil {
		return nil, err
	}
	leaves, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if len(leaves) != count {
		return nil, domain.StructuralError("load leaf set", "%s v%d has %d members, expected %d", set.ID, set.Version, len(leaves), count)
	}
	set.Leaves = leaves
	return &set, nil
}
