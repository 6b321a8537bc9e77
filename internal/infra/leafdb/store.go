package leafdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"addrproof/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

// NewStore connects to LEAFSET_DSN, falling back to POSTGRES_DSN.
func NewStore(cfg config.Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.LeafSetDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(cfg.PostgresDSN)
	}
	if dsn == "" {
		return nil, fmt.Errorf("LEAFSET_DSN or POSTGRES_DSN is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s == nil || s.Pool == nil {
		return
	}
	s.Pool.Close()
}
