package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
	"addrproof/internal/infra/merkle"
)

// LeafSetService publishes registered identifier sets. Each published
// version builds its tree once; proofs are served from the cached tree.
type LeafSetService struct {
	provider crypto.Provider
	store    LeafSetStore
	now      func() time.Time

	mu    sync.RWMutex
	trees map[string]*leafSetTree
}

type leafSetTree struct {
	set  domain.LeafSet
	tree *merkle.Tree
}

func NewLeafSetService(provider crypto.Provider, store LeafSetStore, now func() time.Time) *LeafSetService {
	if provider == nil {
		provider = crypto.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &LeafSetService{
		provider: provider,
		store:    store,
		now:      now,
		trees:    make(map[string]*leafSetTree),
	}
}

// Publish replaces the leaves of setID with a new version.
func (s *LeafSetService) Publish(ctx context.Context, setID string, leaves []string) (domain.LeafSet, error) {
	setID = strings.TrimSpace(setID)
	if setID == "" {
		return domain.LeafSet{}, domain.InputError("publish leaf set", "set id is required")
	}
	tree, err := merkle.BuildTree(s.provider, leaves)
	if err != nil {
		return domain.LeafSet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64
	if cached, ok := s.trees[setID]; ok {
		version = cached.set.Version
	} else if s.store != nil {
		latest, err := s.store.Latest(ctx, setID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.LeafSet{}, err
		}
		if latest != nil {
			version = latest.Version
		}
	}

	set := domain.LeafSet{
		ID:        setID,
		Version:   version + 1,
		Leaves:    tree.Leaves(),
		Root:      tree.Root(),
		UpdatedAt: timestamp(s.now()),
	}
	if s.store != nil {
		if err := s.store.Save(ctx, set); err != nil {
			return domain.LeafSet{}, err
		}
	}
	s.trees[setID] = &leafSetTree{set: set, tree: tree}
	return set, nil
}

// Tree returns the current version of setID and its tree, loading and
// building it on first use.
func (s *LeafSetService) Tree(ctx context.Context, setID string) (domain.LeafSet, *merkle.Tree, error) {
	s.mu.RLock()
	cached, ok := s.trees[setID]
	s.mu.RUnlock()
	if ok {
		return cached.set, cached.tree, nil
	}
	if s.store == nil {
		return domain.LeafSet{}, nil, domain.NewError(domain.CodeNotFound, "leaf set", domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.trees[setID]; ok {
		return cached.set, cached.tree, nil
	}
	set, err := s.store.Latest(ctx, setID)
	if err != nil {
		return domain.LeafSet{}, nil, err
	}
	if set == nil {
		return domain.LeafSet{}, nil, domain.NewError(domain.CodeNotFound, "leaf set", domain.ErrNotFound)
	}
	tree, err := merkle.BuildTree(s.provider, set.Leaves)
	if err != nil {
		return domain.LeafSet{}, nil, err
	}
	if len(set.Root) > 0 && !bytes.Equal(set.Root, tree.Root()) {
		return domain.LeafSet{}, nil, domain.StructuralError("leaf set", "stored root of %s v%d does not match its leaves", set.ID, set.Version)
	}
	set.Root = tree.Root()
	s.trees[setID] = &leafSetTree{set: *set, tree: tree}
	return *set, tree, nil
}

func (s *LeafSetService) Prove(ctx context.Context, setID, leaf string) (domain.MerkleProof, domain.LeafSet, error) {
	set, tree, err := s.Tree(ctx, setID)
	if err != nil {
		return domain.MerkleProof{}, domain.LeafSet{}, err
	}
	proof, err := tree.ProveLeaf(leaf)
	if err != nil {
		return domain.MerkleProof{}, domain.LeafSet{}, err
	}
	return proof, set, nil
}
