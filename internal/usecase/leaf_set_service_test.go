package usecase

import (
	"context"
	"errors"
	"testing"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
	"addrproof/internal/infra/merkle"
)

func TestLeafSetService_PublishAndProve(t *testing.T) {
	store := newMemLeafSetStore()
	svc := NewLeafSetService(crypto.Default(), store, fixedClock(testNow))
	ctx := context.Background()

	set, err := svc.Publish(ctx, "jp-registered", registeredLeaves)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if set.Version != 1 || len(set.Root) != crypto.DigestSize {
		t.Fatalf("unexpected set %+v", set)
	}

	proof, got, err := svc.Prove(ctx, "jp-registered", "JP-14-201-05")
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	if got.Version != 1 || !merkle.VerifyProof(nil, proof, set.Root) {
		t.Fatal("expected proof against published root")
	}

	next, err := svc.Publish(ctx, "jp-registered", append(registeredLeaves, "JP-27-100-01"))
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if next.Version != 2 {
		t.Fatalf("expected version 2, got %d", next.Version)
	}
	if merkle.VerifyProof(nil, proof, next.Root) {
		t.Fatal("expected old proof to fail against new root")
	}
}

func TestLeafSetService_LoadsAndCachesTree(t *testing.T) {
	store := newMemLeafSetStore()
	tree, err := merkle.BuildTree(crypto.Default(), registeredLeaves)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	store.sets["jp"] = domain.LeafSet{ID: "jp", Version: 7, Leaves: registeredLeaves, Root: tree.Root()}
	svc := NewLeafSetService(nil, store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.Prove(ctx, "jp", "US-CA-90210"); err != nil {
			t.Fatalf("prove: %v", err)
		}
	}
	if store.loads != 1 {
		t.Fatalf("expected a single store load, got %d", store.loads)
	}

	set, err := svc.Publish(ctx, "jp", []string{"JP-13-113-01"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if set.Version != 8 {
		t.Fatalf("expected version to continue from stored set, got %d", set.Version)
	}
}

func TestLeafSetService_RejectsCorruptStoredRoot(t *testing.T) {
	store := newMemLeafSetStore()
	store.sets["jp"] = domain.LeafSet{ID: "jp", Version: 1, Leaves: registeredLeaves, Root: make([]byte, 32)}
	svc := NewLeafSetService(nil, store, nil)
	if _, _, err := svc.Tree(context.Background(), "jp"); domain.CodeOf(err) != domain.CodeStructural {
		t.Fatalf("expected structural error, got %v", err)
	}
}

func TestLeafSetService_Errors(t *testing.T) {
	svc := NewLeafSetService(nil, nil, nil)
	ctx := context.Background()
	if _, err := svc.Publish(ctx, "jp", nil); !errors.Is(err, domain.ErrEmptyInput) {
		t.Fatalf("expected empty input, got %v", err)
	}
	if _, err := svc.Publish(ctx, "", registeredLeaves); domain.CodeOf(err) != domain.CodeInput {
		t.Fatalf("expected input error, got %v", err)
	}
	if _, _, err := svc.Tree(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Publish(ctx, "jp", registeredLeaves); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, _, err := svc.Prove(ctx, "jp", "FR-75-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected leaf not found, got %v", err)
	}
}
