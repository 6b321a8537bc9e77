package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/keys/soft"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustKeyPair(t *testing.T) domain.KeyPair {
	t.Helper()
	pair, err := soft.NewManager().GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return pair
}

type memRevocationStore struct {
	mu        sync.Mutex
	versions  map[string][]domain.RevocationList
	appendErr error
	appends   int
}

func newMemRevocationStore() *memRevocationStore {
	return &memRevocationStore{versions: make(map[string][]domain.RevocationList)}
}

func (s *memRevocationStore) Latest(ctx context.Context, issuerID string) (*domain.RevocationList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lists := s.versions[issuerID]
	if len(lists) == 0 {
		return nil, domain.ErrNotFound
	}
	return lists[len(lists)-1].Clone(), nil
}

func (s *memRevocationStore) GetVersion(ctx context.Context, issuerID string, version int64) (*domain.RevocationList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.versions[issuerID] {
		if l.Version == version {
			return l.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memRevocationStore) Append(ctx context.Context, list domain.RevocationList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.appendErr != nil {
		return s.appendErr
	}
	s.versions[list.Issuer] = append(s.versions[list.Issuer], *list.Clone())
	return nil
}

type memLeafSetStore struct {
	mu    sync.Mutex
	sets  map[string]domain.LeafSet
	loads int
}

func newMemLeafSetStore() *memLeafSetStore {
	return &memLeafSetStore{sets: make(map[string]domain.LeafSet)}
}

func (s *memLeafSetStore) Latest(ctx context.Context, setID string) (*domain.LeafSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	set, ok := s.sets[setID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &set, nil
}

func (s *memLeafSetStore) Save(ctx context.Context, set domain.LeafSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[set.ID] = set
	return nil
}

type recordingObserver struct {
	mu          sync.Mutex
	verdicts    []domain.Verdict
	revocations []int64
}

func (o *recordingObserver) ObserveVerdict(v domain.Verdict, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verdicts = append(o.verdicts, v)
}

func (o *recordingObserver) ObserveRevocation(issuerID string, version int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.revocations = append(o.revocations, version)
}
