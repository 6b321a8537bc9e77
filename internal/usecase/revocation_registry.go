package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
)

// RevocationRegistry owns one issuer's revocation list. Writes are
// serialized; readers load an immutable snapshot without locking.
type RevocationRegistry struct {
	issuerID   string
	keys       domain.KeyManager
	privateKey []byte
	publicKey  []byte
	provider   crypto.Provider
	store      RevocationListStore
	observer   VerificationObserver
	now        func() time.Time

	mu      sync.Mutex
	current atomic.Pointer[revocationSnapshot]
}

type revocationSnapshot struct {
	list    *domain.RevocationList
	forward map[string]string
	revoked map[string]struct{}
}

type RevocationRegistryConfig struct {
	IssuerID   string
	Keys       domain.KeyManager
	PrivateKey []byte
	PublicKey  []byte
	Provider   crypto.Provider
	Store      RevocationListStore
	Observer   VerificationObserver
	Now        func() time.Time
}

func NewRevocationRegistry(cfg RevocationRegistryConfig) (*RevocationRegistry, error) {
	if cfg.IssuerID == "" {
		return nil, errors.New("issuer_id is required")
	}
	if cfg.Keys == nil {
		return nil, errors.New("key manager is required")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, errors.New("issuer private key is required")
	}
	if cfg.Provider == nil {
		cfg.Provider = crypto.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &RevocationRegistry{
		issuerID:   cfg.IssuerID,
		keys:       cfg.Keys,
		privateKey: append([]byte(nil), cfg.PrivateKey...),
		publicKey:  append([]byte(nil), cfg.PublicKey...),
		provider:   cfg.Provider,
		store:      cfg.Store,
		observer:   cfg.Observer,
		now:        cfg.Now,
	}
	r.current.Store(newRevocationSnapshot(&domain.RevocationList{
		Issuer:  cfg.IssuerID,
		Entries: []domain.RevocationEntry{},
	}))
	return r, nil
}

// Load replaces the in-memory list with the latest stored version. A stored
// list that fails verification, or that does not extend the list already
// held, is refused.
func (r *RevocationRegistry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	latest, err := r.store.Latest(ctx, r.issuerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if latest == nil {
		return nil
	}
	if len(r.publicKey) > 0 {
		if err := VerifyList(r.provider, r.keys, r.publicKey, *latest); err != nil {
			return fmt.Errorf("stored revocation list v%d: %w", latest.Version, err)
		}
	}
	if err := VerifyAppendOnly(r.provider, *r.current.Load().list, *latest); err != nil {
		return fmt.Errorf("stored revocation list v%d: %w", latest.Version, err)
	}
	r.current.Store(newRevocationSnapshot(latest.Clone()))
	return nil
}

// Revoke appends an entry and publishes the next signed version. newID may
// be empty when the identifier has no successor.
func (r *RevocationRegistry) Revoke(ctx context.Context, oldID, reason, newID string) (domain.RevocationEntry, error) {
	oldID = strings.TrimSpace(oldID)
	newID = strings.TrimSpace(newID)
	if oldID == "" {
		return domain.RevocationEntry{}, domain.InputError("revoke", "id is required")
	}
	if newID == oldID {
		return domain.RevocationEntry{}, domain.InputError("revoke", "identifier cannot forward to itself")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.current.Load()
	if _, ok := snap.revoked[oldID]; ok {
		return domain.RevocationEntry{}, domain.NewError(domain.CodeRevoked, "revoke", fmt.Errorf("%w: %s", domain.ErrAlreadyRevoked, oldID))
	}

	now := timestamp(r.now())
	entry := domain.RevocationEntry{ID: oldID, Reason: reason, NewID: newID, RevokedAt: now}
	next := snap.list.Clone()
	next.Entries = append(next.Entries, entry)
	next.Version++
	next.UpdatedAt = now
	head, err := extendChain(r.provider, next.Head, entry)
	if err != nil {
		return domain.RevocationEntry{}, err
	}
	next.Head = head
	signed, err := SignList(r.keys, r.privateKey, *next)
	if err != nil {
		return domain.RevocationEntry{}, err
	}
	if r.store != nil {
		if err := r.store.Append(ctx, signed); err != nil {
			return domain.RevocationEntry{}, err
		}
	}
	r.current.Store(newRevocationSnapshot(&signed))
	if r.observer != nil {
		r.observer.ObserveRevocation(r.issuerID, signed.Version)
	}
	return entry, nil
}

// Current returns a copy of the latest signed version.
func (r *RevocationRegistry) Current() *domain.RevocationList {
	return r.current.Load().list.Clone()
}

func (r *RevocationRegistry) IssuerID() string {
	return r.issuerID
}

func (r *RevocationRegistry) IsRevoked(id string) bool {
	_, ok := r.current.Load().revoked[id]
	return ok
}

func (r *RevocationRegistry) ResolveForward(id string) (string, bool) {
	next, ok := r.current.Load().forward[id]
	return next, ok
}

// Version returns a stored historical version, or the current one when the
// store is absent.
func (r *RevocationRegistry) Version(ctx context.Context, version int64) (*domain.RevocationList, error) {
	current := r.current.Load().list
	if version == current.Version {
		return current.Clone(), nil
	}
	if r.store == nil {
		return nil, domain.NewError(domain.CodeNotFound, "revocation list version", domain.ErrNotFound)
	}
	return r.store.GetVersion(ctx, r.issuerID, version)
}

func newRevocationSnapshot(list *domain.RevocationList) *revocationSnapshot {
	snap := &revocationSnapshot{
		list:    list,
		forward: make(map[string]string, len(list.Entries)),
		revoked: make(map[string]struct{}, len(list.Entries)),
	}
	for _, e := range list.Entries {
		snap.revoked[e.ID] = struct{}{}
		if _, ok := snap.forward[e.ID]; !ok && e.NewID != "" {
			snap.forward[e.ID] = e.NewID
		}
	}
	return snap
}

// IsRevoked scans list for id. A nil list revokes nothing.
func IsRevoked(id string, list *domain.RevocationList) bool {
	if list == nil || id == "" {
		return false
	}
	for _, e := range list.Entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// ResolveForward follows exactly one forwarding hop. Longer chains are the
// caller's job; see FollowForwarding.
func ResolveForward(id string, list *domain.RevocationList) (string, bool) {
	if list == nil || id == "" {
		return "", false
	}
	for _, e := range list.Entries {
		if e.ID == id && e.NewID != "" {
			return e.NewID, true
		}
	}
	return "", false
}

// FollowForwarding walks single hops until an identifier without a
// successor is reached. It stops with a StructuralError on a cycle or when
// maxHops is exceeded. The returned chain starts with id.
func FollowForwarding(id string, list *domain.RevocationList, maxHops int) (string, []string, error) {
	if id == "" {
		return "", nil, domain.InputError("follow forwarding", "id is required")
	}
	if maxHops <= 0 {
		maxHops = 1
	}
	chain := []string{id}
	visited := map[string]struct{}{id: {}}
	current := id
	for hops := 0; ; hops++ {
		next, ok := ResolveForward(current, list)
		if !ok {
			return current, chain, nil
		}
		if _, seen := visited[next]; seen {
			return "", chain, domain.StructuralError("follow forwarding", "forwarding cycle at %s", next)
		}
		if hops >= maxHops {
			return "", chain, domain.StructuralError("follow forwarding", "more than %d hops from %s", maxHops, id)
		}
		visited[next] = struct{}{}
		chain = append(chain, next)
		current = next
	}
}

// SignList signs every field of list except the signature itself.
func SignList(keys domain.KeyManager, privateKey []byte, list domain.RevocationList) (domain.RevocationList, error) {
	if list.Issuer == "" {
		return domain.RevocationList{}, domain.InputError("sign revocation list", "issuer is required")
	}
	list.Signature = ""
	if list.Entries == nil {
		list.Entries = []domain.RevocationEntry{}
	}
	sig, err := crypto.SignPayload(keys, privateKey, list)
	if err != nil {
		return domain.RevocationList{}, err
	}
	list.Signature = sig
	return list, nil
}

// VerifyList checks the hash chain over the entries and the issuer
// signature.
func VerifyList(p crypto.Provider, keys domain.KeyManager, publicKey []byte, list domain.RevocationList) error {
	head, err := ChainHead(p, list.Entries)
	if err != nil {
		return err
	}
	if head != list.Head {
		return domain.NewError(domain.CodeCrypto, "verify revocation list", fmt.Errorf("%w: entry chain does not match head", domain.ErrSignatureInvalid))
	}
	sig := list.Signature
	list.Signature = ""
	if list.Entries == nil {
		list.Entries = []domain.RevocationEntry{}
	}
	if err := crypto.VerifyPayload(keys, publicKey, list, sig); err != nil {
		return domain.NewError(domain.CodeCrypto, "verify revocation list", err)
	}
	return nil
}

// VerifyAppendOnly checks that newer extends older: same issuer, a version
// that does not go backwards, and older's entries as an exact prefix.
func VerifyAppendOnly(p crypto.Provider, older, newer domain.RevocationList) error {
	const op = "verify append-only"
	if older.Issuer != newer.Issuer {
		return domain.StructuralError(op, "issuer changed from %q to %q", older.Issuer, newer.Issuer)
	}
	if newer.Version < older.Version {
		return domain.StructuralError(op, "version went from %d to %d", older.Version, newer.Version)
	}
	if len(newer.Entries) < len(older.Entries) {
		return domain.StructuralError(op, "entries shrank from %d to %d", len(older.Entries), len(newer.Entries))
	}
	if newer.Version == older.Version && len(newer.Entries) != len(older.Entries) {
		return domain.StructuralError(op, "version %d changed without a bump", newer.Version)
	}
	if newer.Version > older.Version && len(newer.Entries) == len(older.Entries) {
		return domain.StructuralError(op, "version bumped without a new entry")
	}
	prefix, err := ChainHead(p, newer.Entries[:len(older.Entries)])
	if err != nil {
		return err
	}
	if prefix != older.Head {
		return domain.StructuralError(op, "entries of version %d were rewritten", older.Version)
	}
	return nil
}

// ChainHead folds entries into link_i = H(tag ‖ link_{i-1} ‖ H(entry_i)),
// starting from an all-zero link. An empty list has an empty head.
func ChainHead(p crypto.Provider, entries []domain.RevocationEntry) (string, error) {
	head := ""
	for _, e := range entries {
		next, err := extendChain(p, head, e)
		if err != nil {
			return "", err
		}
		head = next
	}
	return head, nil
}

func extendChain(p crypto.Provider, head string, entry domain.RevocationEntry) (string, error) {
	if p == nil {
		p = crypto.Default()
	}
	prev := make([]byte, crypto.DigestSize)
	if head != "" {
		decoded, err := hex.DecodeString(head)
		if err != nil || len(decoded) != crypto.DigestSize {
			return "", domain.StructuralError("revocation chain", "malformed head")
		}
		prev = decoded
	}
	canonical, err := crypto.CanonicalizeAny(entry)
	if err != nil {
		return "", domain.NewError(domain.CodeInput, "revocation chain", err)
	}
	link := p.Sum([]byte{crypto.TagChain}, prev, p.Sum(canonical))
	return hex.EncodeToString(link), nil
}

// timestamp drops precision storage backends would lose, so a signed value
// survives a round trip.
func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
