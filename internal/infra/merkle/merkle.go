package merkle

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"

	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
)

var (
	ErrInvalidHashLen = errors.New("invalid hash length")
	ErrInvalidIndex   = errors.New("invalid leaf index")
	ErrInvalidSize    = errors.New("invalid tree size")
)

func LeafHash(p crypto.Provider, id []byte) []byte {
	return p.Sum([]byte{crypto.TagLeaf}, id)
}

func NodeHash(p crypto.Provider, left, right []byte) []byte {
	return p.Sum([]byte{crypto.TagNode}, left, right)
}

// Tree keeps every level so proofs are answered without rehashing. Level 0
// holds the leaf hashes; the last level holds the root. A level with an odd
// count promotes its last node unchanged.
type Tree struct {
	provider crypto.Provider
	leaves   []string
	index    map[string]int
	levels   [][][]byte
}

// BuildTree hashes leaves in order. Duplicate identifiers are kept in place;
// lookups by identifier resolve to the first occurrence.
func BuildTree(p crypto.Provider, leaves []string) (*Tree, error) {
	if p == nil {
		p = crypto.Default()
	}
	if len(leaves) == 0 {
		return nil, domain.NewError(domain.CodeInput, "build tree", domain.ErrEmptyInput)
	}
	t := &Tree{
		provider: p,
		leaves:   append([]string(nil), leaves...),
		index:    make(map[string]int, len(leaves)),
	}
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = LeafHash(p, []byte(leaf))
		if _, ok := t.index[leaf]; !ok {
			t.index[leaf] = i
		}
	}
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, NodeHash(p, level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t, nil
}

func (t *Tree) Root() []byte {
	top := t.levels[len(t.levels)-1]
	return cloneHash(top[0])
}

func (t *Tree) Len() int {
	return len(t.leaves)
}

// Depth is ceil(log2(n)), the longest path in the tree.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

func (t *Tree) Leaves() []string {
	return append([]string(nil), t.leaves...)
}

func (t *Tree) IndexOf(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// Prove returns the sibling path for the leaf at index. Levels where the
// node is promoted contribute no path element.
func (t *Tree) Prove(index int) (domain.MerkleProof, error) {
	if index < 0 || index >= len(t.leaves) {
		return domain.MerkleProof{}, domain.NewError(domain.CodeInput, "prove", ErrInvalidIndex)
	}
	path := make([][]byte, 0, t.Depth())
	pos := index
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := pos ^ 1
		if sibling < len(level) {
			path = append(path, cloneHash(level[sibling]))
		}
		pos /= 2
	}
	return domain.MerkleProof{
		Leaf:      []byte(t.leaves[index]),
		Path:      path,
		Index:     index,
		LeafCount: len(t.leaves),
	}, nil
}

func (t *Tree) ProveLeaf(id string) (domain.MerkleProof, error) {
	index, ok := t.index[id]
	if !ok {
		return domain.MerkleProof{}, domain.NewError(domain.CodeNotFound, "prove membership", fmt.Errorf("%w: leaf %q", domain.ErrNotFound, id))
	}
	return t.Prove(index)
}

// ProveMembership builds a throwaway tree. Callers proving many leaves of the
// same set should build the Tree once and call ProveLeaf.
func ProveMembership(p crypto.Provider, leaves []string, target string) (domain.MerkleProof, error) {
	tree, err := BuildTree(p, leaves)
	if err != nil {
		return domain.MerkleProof{}, err
	}
	return tree.ProveLeaf(target)
}

// VerifyMembership recomputes the root from leaf and path. It reports false
// for any malformed input instead of failing.
func VerifyMembership(p crypto.Provider, leaf []byte, path [][]byte, index int, leafCount int, root []byte) bool {
	if p == nil {
		p = crypto.Default()
	}
	if leafCount <= 0 || index < 0 || index >= leafCount {
		return false
	}
	if len(root) != crypto.DigestSize || len(path) > bits.Len(uint(leafCount)) {
		return false
	}
	current := LeafHash(p, leaf)
	used := 0
	for n := leafCount; n > 1; n = (n + 1) / 2 {
		if index == n-1 && n%2 == 1 {
			index /= 2
			continue
		}
		if used >= len(path) || len(path[used]) != crypto.DigestSize {
			return false
		}
		if index%2 == 0 {
			current = NodeHash(p, current, path[used])
		} else {
			current = NodeHash(p, path[used], current)
		}
		used++
		index /= 2
	}
	if used != len(path) {
		return false
	}
	return bytes.Equal(current, root)
}

func VerifyProof(p crypto.Provider, proof domain.MerkleProof, root []byte) bool {
	return VerifyMembership(p, proof.Leaf, proof.Path, proof.Index, proof.LeafCount, root)
}

// CheckShape reports structural problems with a proof before it is verified:
// path entries of the wrong size or a path longer than the tree is deep.
func CheckShape(proof domain.MerkleProof) error {
	if proof.LeafCount <= 0 {
		return domain.StructuralError("merkle proof", "leaf count must be positive")
	}
	if proof.Index < 0 || proof.Index >= proof.LeafCount {
		return domain.StructuralError("merkle proof", "index %d outside tree of %d leaves", proof.Index, proof.LeafCount)
	}
	if want := expectedPathLen(proof.Index, proof.LeafCount); len(proof.Path) != want {
		return domain.StructuralError("merkle proof", "path has %d elements, expected %d", len(proof.Path), want)
	}
	for i, node := range proof.Path {
		if len(node) != crypto.DigestSize {
			return domain.StructuralError("merkle proof", "path element %d: %v", i, ErrInvalidHashLen)
		}
	}
	return nil
}

func expectedPathLen(index, leafCount int) int {
	count := 0
	for n := leafCount; n > 1; n = (n + 1) / 2 {
		if !(index == n-1 && n%2 == 1) {
			count++
		}
		index /= 2
	}
	return count
}

func cloneHash(hash []byte) []byte {
	if hash == nil {
		return nil
	}
	out := make([]byte, len(hash))
	copy(out, hash)
	return out
}
