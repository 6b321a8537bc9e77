package main

import (
	"encoding/hex"
	"fmt"

	"addrproof/internal/domain"
	"addrproof/internal/infra/merkle"
)

// treeProof is the CLI form of a membership proof: hex digests and the root
// the path was built against.
type treeProof struct {
	Root      string   `json:"root"`
	Leaf      string   `json:"leaf"`
	Index     int      `json:"index"`
	LeafCount int      `json:"leaf_count"`
	Path      []string `json:"path"`
}

func runTreeRoot(args []string) int {
	fs := newFlagSet("tree root")
	var leavesPath, hashAlg string
	fs.StringVar(&leavesPath, "leaves", "", "file with one identifier per line")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	tree, code := loadTree(leavesPath, hashAlg)
	if tree == nil {
		return code
	}
	fmt.Fprintf(stdout, "root=%s leaves=%d depth=%d\n", hex.EncodeToString(tree.Root()), tree.Len(), tree.Depth())
	return 0
}

func runTreeProve(args []string) int {
	fs := newFlagSet("tree prove")
	var leavesPath, leaf, hashAlg, outPath string
	fs.StringVar(&leavesPath, "leaves", "", "file with one identifier per line")
	fs.StringVar(&leaf, "leaf", "", "identifier to prove")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if leaf == "" {
		return fail("tree prove requires --leaf")
	}
	tree, code := loadTree(leavesPath, hashAlg)
	if tree == nil {
		return code
	}
	proof, err := tree.ProveLeaf(leaf)
	if err != nil {
		return fail("prove: %v", err)
	}
	if err := writeJSON(outPath, toTreeProof(proof, tree.Root())); err != nil {
		return fail("write proof: %v", err)
	}
	return 0
}

func runTreeVerify(args []string) int {
	fs := newFlagSet("tree verify")
	var proofPath, rootHex, hashAlg string
	fs.StringVar(&proofPath, "proof", "", "proof JSON from tree prove")
	fs.StringVar(&rootHex, "root", "", "expected root (default: the root in the proof file)")
	fs.StringVar(&hashAlg, "hash-alg", "sha256", "hash algorithm")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if proofPath == "" {
		return fail("tree verify requires --proof")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return fail("hash-alg: %v", err)
	}
	var in treeProof
	if err := readJSON(proofPath, &in); err != nil {
		return fail("read proof: %v", err)
	}
	if rootHex == "" {
		rootHex = in.Root
	}
	root, err := hex.DecodeString(rootHex)
	if err != nil {
		return fail("root: %v", err)
	}
	proof, err := fromTreeProof(in)
	if err != nil {
		return fail("proof: %v", err)
	}

	ok := merkle.VerifyProof(provider, proof, root)
	fmt.Fprintf(stdout, "valid=%t\n", ok)
	if ok {
		return 0
	}
	return 1
}

func loadTree(path, hashAlg string) (*merkle.Tree, int) {
	if path == "" {
		return nil, fail("--leaves is required")
	}
	provider, err := providerFor(hashAlg)
	if err != nil {
		return nil, fail("hash-alg: %v", err)
	}
	leaves, err := readLeaves(path)
	if err != nil {
		return nil, fail("read leaves: %v", err)
	}
	tree, err := merkle.BuildTree(provider, leaves)
	if err != nil {
		return nil, fail("build tree: %v", err)
	}
	return tree, 0
}

func toTreeProof(p domain.MerkleProof, root []byte) treeProof {
	path := make([]string, len(p.Path))
	for i, node := range p.Path {
		path[i] = hex.EncodeToString(node)
	}
	return treeProof{
		Root:      hex.EncodeToString(root),
		Leaf:      string(p.Leaf),
		Index:     p.Index,
		LeafCount: p.LeafCount,
		Path:      path,
	}
}

func fromTreeProof(in treeProof) (domain.MerkleProof, error) {
	path := make([][]byte, len(in.Path))
	for i, node := range in.Path {
		decoded, err := hex.DecodeString(node)
		if err != nil {
			return domain.MerkleProof{}, fmt.Errorf("path[%d]: %w", i, err)
		}
		path[i] = decoded
	}
	return domain.MerkleProof{
		Leaf:      []byte(in.Leaf),
		Path:      path,
		Index:     in.Index,
		LeafCount: in.LeafCount,
	}, nil
}
