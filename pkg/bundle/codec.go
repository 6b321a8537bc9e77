package bundle

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"

	"addrproof/internal/domain"
)

// MaxSize bounds a single encoded bundle.
const MaxSize = 1 << 20

const op = "decode bundle"

// Decode parses and validates one bundle. Unknown fields are rejected so a
// typo never silently drops a proof element.
func Decode(data []byte) (domain.ProofBundle, error) {
	if len(data) == 0 {
		return domain.ProofBundle{}, domain.InputError(op, "empty body")
	}
	if len(data) > MaxSize {
		return domain.ProofBundle{}, domain.InputError(op, "bundle exceeds %d bytes", MaxSize)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var w Wire
	if err := dec.Decode(&w); err != nil {
		return domain.ProofBundle{}, domain.InputError(op, "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return domain.ProofBundle{}, domain.InputError(op, "trailing data after bundle")
	}
	return FromWire(w)
}

func Encode(b domain.ProofBundle) ([]byte, error) {
	w, err := ToWire(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// FromWire checks that every field the proof type needs is present and
// well formed.
func FromWire(w Wire) (domain.ProofBundle, error) {
	if w.Credential == nil {
		return domain.ProofBundle{}, domain.InputError(op, "credential is required")
	}
	cred := *w.Credential
	if w.Signature != "" && (cred.Proof == nil || cred.Proof.Signature != w.Signature) {
		return domain.ProofBundle{}, domain.InputError(op, "signature does not match the credential proof")
	}
	if w.ExpiresAt != nil && (cred.ExpiresAt == nil || !cred.ExpiresAt.Equal(*w.ExpiresAt)) {
		return domain.ProofBundle{}, domain.InputError(op, "expires_at does not match the credential")
	}

	out := domain.ProofBundle{Credential: cred}
	switch domain.ProofKind(w.ProofType) {
	case domain.ProofMembership:
		proof, err := membershipFromWire(w)
		if err != nil {
			return domain.ProofBundle{}, err
		}
		out.Proof = proof
	case domain.ProofSelectiveReveal:
		proof, err := disclosureFromWire(w)
		if err != nil {
			return domain.ProofBundle{}, err
		}
		out.Proof = proof
	case domain.ProofVersion:
		if w.PreviousID == "" {
			return domain.ProofBundle{}, missing("previous_id", w.ProofType)
		}
		out.Proof = domain.VersionProof{PreviousID: w.PreviousID}
	case domain.ProofLocker:
		if w.LockerID == "" {
			return domain.ProofBundle{}, missing("locker_id", w.ProofType)
		}
		randomness, err := decodeHexField("randomness", w.Randomness, w.ProofType)
		if err != nil {
			return domain.ProofBundle{}, err
		}
		out.Proof = domain.LockerProof{LockerID: w.LockerID, Randomness: randomness}
	case "":
		return domain.ProofBundle{}, domain.InputError(op, "proof_type is required")
	default:
		return domain.ProofBundle{}, domain.InputError(op, "unsupported proof_type %q", w.ProofType)
	}

	holder, err := holderFromWire(w)
	if err != nil {
		return domain.ProofBundle{}, err
	}
	out.Holder = holder
	return out, nil
}

func membershipFromWire(w Wire) (domain.MembershipProof, error) {
	if w.Index == nil {
		return domain.MembershipProof{}, missing("index", w.ProofType)
	}
	if w.Leaf == "" {
		return domain.MembershipProof{}, missing("leaf", w.ProofType)
	}
	if w.LeafCount <= 0 {
		return domain.MembershipProof{}, missing("leaf_count", w.ProofType)
	}
	root, err := decodeHexField("merkle_root", w.MerkleRoot, w.ProofType)
	if err != nil {
		return domain.MembershipProof{}, err
	}
	path := make([][]byte, len(w.MerklePath))
	for i, node := range w.MerklePath {
		decoded, err := hex.DecodeString(node)
		if err != nil {
			return domain.MembershipProof{}, domain.InputError(op, "merkle_path[%d] is not hex", i)
		}
		path[i] = decoded
	}
	return domain.MembershipProof{
		Root: root,
		Merkle: domain.MerkleProof{
			Leaf:      []byte(w.Leaf),
			Path:      path,
			Index:     *w.Index,
			LeafCount: w.LeafCount,
		},
	}, nil
}

func disclosureFromWire(w Wire) (domain.DisclosureProof, error) {
	if len(w.DisclosedFields) == 0 {
		return domain.DisclosureProof{}, missing("disclosed_fields", w.ProofType)
	}
	if len(w.FieldHashes) == 0 {
		return domain.DisclosureProof{}, missing("field_hashes", w.ProofType)
	}
	hashes := make(map[string][]byte, len(w.FieldHashes))
	for name, value := range w.FieldHashes {
		decoded, err := hex.DecodeString(value)
		if err != nil {
			return domain.DisclosureProof{}, domain.InputError(op, "field_hashes[%s] is not hex", name)
		}
		hashes[name] = decoded
	}
	set := domain.DisclosureSet{PerFieldHash: hashes, RevealedValues: w.DisclosedFields}
	if w.UnrevealedCommitment != "" {
		decoded, err := hex.DecodeString(w.UnrevealedCommitment)
		if err != nil {
			return domain.DisclosureProof{}, domain.InputError(op, "unrevealed_commitment is not hex")
		}
		set.UnrevealedCommitment = decoded
	}
	return domain.DisclosureProof{Disclosure: set}, nil
}

// holderFromWire accepts either no holder fields or all three.
func holderFromWire(w Wire) (*domain.HolderBinding, error) {
	if w.Commitment == "" && w.Challenge == "" && w.Response == "" {
		return nil, nil
	}
	var fields [3][]byte
	for i, f := range []struct{ name, value string }{
		{"commitment", w.Commitment},
		{"challenge", w.Challenge},
		{"response", w.Response},
	} {
		decoded, err := decodeHexField(f.name, f.value, w.ProofType)
		if err != nil {
			return nil, err
		}
		fields[i] = decoded
	}
	return &domain.HolderBinding{Commitment: fields[0], Challenge: fields[1], Response: fields[2]}, nil
}

func ToWire(b domain.ProofBundle) (Wire, error) {
	if b.Proof == nil {
		return Wire{}, domain.InputError("encode bundle", "proof is required")
	}
	cred := b.Credential
	w := Wire{
		ProofType:  string(b.Proof.Kind()),
		Credential: &cred,
		ExpiresAt:  cred.ExpiresAt,
	}
	if cred.Proof != nil {
		w.Signature = cred.Proof.Signature
	}
	switch p := b.Proof.(type) {
	case domain.MembershipProof:
		index := p.Merkle.Index
		w.MerkleRoot = hex.EncodeToString(p.Root)
		w.Index = &index
		w.LeafCount = p.Merkle.LeafCount
		w.Leaf = string(p.Merkle.Leaf)
		w.MerklePath = make([]string, len(p.Merkle.Path))
		for i, node := range p.Merkle.Path {
			w.MerklePath[i] = hex.EncodeToString(node)
		}
	case domain.DisclosureProof:
		w.DisclosedFields = p.Disclosure.RevealedValues
		w.FieldHashes = make(map[string]string, len(p.Disclosure.PerFieldHash))
		for name, hash := range p.Disclosure.PerFieldHash {
			w.FieldHashes[name] = hex.EncodeToString(hash)
		}
		if len(p.Disclosure.UnrevealedCommitment) > 0 {
			w.UnrevealedCommitment = hex.EncodeToString(p.Disclosure.UnrevealedCommitment)
		}
	case domain.VersionProof:
		w.PreviousID = p.PreviousID
	case domain.LockerProof:
		w.LockerID = p.LockerID
		w.Randomness = hex.EncodeToString(p.Randomness)
	default:
		return Wire{}, domain.InputError("encode bundle", "unsupported proof %T", b.Proof)
	}
	if b.Holder != nil {
		w.Commitment = hex.EncodeToString(b.Holder.Commitment)
		w.Challenge = hex.EncodeToString(b.Holder.Challenge)
		w.Response = hex.EncodeToString(b.Holder.Response)
	}
	return w, nil
}

func decodeHexField(name, value, proofType string) ([]byte, error) {
	if value == "" {
		return nil, missing(name, proofType)
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, domain.InputError(op, "%s is not hex", name)
	}
	return decoded, nil
}

func missing(field, proofType string) error {
	return domain.InputError(op, "%s is required for %s proofs", field, proofType)
}
