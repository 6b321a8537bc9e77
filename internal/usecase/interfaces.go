package usecase

import (
	"context"
	"time"

	"addrproof/internal/domain"
)

// RevocationListStore persists signed revocation list versions. Append must
// refuse a version that does not directly follow the stored latest one.
type RevocationListStore interface {
	Latest(ctx context.Context, issuerID string) (*domain.RevocationList, error)
	GetVersion(ctx context.Context, issuerID string, version int64) (*domain.RevocationList, error)
	Append(ctx context.Context, list domain.RevocationList) error
}

type LeafSetStore interface {
	Latest(ctx context.Context, setID string) (*domain.LeafSet, error)
	Save(ctx context.Context, set domain.LeafSet) error
}

type PolicyEngine interface {
	EvaluateDisclosure(ctx context.Context, input domain.DisclosurePolicyInput) (domain.PolicyEvaluation, error)
}

// VerificationObserver receives outcomes for metrics. Implementations must
// be safe for concurrent use.
type VerificationObserver interface {
	ObserveVerdict(v domain.Verdict, elapsed time.Duration)
	ObserveRevocation(issuerID string, version int64)
}

// IssuerKeys resolves issuer key material held outside the engine.
type IssuerKeys interface {
	KeyPair(issuerID string) (domain.KeyPair, error)
	PublicKey(issuerID string) ([]byte, error)
}
