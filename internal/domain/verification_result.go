package domain

import "time"

type Check string

const (
	CheckInput         Check = "input"
	CheckSignature     Check = "signature"
	CheckExpiry        Check = "expiry"
	CheckRevocation    Check = "revocation"
	CheckHolderBinding Check = "holder_binding"
	CheckMembership    Check = "membership"
	CheckDisclosure    Check = "disclosure"
	CheckVersion       Check = "version"
	CheckLocker        Check = "locker"
)

// Verdict is the outcome of a full bundle verification. FailedCheck names
// the first check that failed; it is empty when Valid is true.
type Verdict struct {
	Valid          bool              `json:"valid"`
	FailedCheck    Check             `json:"failed_check,omitempty"`
	Code           ErrorCode         `json:"code,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	ProofType      ProofKind         `json:"proof_type,omitempty"`
	Disclosed      map[string]string `json:"disclosed,omitempty"`
	VerifiedFields []string          `json:"verified_fields,omitempty"`
	CheckedAt      time.Time         `json:"checked_at"`
}

func Fail(check Check, err error, at time.Time) Verdict {
	v := Verdict{Valid: false, FailedCheck: check, Code: CodeOf(err), CheckedAt: at}
	if err != nil {
		v.Reason = err.Error()
	}
	return v
}
