package domain

// DisclosurePolicyInput asks whether a relying party may request a set of
// fields for a purpose.
type DisclosurePolicyInput struct {
	RelyingParty    string   `json:"relying_party"`
	Purpose         string   `json:"purpose"`
	RequestedFields []string `json:"requested_fields"`
	ProofType       string   `json:"proof_type,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow         bool         `json:"allow"`
	AllowedFields []string     `json:"allowed_fields,omitempty"`
	Deny          []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
