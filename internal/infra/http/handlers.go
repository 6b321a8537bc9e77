package http

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"addrproof/internal/domain"
	"addrproof/internal/infra/schnorr"
	"addrproof/internal/usecase"
	"addrproof/pkg/bundle"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// verifyContextInput is what a relying party resolved before asking for a
// verdict. ExpectedRoot wins over LeafSetID when both are set.
type verifyContextInput struct {
	ExpectedRoot         string `json:"expected_root,omitempty"`
	LeafSetID            string `json:"leaf_set_id,omitempty"`
	Challenge            string `json:"challenge,omitempty"`
	RequireHolderBinding bool   `json:"require_holder_binding,omitempty"`
}

type verifyRequest struct {
	Bundle json.RawMessage `json:"bundle"`
	verifyContextInput
}

type verifyBatchRequest struct {
	IssuerID string            `json:"issuer_id,omitempty"`
	Bundles  []json.RawMessage `json:"bundles"`
	verifyContextInput
}

type verifyBatchResponse struct {
	Verdicts []domain.Verdict `json:"verdicts"`
}

type issueCredentialRequest struct {
	SubjectID      string            `json:"subject_id"`
	PID            string            `json:"pid"`
	Record         map[string]string `json:"record,omitempty"`
	HolderKey      string            `json:"holder_key,omitempty"`
	LockerID       string            `json:"locker_id,omitempty"`
	ExpiresInHours int               `json:"expires_in_hours,omitempty"`
	Format         string            `json:"format,omitempty"`
}

type issueCredentialResponse struct {
	Credential       domain.Credential `json:"credential"`
	LockerRandomness string            `json:"locker_randomness,omitempty"`
	Token            string            `json:"token,omitempty"`
}

type revokeRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	NewID  string `json:"new_id,omitempty"`
}

type revokeResponse struct {
	Entry   domain.RevocationEntry `json:"entry"`
	Version int64                  `json:"version"`
	Head    string                 `json:"head"`
}

type forwardResponse struct {
	ID      string   `json:"id"`
	Revoked bool     `json:"revoked"`
	NewID   string   `json:"new_id,omitempty"`
	Latest  string   `json:"latest,omitempty"`
	Chain   []string `json:"chain,omitempty"`
}

type publishLeafSetRequest struct {
	Leaves []string `json:"leaves"`
}

type leafSetResponse struct {
	SetID     string `json:"set_id"`
	Version   int64  `json:"version"`
	Root      string `json:"root"`
	LeafCount int    `json:"leaf_count"`
	UpdatedAt string `json:"updated_at"`
}

type leafProofResponse struct {
	SetID     string   `json:"set_id"`
	Version   int64    `json:"version"`
	Root      string   `json:"root"`
	Leaf      string   `json:"leaf"`
	Index     int      `json:"index"`
	LeafCount int      `json:"leaf_count"`
	Path      []string `json:"path"`
}

type issuerKeyResponse struct {
	IssuerID  string `json:"issuer_id"`
	Alg       string `json:"alg"`
	KeyID     string `json:"key_id"`
	PublicKey string `json:"public_key"`
}

func (s *Server) handleVerify(c *gin.Context) {
	if !s.enforceRateLimit(c, routeBundlesVerify) {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	decoded, err := bundle.Decode(req.Bundle)
	if err != nil {
		c.JSON(http.StatusOK, s.inputVerdict(err))
		return
	}
	vctx, err := s.verificationContext(c, req.verifyContextInput, decoded.Credential.IssuerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.verifier.VerifyFull(decoded, vctx))
}

// handleVerifyBatch checks every bundle against one issuer. Bundles that
// fail to decode get an input verdict in their slot.
func (s *Server) handleVerifyBatch(c *gin.Context) {
	if !s.enforceRateLimit(c, routeBundlesVerifyBatch) {
		return
	}
	var req verifyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if len(req.Bundles) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "bundles are required")
		return
	}

	verdicts := make([]domain.Verdict, len(req.Bundles))
	decoded := make([]domain.ProofBundle, 0, len(req.Bundles))
	slots := make([]int, 0, len(req.Bundles))
	issuerID := req.IssuerID
	for i, raw := range req.Bundles {
		b, err := bundle.Decode(raw)
		if err != nil {
			verdicts[i] = s.inputVerdict(err)
			continue
		}
		if issuerID == "" {
			issuerID = b.Credential.IssuerID
		}
		decoded = append(decoded, b)
		slots = append(slots, i)
	}
	if len(decoded) > 0 {
		vctx, err := s.verificationContext(c, req.verifyContextInput, issuerID)
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := s.verifier.VerifyBatch(c.Request.Context(), decoded, vctx)
		if err != nil {
			writeError(c, err)
			return
		}
		for i, v := range out {
			verdicts[slots[i]] = v
		}
	}
	c.JSON(http.StatusOK, verifyBatchResponse{Verdicts: verdicts})
}

func (s *Server) inputVerdict(err error) domain.Verdict {
	v := domain.Fail(domain.CheckInput, err, s.now().UTC())
	s.metrics.ObserveVerdict(v, 0)
	return v
}

func (s *Server) verificationContext(c *gin.Context, in verifyContextInput, issuerID string) (domain.VerificationContext, error) {
	vctx := domain.VerificationContext{
		Now:                  s.now().UTC(),
		RequireHolderBinding: in.RequireHolderBinding,
		Revocations:          s.revocationsFor(issuerID),
	}
	if s.issuerKeys != nil && issuerID != "" {
		if pub, err := s.issuerKeys.PublicKey(issuerID); err == nil {
			vctx.IssuerPublicKey = pub
		}
	}
	if in.Challenge != "" {
		challenge, err := hex.DecodeString(in.Challenge)
		if err != nil {
			return vctx, domain.InputError("verify", "challenge must be hex")
		}
		vctx.Challenge = challenge
	}
	switch {
	case in.ExpectedRoot != "":
		root, err := hex.DecodeString(in.ExpectedRoot)
		if err != nil {
			return vctx, domain.InputError("verify", "expected_root must be hex")
		}
		vctx.ExpectedRoot = root
	case in.LeafSetID != "" && s.leafSets != nil:
		set, _, err := s.leafSets.Tree(c.Request.Context(), in.LeafSetID)
		if err != nil {
			return vctx, err
		}
		vctx.ExpectedRoot = set.Root
	}
	return vctx, nil
}

// revocationsFor returns the list this server signs for issuerID, or nil
// when it does not run that issuer's registry.
func (s *Server) revocationsFor(issuerID string) *domain.RevocationList {
	if s.registry == nil || s.registry.IssuerID() != issuerID {
		return nil
	}
	return s.registry.Current()
}

func (s *Server) handleChallenge(c *gin.Context) {
	challenge, err := schnorr.NewChallenge(s.provider)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge": hex.EncodeToString(challenge)})
}

func (s *Server) handleIssuerKey(c *gin.Context) {
	if s.issuerKeys == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	issuerID := c.Param("issuer_id")
	pub, err := s.issuerKeys.PublicKey(issuerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, issuerKeyResponse{
		IssuerID:  issuerID,
		Alg:       s.keys.Alg(),
		KeyID:     domain.KeyID(pub),
		PublicKey: hex.EncodeToString(pub),
	})
}

func (s *Server) handleAdminIssueCredential(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.issuerKeys == nil || s.cfg.IssuerID == "" {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req issueCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	pair, err := s.issuerKeys.KeyPair(s.cfg.IssuerID)
	if err != nil {
		writeError(c, err)
		return
	}

	in := usecase.AddressClaimsInput{PID: strings.TrimSpace(req.PID), Record: req.Record}
	if req.HolderKey != "" {
		key, err := bundle.DecodeKey(req.HolderKey)
		if err != nil {
			writeError(c, domain.InputError("issue credential", "holder_key: %v", err))
			return
		}
		in.HolderKey = key
	}
	var resp issueCredentialResponse
	if req.LockerID != "" {
		commitment, err := s.builder.CommitLocker(req.LockerID)
		if err != nil {
			writeError(c, err)
			return
		}
		in.Locker = &commitment
		resp.LockerRandomness = hex.EncodeToString(commitment.Randomness)
	}
	claims, err := s.builder.AddressClaims(in)
	if err != nil {
		writeError(c, err)
		return
	}

	var expiresAt *time.Time
	ttl := s.cfg.CredentialTTL()
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}
	if ttl > 0 {
		exp := s.now().UTC().Add(ttl)
		expiresAt = &exp
	}
	cred, err := s.issuer.Issue(req.SubjectID, s.cfg.IssuerID, claims, expiresAt)
	if err != nil {
		writeError(c, err)
		return
	}
	cred, err = s.issuer.Sign(cred, pair.PrivateKey)
	if err != nil {
		writeError(c, err)
		return
	}
	resp.Credential = cred

	switch req.Format {
	case "", "json":
	case "jwt":
		if s.envelope == nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "jwt format needs the soft key backend")
			return
		}
		token, err := s.envelope.Seal(cred, pair.PrivateKey)
		if err != nil {
			writeError(c, err)
			return
		}
		resp.Token = token
	default:
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "format must be json or jwt")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRevocationList(c *gin.Context) {
	list := s.revocationsFor(c.Param("issuer_id"))
	if list == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleRevocationVersion(c *gin.Context) {
	if s.registry == nil || s.registry.IssuerID() != c.Param("issuer_id") {
		writeError(c, domain.ErrNotFound)
		return
	}
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil || version < 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_INPUT", "version must be a non-negative integer")
		return
	}
	list, err := s.registry.Version(c.Request.Context(), version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleForward(c *gin.Context) {
	if s.registry == nil || s.registry.IssuerID() != c.Param("issuer_id") {
		writeError(c, domain.ErrNotFound)
		return
	}
	id := c.Param("id")
	out := forwardResponse{ID: id, Revoked: s.registry.IsRevoked(id)}
	if next, ok := s.registry.ResolveForward(id); ok {
		out.NewID = next
	}
	if c.Query("follow") == "true" {
		latest, chain, err := usecase.FollowForwarding(id, s.registry.Current(), s.cfg.MaxForwardHops)
		if err != nil {
			writeError(c, err)
			return
		}
		out.Latest, out.Chain = latest, chain
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAdminRevoke(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.registry == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	entry, err := s.registry.Revoke(c.Request.Context(), req.ID, req.Reason, req.NewID)
	if err != nil {
		writeError(c, err)
		return
	}
	current := s.registry.Current()
	c.JSON(http.StatusOK, revokeResponse{Entry: entry, Version: current.Version, Head: current.Head})
}

func (s *Server) handleAdminPublishLeafSet(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	var req publishLeafSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	set, err := s.leafSets.Publish(c.Request.Context(), c.Param("set_id"), req.Leaves)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildLeafSetResponse(set))
}

func (s *Server) handleLeafSet(c *gin.Context) {
	set, _, err := s.leafSets.Tree(c.Request.Context(), c.Param("set_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildLeafSetResponse(set))
}

func (s *Server) handleLeafProof(c *gin.Context) {
	proof, set, err := s.leafSets.Prove(c.Request.Context(), c.Param("set_id"), c.Param("leaf"))
	if err != nil {
		writeError(c, err)
		return
	}
	path := make([]string, len(proof.Path))
	for i, node := range proof.Path {
		path[i] = hex.EncodeToString(node)
	}
	c.JSON(http.StatusOK, leafProofResponse{
		SetID:     set.ID,
		Version:   set.Version,
		Root:      hex.EncodeToString(set.Root),
		Leaf:      string(proof.Leaf),
		Index:     proof.Index,
		LeafCount: proof.LeafCount,
		Path:      path,
	})
}

func (s *Server) handleEvaluatePolicy(c *gin.Context) {
	if s.policy == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var input domain.DisclosurePolicyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	out, err := s.policy.EvaluateDisclosure(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		switch c.Request.URL.Path {
		case "/v1/bundles:verify":
			s.handleVerify(c)
			return
		case "/v1/bundles:verifyBatch":
			s.handleVerifyBatch(c)
			return
		case "/v1/disclosure-policy:evaluate":
			s.handleEvaluatePolicy(c)
			return
		}
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func buildLeafSetResponse(set domain.LeafSet) leafSetResponse {
	return leafSetResponse{
		SetID:     set.ID,
		Version:   set.Version,
		Root:      hex.EncodeToString(set.Root),
		LeafCount: len(set.Leaves),
		UpdatedAt: set.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case isDomainError(err):
		switch domain.CodeOf(err) {
		case domain.CodeInput:
			status, code = http.StatusBadRequest, "INVALID_INPUT"
		case domain.CodeCrypto:
			status, code = http.StatusBadRequest, "CRYPTO_ERROR"
		case domain.CodeExpired:
			status, code = http.StatusBadRequest, "EXPIRED"
		case domain.CodeRevoked:
			status, code = http.StatusConflict, "REVOKED"
		case domain.CodeNotFound:
			status, code = http.StatusNotFound, "NOT_FOUND"
		case domain.CodeStructural:
			status, code = http.StatusConflict, "STRUCTURAL_ERROR"
		}
	}
	writeErrorCode(c, status, code, err.Error())
}

// isDomainError reports whether err was classified by the engine. Anything
// else is an infrastructure failure.
func isDomainError(err error) bool {
	var typed *domain.Error
	if errors.As(err, &typed) {
		return true
	}
	for _, sentinel := range []error{
		domain.ErrInvalidInput, domain.ErrEmptyInput, domain.ErrNotFound,
		domain.ErrSignatureInvalid, domain.ErrCommitmentMismatch, domain.ErrExpired,
		domain.ErrRevoked, domain.ErrAlreadyRevoked, domain.ErrStructural,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
