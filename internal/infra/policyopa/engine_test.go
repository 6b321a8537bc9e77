package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"addrproof/internal/domain"
)

func TestEngineAllowsDeliveryFields(t *testing.T) {
	engine := newEngine(t)
	input := basePolicyInput()

	first, err := engine.EvaluateDisclosure(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	second, err := engine.EvaluateDisclosure(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic policy evaluation")
	}
	if !first.Result.Allow {
		t.Fatalf("expected allow, got deny %+v", first.Result.Deny)
	}
	if !reflect.DeepEqual(first.Result.AllowedFields, []string{"city", "postal_code", "prefecture"}) {
		t.Fatalf("unexpected allowed fields %v", first.Result.AllowedFields)
	}
	if first.BundleHash == "" || first.BundleID != DefaultBundleID {
		t.Fatalf("expected bundle identity, got %q %q", first.BundleID, first.BundleHash)
	}
}

func TestEnginePolicyDenies(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name   string
		mutate func(input *domain.DisclosurePolicyInput)
		want   []string
	}{
		{
			name: "missing relying party",
			mutate: func(input *domain.DisclosurePolicyInput) {
				input.RelyingParty = ""
			},
			want: []string{"RELYING_PARTY_REQUIRED"},
		},
		{
			name: "unknown purpose",
			mutate: func(input *domain.DisclosurePolicyInput) {
				input.Purpose = "marketing"
			},
			want: []string{"PURPOSE_UNKNOWN"},
		},
		{
			name: "nothing requested",
			mutate: func(input *domain.DisclosurePolicyInput) {
				input.RequestedFields = nil
			},
			want: []string{"NO_FIELDS_REQUESTED"},
		},
		{
			name: "street for region check",
			mutate: func(input *domain.DisclosurePolicyInput) {
				input.Purpose = "region"
				input.RequestedFields = []string{"street", "prefecture"}
			},
			want: []string{"FIELD_NOT_ALLOWED"},
		},
		{
			name: "several denials ordered",
			mutate: func(input *domain.DisclosurePolicyInput) {
				input.RelyingParty = ""
				input.RequestedFields = []string{"bank_account"}
			},
			want: []string{"FIELD_NOT_ALLOWED", "RELYING_PARTY_REQUIRED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := basePolicyInput()
			tt.mutate(&input)
			out, err := engine.EvaluateDisclosure(context.Background(), input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Result.Allow {
				t.Fatalf("expected deny")
			}
			if len(out.Result.AllowedFields) != 0 {
				t.Fatalf("expected no allowed fields on deny, got %v", out.Result.AllowedFields)
			}
			if !reflect.DeepEqual(tt.want, denyOrder(out.Result.Deny)) {
				t.Fatalf("expected deny codes %v, got %v", tt.want, denyOrder(out.Result.Deny))
			}
		})
	}
}

func TestEngineFromBundlePath(t *testing.T) {
	dir := t.TempDir()
	regoContent := `package addrproof.disclosure
result := {"allow": true, "allowed_fields": input.requested_fields, "deny": []}
`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir, "custom")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := engine.EvaluateDisclosure(context.Background(), domain.DisclosurePolicyInput{RequestedFields: []string{"street"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !out.Result.Allow || out.BundleID != "custom" {
		t.Fatalf("unexpected evaluation %+v", out)
	}

	hash, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash != engine.BundleHash() {
		t.Fatal("bundle hash mismatch")
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644); err != nil {
		t.Fatalf("write readme: %v", err)
	}
	again, err := ComputeBundleHashFromPath(dir)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if again != hash {
		t.Fatal("non-policy files must not change the bundle hash")
	}
}

func TestEngineRejectsTimeBuiltin(t *testing.T) {
	rejectBuiltin(t, "time.now_ns()")
}

func TestEngineRejectsHttpSend(t *testing.T) {
	rejectBuiltin(t, "http.send({\"method\": \"get\", \"url\": \"https://example.com\"})")
}

func TestEngineRejectsRand(t *testing.T) {
	rejectBuiltin(t, "rand.intn(\"seed\", 10)")
}

func TestEngineRejectsGeneralPurposeBuiltins(t *testing.T) {
	for _, expr := range []string{
		`urlquery.encode("a b")`,
		`json.marshal({"a": 1})`,
		`pow(2, 8)`,
		`format_int(10, 16)`,
	} {
		t.Run(expr, func(t *testing.T) {
			rejectBuiltin(t, expr)
		})
	}
}

func TestEngineAcceptsFieldNameHelpers(t *testing.T) {
	dir := t.TempDir()
	regoContent := `package addrproof.disclosure
fields := [lower(trim_space(f)) | f := input.requested_fields[_]; not startswith(f, "_")]
result := {"allow": count(fields) != 0, "allowed_fields": sort(fields), "deny": []}
`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir, "helpers")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := engine.EvaluateDisclosure(context.Background(), domain.DisclosurePolicyInput{RequestedFields: []string{" City ", "_internal"}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !out.Result.Allow || !reflect.DeepEqual(out.Result.AllowedFields, []string{"city"}) {
		t.Fatalf("unexpected evaluation %+v", out.Result)
	}
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package addrproof.disclosure
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	if _, err := NewEngineFromBundlePath(context.Background(), dir, "test"); err == nil {
		t.Fatalf("expected builtin to be rejected")
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func basePolicyInput() domain.DisclosurePolicyInput {
	return domain.DisclosurePolicyInput{
		RelyingParty:    "rp-courier",
		Purpose:         "delivery",
		RequestedFields: []string{"prefecture", "postal_code", "city"},
	}
}

func denyOrder(deny []domain.PolicyDeny) []string {
	out := make([]string, 0, len(deny))
	for _, item := range deny {
		out = append(out, item.Code)
	}
	return out
}
