package policyopa

import "github.com/open-policy-agent/opa/ast"

// Disclosure policies compare requested field names against purpose sets
// and build deny messages; nothing else is compiled in. `=`, `:=` and
// `==` lower to eq and equal.
var disclosureBuiltins = map[string]struct{}{
	// comparison
	"eq":    {},
	"equal": {},
	"neq":   {},

	// aggregates over requested fields
	"count": {},
	"sort":  {},

	// field names and messages
	"concat":     {},
	"endswith":   {},
	"lower":      {},
	"sprintf":    {},
	"startswith": {},
	"trim_space": {},
}

func isDisclosureBuiltin(name string) bool {
	_, ok := disclosureBuiltins[name]
	return ok
}

// restrictBuiltins narrows caps so the compiler rejects any call outside
// disclosureBuiltins.
func restrictBuiltins(caps *ast.Capabilities) {
	kept := make([]*ast.Builtin, 0, len(disclosureBuiltins))
	for _, builtin := range caps.Builtins {
		if isDisclosureBuiltin(builtin.Name) {
			kept = append(kept, builtin)
		}
	}
	caps.Builtins = kept
}
