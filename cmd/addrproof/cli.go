package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"addrproof/internal/infra/crypto"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "commit":
		return runCommit(args[2:])
	case "open":
		return runOpen(args[2:])
	case "tree":
		if len(args) >= 3 {
			switch args[2] {
			case "root":
				return runTreeRoot(args[3:])
			case "prove":
				return runTreeProve(args[3:])
			case "verify":
				return runTreeVerify(args[3:])
			}
		}
	case "disclose":
		if len(args) >= 3 {
			switch args[2] {
			case "prepare":
				return runDisclosePrepare(args[3:])
			case "reveal":
				return runDiscloseReveal(args[3:])
			case "verify":
				return runDiscloseVerify(args[3:])
			}
		}
	case "credential":
		if len(args) >= 3 {
			switch args[2] {
			case "issue":
				return runCredentialIssue(args[3:])
			case "verify":
				return runCredentialVerify(args[3:])
			}
		}
	case "bundle":
		if len(args) >= 3 && args[2] == "verify" {
			return runBundleVerify(args[3:])
		}
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "addrproof"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(stderr, "usage:\n")
	fmt.Fprintf(stderr, "  %s keygen [--kind issuer|tink|holder]\n", name)
	fmt.Fprintf(stderr, "  %s commit --message <text> [--randomness-hex <hex>]\n", name)
	fmt.Fprintf(stderr, "  %s open --commitment <hex> --message <text> --randomness <hex>\n", name)
	fmt.Fprintf(stderr, "  %s tree root --leaves <file>\n", name)
	fmt.Fprintf(stderr, "  %s tree prove --leaves <file> --leaf <id> [--out <file>]\n", name)
	fmt.Fprintf(stderr, "  %s tree verify --proof <proof.json> [--root <hex>]\n", name)
	fmt.Fprintf(stderr, "  %s disclose prepare --record <record.json>\n", name)
	fmt.Fprintf(stderr, "  %s disclose reveal --record <record.json> --fields <a,b> [--out <file>]\n", name)
	fmt.Fprintf(stderr, "  %s disclose verify --in <set.json> [--digest <hex>] [--nonce <hex>]\n", name)
	fmt.Fprintf(stderr, "  %s credential issue --issuer-id <id> --subject-id <id> --pid <pid> (--key-hex <hex>|--key-base64 <b64>) [--record <record.json>] [--holder-key <hex>] [--locker-id <id>] [--expires-in <duration>] [--jwt] [--out <file>]\n", name)
	fmt.Fprintf(stderr, "  %s credential verify (--in <credential.json>|--token <jwt>) --pubkey <hex|b64> [--revocations <list.json> [--previous-revocations <list.json>]]\n", name)
	fmt.Fprintf(stderr, "  %s bundle verify --in <bundle.json> --pubkey <hex|b64> [--root <hex>|--leaves <file>] [--revocations <list.json> [--previous-revocations <list.json>]] [--challenge <hex>] [--require-holder-binding]\n", name)
	fmt.Fprintf(stderr, "every command accepts --hash-alg sha256|blake3|blake2b\n")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func providerFor(alg string) (crypto.Provider, error) {
	return crypto.NewProvider(alg, nil)
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	if path == "" {
		_, err = stdout.Write(payload)
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func readJSON(path string, v any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

// readLeaves reads one identifier per line. Blank lines are skipped.
func readLeaves(path string) ([]string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var leaves []string
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			leaves = append(leaves, line)
		}
	}
	return leaves, nil
}

func splitFields(value string) []string {
	var out []string
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func fail(format string, args ...any) int {
	fmt.Fprintf(stderr, format+"\n", args...)
	return 1
}
