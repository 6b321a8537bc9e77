package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LeafSetDSN  string
	LogLevel    string

	HashAlg    string
	KeyBackend string

	IssuerID                string
	IssuerPrivateKeyBase64  string
	IssuerPrivateKeySeedHex string
	IssuerKeysetBase64      string

	AdminAPIKey        string
	CredentialTTLHours int
	MaxForwardHops     int
	BatchConcurrency   int
	PolicyBundlePath   string

	RateLimitRequests       int
	RateLimitWindowSeconds  int
	RateLimitIncludeSubject bool
	RateLimitFailClosed     bool
	RateLimitMaxKeys        int
	RateLimitSubjectMaxLen  int
	RateLimitSubjectHash    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:                addr,
		PostgresDSN:             os.Getenv("POSTGRES_DSN"),
		LeafSetDSN:              os.Getenv("LEAFSET_DSN"),
		LogLevel:                envDefault("LOG_LEVEL", "info"),
		HashAlg:                 envDefault("HASH_ALG", "sha256"),
		KeyBackend:              envDefault("KEY_BACKEND", "soft"),
		IssuerID:                os.Getenv("ISSUER_ID"),
		IssuerPrivateKeyBase64:  os.Getenv("ISSUER_PRIVATE_KEY_BASE64"),
		IssuerPrivateKeySeedHex: os.Getenv("ISSUER_PRIVATE_KEY_SEED_HEX"),
		IssuerKeysetBase64:      os.Getenv("ISSUER_KEYSET_BASE64"),
		AdminAPIKey:             os.Getenv("ADMIN_API_KEY"),
		CredentialTTLHours:      envIntDefault("CREDENTIAL_TTL_HOURS", 24*365),
		MaxForwardHops:          envIntDefault("MAX_FORWARD_HOPS", 8),
		BatchConcurrency:        envIntDefault("BATCH_CONCURRENCY", 8),
		PolicyBundlePath:        os.Getenv("POLICY_BUNDLE_PATH"),
		RateLimitRequests:       envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds:  envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitIncludeSubject: envBoolDefault("RATE_LIMIT_INCLUDE_SUBJECT", false),
		RateLimitFailClosed:     envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:        envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RateLimitSubjectMaxLen:  envIntDefault("RATE_LIMIT_SUBJECT_MAX_LEN", 128),
		RateLimitSubjectHash:    envBoolDefault("RATE_LIMIT_SUBJECT_HASH", false),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

// CredentialTTL is zero when credentials should not expire.
func (c Config) CredentialTTL() time.Duration {
	if c.CredentialTTLHours <= 0 {
		return 0
	}
	return time.Duration(c.CredentialTTLHours) * time.Hour
}
