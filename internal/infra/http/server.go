package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"addrproof/internal/config"
	"addrproof/internal/domain"
	"addrproof/internal/infra/crypto"
	"addrproof/internal/infra/db"
	"addrproof/internal/infra/jwtvc"
	"addrproof/internal/infra/keys/soft"
	"addrproof/internal/infra/keys/tinkkeys"
	"addrproof/internal/infra/leafdb"
	"addrproof/internal/infra/metrics"
	"addrproof/internal/infra/policyopa"
	"addrproof/internal/infra/ratelimit"
	"addrproof/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg       config.Config
	store     *db.Store
	leafStore *leafdb.Store
	r         *gin.Engine

	provider   crypto.Provider
	keys       domain.KeyManager
	issuerKeys usecase.IssuerKeys
	verifier   *usecase.ProofVerifier
	issuer     *usecase.CredentialIssuer
	builder    *usecase.ProofBuilder
	registry   *usecase.RevocationRegistry
	leafSets   *usecase.LeafSetService
	policy     usecase.PolicyEngine
	envelope   *jwtvc.Envelope
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	now        func() time.Time

	adminAPIKey string
	initErr     error

	rateLimiter          domain.RateLimiter
	rateLimitRequests    int
	rateLimitWindow      time.Duration
	rateLimitWithSubject bool
	rateLimitFailClosed  bool
	rateLimitSubjectMax  int
	rateLimitSubjectHash bool
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r, now: time.Now}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Provider    crypto.Provider
	Keys        domain.KeyManager
	IssuerKeys  usecase.IssuerKeys
	Verifier    *usecase.ProofVerifier
	Issuer      *usecase.CredentialIssuer
	Registry    *usecase.RevocationRegistry
	LeafSets    *usecase.LeafSetService
	Policy      usecase.PolicyEngine
	Envelope    *jwtvc.Envelope
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	AdminAPIKey string
	RateLimiter domain.RateLimiter
	Now         func() time.Time
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		provider:    deps.Provider,
		keys:        deps.Keys,
		issuerKeys:  deps.IssuerKeys,
		verifier:    deps.Verifier,
		issuer:      deps.Issuer,
		registry:    deps.Registry,
		leafSets:    deps.LeafSets,
		policy:      deps.Policy,
		envelope:    deps.Envelope,
		metrics:     deps.Metrics,
		gatherer:    deps.Gatherer,
		adminAPIKey: deps.AdminAPIKey,
		now:         deps.Now,
	}
	if s.provider == nil {
		s.provider = crypto.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.keys == nil {
		s.keys = soft.NewManager()
	}
	if s.verifier == nil {
		s.verifier = usecase.NewProofVerifier(usecase.ProofVerifierConfig{
			Provider:    s.provider,
			Keys:        s.keys,
			Observer:    s.metrics,
			Now:         s.now,
			Concurrency: cfg.BatchConcurrency,
		})
	}
	if s.issuer == nil {
		s.issuer = usecase.NewCredentialIssuer(s.keys, s.now)
	}
	if s.leafSets == nil {
		s.leafSets = usecase.NewLeafSetService(s.provider, nil, s.now)
	}
	s.builder = usecase.NewProofBuilder(s.provider)
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey
	ctx := context.Background()

	provider, err := crypto.NewProvider(s.cfg.HashAlg, nil)
	if err != nil {
		s.initErr = err
		provider = crypto.Default()
	}
	s.provider = provider
	s.builder = usecase.NewProofBuilder(provider)

	switch s.cfg.KeyBackend {
	case "", "soft":
		ring, err := soft.NewKeyringFromConfig(s.cfg)
		if err != nil {
			s.initErr = errors.Join(s.initErr, err)
			ring = soft.NewKeyring()
		}
		s.keys = soft.NewManager()
		s.issuerKeys = ring
	case "tink":
		ring, err := tinkkeys.NewKeyringFromConfig(s.cfg)
		if err != nil {
			s.initErr = errors.Join(s.initErr, err)
			ring = tinkkeys.NewKeyring()
		}
		s.keys = tinkkeys.NewManager()
		s.issuerKeys = ring
	default:
		s.initErr = errors.Join(s.initErr, fmt.Errorf("unsupported key backend: %s", s.cfg.KeyBackend))
		s.keys = soft.NewManager()
		s.issuerKeys = soft.NewKeyring()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.NewWithRegisterer(reg)
	s.gatherer = reg

	s.verifier = usecase.NewProofVerifier(usecase.ProofVerifierConfig{
		Provider:    provider,
		Keys:        s.keys,
		Observer:    s.metrics,
		Now:         s.now,
		Concurrency: s.cfg.BatchConcurrency,
	})
	s.issuer = usecase.NewCredentialIssuer(s.keys, s.now)

	var revocationStore usecase.RevocationListStore
	if s.store != nil && s.store.DB != nil {
		revocationStore = s.store.Revocations()
	}
	if s.cfg.IssuerID != "" {
		if pair, err := s.issuerKeys.KeyPair(s.cfg.IssuerID); err == nil {
			registry, err := usecase.NewRevocationRegistry(usecase.RevocationRegistryConfig{
				IssuerID:   s.cfg.IssuerID,
				Keys:       s.keys,
				PrivateKey: pair.PrivateKey,
				PublicKey:  pair.PublicKey,
				Provider:   provider,
				Store:      revocationStore,
				Observer:   s.metrics,
				Now:        s.now,
			})
			if err == nil {
				err = registry.Load(ctx)
			}
			if err != nil {
				s.initErr = errors.Join(s.initErr, err)
			} else {
				s.registry = registry
				s.metrics.ObserveRevocation(s.cfg.IssuerID, registry.Current().Version)
			}
		} else {
			log.Printf("no private key for issuer %s; revocation and issuance are disabled", s.cfg.IssuerID)
		}
	}

	var leafSetStore usecase.LeafSetStore
	if s.cfg.LeafSetDSN != "" || s.cfg.PostgresDSN != "" {
		leafStore, err := leafdb.NewStore(s.cfg)
		if err != nil {
			s.initErr = errors.Join(s.initErr, err)
		} else {
			s.leafStore = leafStore
			leafSetStore = leafdb.NewLeafSetRepo(leafStore.Pool)
		}
	}
	s.leafSets = usecase.NewLeafSetService(provider, leafSetStore, s.now)

	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, s.cfg.PolicyBundlePath, "custom")
		if err != nil {
			s.initErr = errors.Join(s.initErr, err)
		} else {
			s.policy = engine
		}
	} else if engine, err := policyopa.NewEngine(ctx); err == nil {
		s.policy = engine
	} else {
		s.initErr = errors.Join(s.initErr, err)
	}

	if s.keys.Alg() == soft.Alg {
		s.envelope = jwtvc.NewEnvelope("", s.now)
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = time.Minute
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitWithSubject = s.cfg.RateLimitIncludeSubject
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
	s.rateLimitSubjectMax = s.cfg.RateLimitSubjectMaxLen
	s.rateLimitSubjectHash = s.cfg.RateLimitSubjectHash
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode, "hash_alg": s.provider.Name()})
	})
	if s.gatherer != nil {
		s.r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/challenges", s.handleChallenge)

		v1.GET("/issuers/:issuer_id/key", s.handleIssuerKey)
		v1.POST("/credentials", s.handleAdminIssueCredential)

		v1.GET("/revocations/:issuer_id", s.handleRevocationList)
		v1.GET("/revocations/:issuer_id/versions/:version", s.handleRevocationVersion)
		v1.GET("/revocations/:issuer_id/forward/:id", s.handleForward)
		v1.POST("/revocations", s.handleAdminRevoke)

		v1.GET("/leaf-sets/:set_id", s.handleLeafSet)
		v1.GET("/leaf-sets/:set_id/proofs/:leaf", s.handleLeafProof)
		v1.PUT("/leaf-sets/:set_id", s.handleAdminPublishLeafSet)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}

func (s *Server) Close() {
	if s.leafStore != nil {
		s.leafStore.Close()
	}
}
