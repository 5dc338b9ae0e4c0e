// Package progression is the application service of the progression engine.
// It reads profiles, records activity events and keeps the unlock audit in
// step with stored profiles.
package progression

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/observability"
	"github.com/alem-hub/progression-engine/pkg/logger"
	"github.com/alem-hub/progression-engine/pkg/retry"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// ProfileCache is an optional read-through cache of stored profiles.
// Implementations must never replace a newer snapshot with an older one.
type ProfileCache interface {
	Get(ctx context.Context, userID shared.UserID) (*domain.Profile, bool, error)
	Put(ctx context.Context, p *domain.Profile) (bool, error)
	Invalidate(ctx context.Context, userID shared.UserID) error
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMaxAttempts bounds the read-evaluate-write cycle of RecordEvent.
const DefaultMaxAttempts = 5

// Config contains tunables of the Service.
type Config struct {
	// MaxAttempts is the total number of CAS attempts per event.
	MaxAttempts int

	// AuditTimeout bounds the best-effort audit append after a write.
	AuditTimeout time.Duration

	// CacheTimeout bounds each cache call.
	CacheTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		AuditTimeout: 2 * time.Second,
		CacheTimeout: 250 * time.Millisecond,
	}
}

// Dependencies are the collaborators of the Service.
// Store, Unlocks, Catalog and Levels are required.
type Dependencies struct {
	Store     domain.ProfileStore
	Unlocks   domain.UnlockLog
	Catalog   *domain.Catalog
	Levels    *domain.LevelTable
	Evaluator *domain.Evaluator

	Cache     ProfileCache
	Publisher shared.EventPublisher

	Clock  timeutil.Clock
	Logger *logger.Logger
	Tracer trace.Tracer
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVICE
// ══════════════════════════════════════════════════════════════════════════════

// Service implements the progression use cases. It holds no per-user state
// and is safe for concurrent use.
type Service struct {
	store     domain.ProfileStore
	unlocks   domain.UnlockLog
	catalog   *domain.Catalog
	levels    *domain.LevelTable
	evaluator *domain.Evaluator
	cache     ProfileCache
	publisher shared.EventPublisher

	clock   timeutil.Clock
	log     *logger.Logger
	tracer  trace.Tracer
	retrier *retry.Retrier
	config  Config
}

// NewService wires a Service.
func NewService(deps Dependencies, config Config) (*Service, error) {
	if deps.Store == nil || deps.Unlocks == nil {
		return nil, shared.NewDomainError("progression", "NewService", shared.ErrInvalidConfig, "store and unlock log are required")
	}
	if deps.Catalog == nil || deps.Levels == nil {
		return nil, shared.NewDomainError("progression", "NewService", shared.ErrInvalidConfig, "catalog and level table are required")
	}
	if deps.Evaluator == nil {
		deps.Evaluator = domain.NewEvaluator(deps.Catalog)
	}
	if deps.Evaluator.Catalog() != deps.Catalog {
		return nil, shared.NewDomainError("progression", "NewService", shared.ErrInvalidConfig, "evaluator walks a different catalog")
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.Tracer()
	}

	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.AuditTimeout <= 0 {
		config.AuditTimeout = defaults.AuditTimeout
	}
	if config.CacheTimeout <= 0 {
		config.CacheTimeout = defaults.CacheTimeout
	}

	return &Service{
		store:     deps.Store,
		unlocks:   deps.Unlocks,
		catalog:   deps.Catalog,
		levels:    deps.Levels,
		evaluator: deps.Evaluator,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		log:       deps.Logger.With(logger.Component("progression")),
		tracer:    deps.Tracer,
		retrier:   retry.ConflictRetrier(config.MaxAttempts, shared.IsConflict),
		config:    config,
	}, nil
}

// Catalog returns the catalog the service evaluates against.
func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

// Levels returns the level table.
func (s *Service) Levels() *domain.LevelTable {
	return s.levels
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache helpers. Cache failures never fail a request.
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) cacheGet(ctx context.Context, userID shared.UserID) *domain.Profile {
	if s.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	p, found, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.Debug("profile cache read failed", logger.UserID(userID.String()), logger.Err(err))
		return nil
	}
	if !found {
		return nil
	}
	return p
}

func (s *Service) cachePut(ctx context.Context, p *domain.Profile) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	if _, err := s.cache.Put(ctx, p); err != nil {
		s.log.Debug("profile cache write failed", logger.UserID(p.UserID.String()), logger.Err(err))
		// The entry may now be older than the store; drop it if we can.
		_ = s.cache.Invalidate(ctx, p.UserID)
	}
}

// contextError converts a cancelled or expired request into the storage kind.
func contextError(op string, err error) error {
	if shared.IsStorageUnavailable(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapError("progression", op, shared.ErrTimeout, "request ended before completion", err)
	}
	return err
}
