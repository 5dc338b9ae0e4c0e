package progression

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/observability"
	"github.com/alem-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ PATHS
// Neither path returns NotFound: a user with no history gets the zero state.
// ══════════════════════════════════════════════════════════════════════════════

// GetProfile returns the user's points, level and unlocks.
func (s *Service) GetProfile(ctx context.Context, userID shared.UserID) (view ProfileView, err error) {
	ctx, span := s.tracer.Start(ctx, "progression.GetProfile",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { observability.EndSpan(span, err) }()

	p, err := s.loadProfile(ctx, userID, "GetProfile")
	if err != nil {
		return ProfileView{}, err
	}
	return s.profileView(p), nil
}

// GetAchievements returns the user's unlocked achievements in unlock order.
// The result is empty, never nil, for users with no unlocks.
func (s *Service) GetAchievements(ctx context.Context, userID shared.UserID) (out []AchievementSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "progression.GetAchievements",
		trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { observability.EndSpan(span, err) }()

	p, err := s.loadProfile(ctx, userID, "GetAchievements")
	if err != nil {
		return nil, err
	}
	if len(p.Unlocks) == 0 {
		return []AchievementSummary{}, nil
	}

	defs, unknown := s.catalog.Resolve(p.Unlocks)
	if len(unknown) > 0 {
		// Definitions removed from the catalog stay on the profile but are not shown.
		s.log.Warn("profile references unknown achievements",
			logger.UserID(userID.String()),
			logger.Strings("achievement_ids", unknown),
		)
	}
	out = summariesOf(defs)

	audit, err := s.unlocks.ListByUser(ctx, userID)
	if err != nil {
		s.log.Warn("unlock audit unavailable, omitting timestamps",
			logger.UserID(userID.String()), logger.Err(err))
		return out, nil
	}
	unlockedAt := make(map[string]int, len(audit))
	for i, u := range audit {
		unlockedAt[u.AchievementID] = i
	}
	for i := range out {
		if j, ok := unlockedAt[out[i].ID]; ok {
			at := audit[j].UnlockedAt
			out[i].UnlockedAt = &at
		}
	}
	return out, nil
}

// loadProfile reads through the cache, falling back to GetOrCreate.
func (s *Service) loadProfile(ctx context.Context, userID shared.UserID, op string) (*domain.Profile, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}
	if p := s.cacheGet(ctx, userID); p != nil {
		return p, nil
	}

	p, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		err = contextError(op, err)
		s.log.Error("profile load failed", logger.Operation(op), logger.UserID(userID.String()), logger.Err(err))
		return nil, err
	}
	s.cachePut(ctx, p)
	return p, nil
}
