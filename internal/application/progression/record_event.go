package progression

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/observability"
	"github.com/alem-hub/progression-engine/pkg/logger"
	"github.com/alem-hub/progression-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD EVENT
// Read the profile, evaluate the event against it and write the result with a
// compare-and-swap. A lost race reloads and evaluates again.
// ══════════════════════════════════════════════════════════════════════════════

// transition is the committed outcome of one attempt.
type transition struct {
	before   *domain.Profile
	after    *domain.Profile
	unlocked []domain.AchievementDefinition
}

// RecordEvent applies event to the user's profile.
//
// When nothing new qualifies the profile is returned unchanged and nothing is
// written. Validation failures are returned before any write. If every
// attempt loses its race the result is shared.ErrRetriesExhausted, which
// callers may retry later.
func (s *Service) RecordEvent(ctx context.Context, event domain.ActivityEvent) (result *RecordResult, err error) {
	ctx, span := s.tracer.Start(ctx, "progression.RecordEvent",
		trace.WithAttributes(
			attribute.String("user.id", event.UserID.String()),
			attribute.String("event.type", event.Type),
		))
	defer func() { observability.EndSpan(span, err) }()

	if err := event.Validate(); err != nil {
		return nil, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}

	log := s.log.With(logger.UserID(event.UserID.String()), logger.EventType(event.Type))

	var (
		committed transition
		attempts  int
	)
	err = s.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		if attempt > 1 {
			log.Debug("retrying after concurrent update", logger.Attempt(attempt))
		}
		t, err := s.attempt(ctx, event)
		if err != nil {
			return err
		}
		committed = t
		return nil
	})
	span.SetAttributes(attribute.Int("progression.attempts", attempts))

	if err != nil {
		switch {
		case errors.Is(err, retry.ErrExhausted):
			log.Warn("profile update gave up after concurrent updates", logger.Attempt(attempts))
			return nil, shared.ErrRetriesExhausted
		case shared.IsValidation(err):
			return nil, err
		default:
			err = contextError("RecordEvent", err)
			log.Error("record event failed", logger.Attempt(attempts), logger.Err(err))
			return nil, err
		}
	}

	result = &RecordResult{
		Profile:  s.profileView(committed.after),
		Unlocked: summariesOf(committed.unlocked),
		Attempts: attempts,
	}
	if len(committed.unlocked) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(committed.unlocked))
	for _, def := range committed.unlocked {
		ids = append(ids, def.ID)
	}
	log.Info("achievements unlocked",
		logger.Strings("achievement_ids", ids),
		logger.PointsAmount(committed.after.Points.Int64()),
		logger.LevelNumber(result.Profile.Level),
	)

	s.appendAudit(ctx, committed)
	s.cachePut(ctx, committed.after)
	s.publish(committed, event.Type)

	return result, nil
}

// attempt runs one read-evaluate-write cycle.
func (s *Service) attempt(ctx context.Context, event domain.ActivityEvent) (transition, error) {
	current, err := s.store.GetOrCreate(ctx, event.UserID)
	if err != nil {
		return transition{}, err
	}

	defs, err := s.evaluator.Evaluate(current, event)
	if err != nil {
		return transition{}, err
	}
	if len(defs) == 0 {
		return transition{before: current, after: current}, nil
	}

	next := current.Apply(defs, s.levels, s.clock.Now())
	if err := ctx.Err(); err != nil {
		return transition{}, err
	}
	if err := s.store.CompareAndSwap(ctx, current.UserID, current.Version, next); err != nil {
		return transition{}, err
	}
	return transition{before: current, after: next, unlocked: defs}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// After-commit steps. None of them can undo or fail the write.
// ─────────────────────────────────────────────────────────────────────────────

func (s *Service) appendAudit(ctx context.Context, t transition) {
	rows := make([]domain.AchievementUnlock, 0, len(t.unlocked))
	for _, def := range t.unlocked {
		rows = append(rows, domain.AchievementUnlock{
			ID:            uuid.NewString(),
			UserID:        t.after.UserID,
			AchievementID: def.ID,
			PointsAwarded: def.PointsAwarded,
			UnlockedAt:    t.after.UpdatedAt,
		})
	}

	// The write already committed, so a cancelled request still gets its audit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AuditTimeout)
	defer cancel()

	if err := s.unlocks.Append(ctx, rows); err != nil {
		s.log.Warn("unlock audit append failed; reconciler will backfill",
			logger.UserID(t.after.UserID.String()),
			logger.Int("rows", len(rows)),
			logger.Err(err),
		)
	}
}

func (s *Service) publish(t transition, sourceEvent string) {
	if s.publisher == nil {
		return
	}
	for _, ev := range domain.EventsFor(t.before, t.after, t.unlocked, sourceEvent, t.after.UpdatedAt) {
		if err := s.publisher.Publish(ev); err != nil {
			s.log.Warn("domain event publish failed",
				logger.String("event", string(ev.EventType())),
				logger.UserID(t.after.UserID.String()),
				logger.Err(err),
			)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT RECONCILIATION
// ══════════════════════════════════════════════════════════════════════════════

// Reconcile writes audit rows for up to limit profile unlocks that have none.
// Rows take the profile's update time, which is the latest moment the unlock
// can have happened. It returns the number of rows written.
func (s *Service) Reconcile(ctx context.Context, limit int) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "progression.Reconcile",
		trace.WithAttributes(attribute.Int("reconcile.limit", limit)))
	defer func() { observability.EndSpan(span, err) }()

	missing, err := s.unlocks.FindUnaudited(ctx, limit)
	if err != nil {
		return 0, contextError("Reconcile", err)
	}
	if len(missing) == 0 {
		return 0, nil
	}

	rows := make([]domain.AchievementUnlock, 0, len(missing))
	var skipped int
	for _, m := range missing {
		row := domain.AchievementUnlock{
			ID:            uuid.NewString(),
			UserID:        m.UserID,
			AchievementID: m.AchievementID,
			UnlockedAt:    m.ProfileUpdatedAt,
		}
		if def, ok := s.catalog.Get(m.AchievementID); ok {
			row.PointsAwarded = def.PointsAwarded
		} else {
			skipped++
		}
		if row.UnlockedAt.IsZero() {
			row.UnlockedAt = s.clock.Now().Truncate(time.Microsecond)
		}
		rows = append(rows, row)
	}

	if err := s.unlocks.Append(ctx, rows); err != nil {
		return 0, contextError("Reconcile", err)
	}
	if skipped > 0 {
		s.log.Warn("backfilled unlocks missing from catalog with zero points", logger.Int("count", skipped))
	}
	span.SetAttributes(attribute.Int("reconcile.rows", len(rows)))
	return len(rows), nil
}
