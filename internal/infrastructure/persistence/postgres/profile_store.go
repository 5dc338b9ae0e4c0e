package postgres

import (
	"context"
	"time"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProfileStore implements progression.ProfileStore using PostgreSQL.
type ProfileStore struct {
	conn    *Connection
	clock   timeutil.Clock
	timeout time.Duration
}

// StoreOption configures ProfileStore and UnlockLog.
type StoreOption func(*storeOptions)

type storeOptions struct {
	clock   timeutil.Clock
	timeout time.Duration
}

// WithClock overrides the clock used for creation timestamps.
func WithClock(c timeutil.Clock) StoreOption {
	return func(o *storeOptions) { o.clock = c }
}

// WithTimeout bounds every store call. Zero disables the bound.
func WithTimeout(d time.Duration) StoreOption {
	return func(o *storeOptions) { o.timeout = d }
}

func buildOptions(opts []StoreOption) storeOptions {
	o := storeOptions{clock: timeutil.SystemClock{}, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewProfileStore creates a new PostgreSQL profile store.
func NewProfileStore(conn *Connection, opts ...StoreOption) *ProfileStore {
	o := buildOptions(opts)
	return &ProfileStore{conn: conn, clock: o.clock, timeout: o.timeout}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// GetOrCreate implements progression.ProfileStore.
// The insert is a no-op when the row exists, so concurrent first access
// converges on one row.
func (r *ProfileStore) GetOrCreate(ctx context.Context, userID shared.UserID) (*progression.Profile, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	profile, err := r.get(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !IsNoRows(err) {
		return nil, classify("GetOrCreate", err)
	}

	query := `
		INSERT INTO progress_profiles (user_id, points, level, unlocks, version, created_at, updated_at)
		VALUES ($1, 0, $2, '{}', 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`
	now := r.clock.Now()
	if _, err := r.conn.Exec(ctx, query, userID.String(), int(shared.MinLevel), now); err != nil {
		return nil, classify("GetOrCreate", err)
	}

	profile, err = r.get(ctx, userID)
	if err != nil {
		return nil, classify("GetOrCreate", err)
	}
	return profile, nil
}

func (r *ProfileStore) get(ctx context.Context, userID shared.UserID) (*progression.Profile, error) {
	query := `
		SELECT user_id, points, level, unlocks, version, created_at, updated_at
		FROM progress_profiles
		WHERE user_id = $1
	`

	var (
		p      progression.Profile
		uid    string
		points int64
		level  int
	)
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(
		&uid, &points, &level, &p.Unlocks, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.UserID = shared.UserID(uid)
	p.Points = shared.Points(points)
	p.Level = shared.Level(level)
	if p.Unlocks == nil {
		p.Unlocks = []string{}
	}
	p.CreatedAt = timeutil.Normalize(p.CreatedAt)
	p.UpdatedAt = timeutil.Normalize(p.UpdatedAt)
	return &p, nil
}

// CompareAndSwap implements progression.ProfileStore.
// The version predicate in the UPDATE is the whole concurrency check: zero
// affected rows means another writer committed first.
func (r *ProfileStore) CompareAndSwap(ctx context.Context, userID shared.UserID, expectedVersion int64, next *progression.Profile) error {
	if next == nil || next.UserID != userID {
		return shared.Validation("postgres", "CompareAndSwap", "profile does not belong to user %q", userID)
	}
	if err := next.Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE progress_profiles SET
			points = $3,
			level = $4,
			unlocks = $5,
			version = version + 1,
			updated_at = $6
		WHERE user_id = $1 AND version = $2
	`

	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = r.clock.Now()
	}

	result, err := r.conn.Exec(ctx, query,
		userID.String(),
		expectedVersion,
		next.Points.Int64(),
		int(next.Level),
		next.Unlocks,
		timeutil.Normalize(updatedAt),
	)
	if err != nil {
		if IsCheckViolation(err) {
			return shared.WrapError("postgres", "CompareAndSwap", shared.ErrValidation, "profile rejected by storage constraint", err)
		}
		return classify("CompareAndSwap", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrProfileConflict
	}

	return nil
}

// Ping implements progression.HealthChecker.
func (r *ProfileStore) Ping(ctx context.Context) error {
	if err := r.conn.Ping(ctx); err != nil {
		return classify("Ping", err)
	}
	return nil
}

var (
	_ progression.ProfileStore  = (*ProfileStore)(nil)
	_ progression.HealthChecker = (*ProfileStore)(nil)
)
