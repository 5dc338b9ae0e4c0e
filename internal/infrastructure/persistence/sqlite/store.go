// Package sqlite implements the progression repositories on an embedded
// SQLite database. It serves single-node deployments that do not run
// PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

const timeLayout = time.RFC3339Nano

// Store implements progression.ProfileStore and progression.UnlockLog.
type Store struct {
	db      *sql.DB
	path    string
	clock   timeutil.Clock
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for creation timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithTimeout bounds every store call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Open opens or creates the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single connection serialises writers, which makes the version
	// predicate in CompareAndSwap race free.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path, clock: timeutil.SystemClock{}, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initializeSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS progress_profiles (
			user_id TEXT PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
			level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
			unlocks TEXT NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS achievement_unlocks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES progress_profiles(user_id) ON DELETE CASCADE,
			achievement_id TEXT NOT NULL,
			points_awarded INTEGER NOT NULL DEFAULT 0,
			unlocked_at TEXT NOT NULL,
			UNIQUE (user_id, achievement_id)
		);
		CREATE INDEX IF NOT EXISTS idx_achievement_unlocks_user ON achievement_unlocks(user_id, unlocked_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shared.WrapError("sqlite", op, shared.ErrTimeout, "store call did not complete", err)
	}
	return shared.StorageUnavailable("sqlite", op, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE STORE
// ══════════════════════════════════════════════════════════════════════════════

// GetOrCreate implements progression.ProfileStore.
func (s *Store) GetOrCreate(ctx context.Context, userID shared.UserID) (*progression.Profile, error) {
	if !userID.IsValid() {
		return nil, shared.ErrEmptyUserID
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	now := s.clock.Now().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_profiles (user_id, points, level, unlocks, version, created_at, updated_at)
		VALUES (?, 0, ?, '[]', 0, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID.String(), int(shared.MinLevel), now, now)
	if err != nil {
		return nil, classify("GetOrCreate", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, points, level, unlocks, version, created_at, updated_at
		FROM progress_profiles
		WHERE user_id = ?
	`, userID.String())

	p, err := scanProfile(row)
	if err != nil {
		return nil, classify("GetOrCreate", err)
	}
	return p, nil
}

func scanProfile(row *sql.Row) (*progression.Profile, error) {
	var (
		uid, unlocks, created, updated string
		points                         int64
		level                          int
		version                        int64
	)
	if err := row.Scan(&uid, &points, &level, &unlocks, &version, &created, &updated); err != nil {
		return nil, err
	}

	p := &progression.Profile{
		UserID:  shared.UserID(uid),
		Points:  shared.Points(points),
		Level:   shared.Level(level),
		Version: version,
	}
	if err := json.Unmarshal([]byte(unlocks), &p.Unlocks); err != nil {
		return nil, fmt.Errorf("decode unlocks: %w", err)
	}
	if p.Unlocks == nil {
		p.Unlocks = []string{}
	}

	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return p, nil
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return timeutil.Normalize(t), nil
}

// CompareAndSwap implements progression.ProfileStore.
func (s *Store) CompareAndSwap(ctx context.Context, userID shared.UserID, expectedVersion int64, next *progression.Profile) error {
	if next == nil || next.UserID != userID {
		return shared.Validation("sqlite", "CompareAndSwap", "profile does not belong to user %q", userID)
	}
	if err := next.Validate(); err != nil {
		return err
	}

	unlocks := next.Unlocks
	if unlocks == nil {
		unlocks = []string{}
	}
	encoded, err := json.Marshal(unlocks)
	if err != nil {
		return fmt.Errorf("encode unlocks: %w", err)
	}

	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.clock.Now()
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE progress_profiles SET
			points = ?,
			level = ?,
			unlocks = ?,
			version = version + 1,
			updated_at = ?
		WHERE user_id = ? AND version = ?
	`,
		next.Points.Int64(),
		int(next.Level),
		string(encoded),
		timeutil.Normalize(updatedAt).Format(timeLayout),
		userID.String(),
		expectedVersion,
	)
	if err != nil {
		return classify("CompareAndSwap", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return classify("CompareAndSwap", err)
	}
	if n == 0 {
		return shared.ErrProfileConflict
	}
	return nil
}

// Ping implements progression.HealthChecker.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("Ping", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK LOG
// ══════════════════════════════════════════════════════════════════════════════

// Append implements progression.UnlockLog.
func (s *Store) Append(ctx context.Context, unlocks []progression.AchievementUnlock) error {
	if len(unlocks) == 0 {
		return nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("AppendUnlocks", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO achievement_unlocks (id, user_id, achievement_id, points_awarded, unlocked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`)
	if err != nil {
		return classify("AppendUnlocks", err)
	}
	defer stmt.Close()

	for _, u := range unlocks {
		if _, err := stmt.ExecContext(ctx,
			u.ID,
			u.UserID.String(),
			u.AchievementID,
			u.PointsAwarded.Int64(),
			timeutil.Normalize(u.UnlockedAt).Format(timeLayout),
		); err != nil {
			return classify("AppendUnlocks", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("AppendUnlocks", err)
	}
	return nil
}

// ListByUser implements progression.UnlockLog.
func (s *Store) ListByUser(ctx context.Context, userID shared.UserID) ([]progression.AchievementUnlock, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, achievement_id, points_awarded, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = ?
		ORDER BY unlocked_at, achievement_id
	`, userID.String())
	if err != nil {
		return nil, classify("ListUnlocks", err)
	}
	defer rows.Close()

	out := []progression.AchievementUnlock{}
	for rows.Next() {
		var (
			u           progression.AchievementUnlock
			uid, at     string
			pointsTotal int64
		)
		if err := rows.Scan(&u.ID, &uid, &u.AchievementID, &pointsTotal, &at); err != nil {
			return nil, classify("ListUnlocks", err)
		}
		u.UserID = shared.UserID(uid)
		u.PointsAwarded = shared.Points(pointsTotal)
		if u.UnlockedAt, err = parseTime(at); err != nil {
			return nil, classify("ListUnlocks", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("ListUnlocks", err)
	}
	return out, nil
}

// FindUnaudited implements progression.UnlockLog.
func (s *Store) FindUnaudited(ctx context.Context, limit int) ([]progression.UnauditedUnlock, error) {
	if limit <= 0 {
		return []progression.UnauditedUnlock{}, nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.user_id, j.value, p.updated_at
		FROM progress_profiles p, json_each(p.unlocks) j
		LEFT JOIN achievement_unlocks a
			ON a.user_id = p.user_id AND a.achievement_id = j.value
		WHERE a.id IS NULL
		ORDER BY p.user_id, j.value
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, classify("FindUnaudited", err)
	}
	defer rows.Close()

	out := []progression.UnauditedUnlock{}
	for rows.Next() {
		var (
			u       progression.UnauditedUnlock
			uid, at string
		)
		if err := rows.Scan(&uid, &u.AchievementID, &at); err != nil {
			return nil, classify("FindUnaudited", err)
		}
		u.UserID = shared.UserID(uid)
		if u.ProfileUpdatedAt, err = parseTime(at); err != nil {
			return nil, classify("FindUnaudited", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("FindUnaudited", err)
	}
	return out, nil
}

var (
	_ progression.ProfileStore  = (*Store)(nil)
	_ progression.UnlockLog     = (*Store)(nil)
	_ progression.HealthChecker = (*Store)(nil)
)
