package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK LOG
// ══════════════════════════════════════════════════════════════════════════════

// UnlockLog implements progression.UnlockLog using PostgreSQL.
type UnlockLog struct {
	conn    *Connection
	timeout time.Duration
}

// NewUnlockLog creates a new PostgreSQL unlock log.
func NewUnlockLog(conn *Connection, opts ...StoreOption) *UnlockLog {
	o := buildOptions(opts)
	return &UnlockLog{conn: conn, timeout: o.timeout}
}

// Append implements progression.UnlockLog.
// Rows are sent as one batch; duplicates are skipped by the unique key.
func (r *UnlockLog) Append(ctx context.Context, unlocks []progression.AchievementUnlock) error {
	if len(unlocks) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO achievement_unlocks (id, user_id, achievement_id, points_awarded, unlocked_at)
		VALUES ($1::uuid, $2, $3, $4, $5)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, u := range unlocks {
		batch.Queue(query,
			u.ID,
			u.UserID.String(),
			u.AchievementID,
			u.PointsAwarded.Int64(),
			timeutil.Normalize(u.UnlockedAt),
		)
	}

	results, err := r.conn.SendBatch(ctx, batch)
	if err != nil {
		return classify("AppendUnlocks", err)
	}
	defer results.Close()

	for range unlocks {
		if _, err := results.Exec(); err != nil {
			return classify("AppendUnlocks", err)
		}
	}

	return nil
}

// ListByUser implements progression.UnlockLog.
func (r *UnlockLog) ListByUser(ctx context.Context, userID shared.UserID) ([]progression.AchievementUnlock, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id::text, user_id, achievement_id, points_awarded, unlocked_at
		FROM achievement_unlocks
		WHERE user_id = $1
		ORDER BY unlocked_at, achievement_id
	`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, classify("ListUnlocks", err)
	}
	defer rows.Close()

	out := []progression.AchievementUnlock{}
	for rows.Next() {
		var (
			u      progression.AchievementUnlock
			uid    string
			points int64
		)
		if err := rows.Scan(&u.ID, &uid, &u.AchievementID, &points, &u.UnlockedAt); err != nil {
			return nil, classify("ListUnlocks", err)
		}
		u.UserID = shared.UserID(uid)
		u.PointsAwarded = shared.Points(points)
		u.UnlockedAt = timeutil.Normalize(u.UnlockedAt)
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("ListUnlocks", err)
	}
	return out, nil
}

// FindUnaudited implements progression.UnlockLog.
func (r *UnlockLog) FindUnaudited(ctx context.Context, limit int) ([]progression.UnauditedUnlock, error) {
	if limit <= 0 {
		return []progression.UnauditedUnlock{}, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT p.user_id, u.achievement_id, p.updated_at
		FROM progress_profiles p
		CROSS JOIN LATERAL unnest(p.unlocks) AS u(achievement_id)
		LEFT JOIN achievement_unlocks a
			ON a.user_id = p.user_id AND a.achievement_id = u.achievement_id
		WHERE a.id IS NULL
		ORDER BY p.user_id, u.achievement_id
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("FindUnaudited", err)
	}
	defer rows.Close()

	out := []progression.UnauditedUnlock{}
	for rows.Next() {
		var (
			u   progression.UnauditedUnlock
			uid string
		)
		if err := rows.Scan(&uid, &u.AchievementID, &u.ProfileUpdatedAt); err != nil {
			return nil, classify("FindUnaudited", err)
		}
		u.UserID = shared.UserID(uid)
		u.ProfileUpdatedAt = timeutil.Normalize(u.ProfileUpdatedAt)
		out = append(out, u)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("FindUnaudited", err)
	}
	return out, nil
}

var _ progression.UnlockLog = (*UnlockLog)(nil)
