package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROGRESS PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One row per learner. version is the optimistic concurrency token.
CREATE TABLE IF NOT EXISTS progress_profiles (
    user_id VARCHAR(128) PRIMARY KEY,
    points BIGINT NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    unlocks TEXT[] NOT NULL DEFAULT '{}',
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_points CHECK (points >= 0),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_version CHECK (version >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_profiles_points ON progress_profiles(points DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS progress_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE ACHIEVEMENT UNLOCKS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Audit of unlocks. The profile row is the source of truth for membership.
CREATE TABLE IF NOT EXISTS achievement_unlocks (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL REFERENCES progress_profiles(user_id) ON DELETE CASCADE,
    achievement_id VARCHAR(64) NOT NULL,
    points_awarded BIGINT NOT NULL DEFAULT 0,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_achievement_unlocks_user_achievement UNIQUE (user_id, achievement_id),
    CONSTRAINT valid_points_awarded CHECK (points_awarded >= 0)
);

CREATE INDEX IF NOT EXISTS idx_achievement_unlocks_user ON achievement_unlocks(user_id, unlocked_at);
`

const migration002Down = `
DROP TABLE IF EXISTS achievement_unlocks;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: MONOTONIC POINTS GUARD
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE OR REPLACE FUNCTION progress_profiles_guard() RETURNS trigger AS $$
BEGIN
    IF NEW.points < OLD.points THEN
        RAISE EXCEPTION 'points cannot decrease (% -> %)', OLD.points, NEW.points
            USING ERRCODE = 'check_violation';
    END IF;
    IF NEW.version <> OLD.version + 1 THEN
        RAISE EXCEPTION 'version must advance by one (% -> %)', OLD.version, NEW.version
            USING ERRCODE = 'check_violation';
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_progress_profiles_guard ON progress_profiles;
CREATE TRIGGER trg_progress_profiles_guard
    BEFORE UPDATE ON progress_profiles
    FOR EACH ROW EXECUTE FUNCTION progress_profiles_guard();
`

const migration003Down = `
DROP TRIGGER IF EXISTS trg_progress_profiles_guard ON progress_profiles;
DROP FUNCTION IF EXISTS progress_profiles_guard();
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_progress_profiles",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_achievement_unlocks",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "profile_update_guard",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
