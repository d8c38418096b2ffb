package postgres

import (
	"context"
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROGRESSION AND GATES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create progression tables
-- Version: 001

CREATE TABLE IF NOT EXISTS user_progression (
    id VARCHAR(64) PRIMARY KEY,
    mentor VARCHAR(30) NOT NULL DEFAULT 'machiavelli',
    influence_xp BIGINT NOT NULL DEFAULT 0,
    current_rank VARCHAR(20) NOT NULL DEFAULT 'Initiate',
    streak_days INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (influence_xp >= 0),
    CONSTRAINT valid_streak CHECK (streak_days >= 0)
);

CREATE INDEX IF NOT EXISTS idx_user_progression_xp ON user_progression(influence_xp DESC);

-- Once-per-day gates, one row per user and action
CREATE TABLE IF NOT EXISTS gate_states (
    user_id VARCHAR(64) NOT NULL REFERENCES user_progression(id) ON DELETE CASCADE,
    action VARCHAR(50) NOT NULL,
    last_triggered_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, action)
);
`

const migration001Down = `
DROP TABLE IF EXISTS gate_states;
DROP TABLE IF EXISTS user_progression;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ACTIVITIES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create trial, task, journal and council tables
-- Version: 002

CREATE TABLE IF NOT EXISTS trial_progress (
    user_id VARCHAR(64) NOT NULL REFERENCES user_progression(id) ON DELETE CASCADE,
    trial_id INTEGER NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    best_score INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, trial_id),
    CONSTRAINT valid_score CHECK (best_score >= 0 AND best_score <= 100)
);

CREATE TABLE IF NOT EXISTS tasks (
    seq BIGSERIAL UNIQUE,
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_progression(id) ON DELETE CASCADE,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source VARCHAR(20) NOT NULL DEFAULT 'manual',
    source_name VARCHAR(255) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'todo',
    due_date DATE,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_task_status CHECK (status IN ('todo', 'done', 'skipped')),
    CONSTRAINT valid_task_source CHECK (source IN ('trial', 'council', 'manual'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, seq);
CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status);

CREATE TABLE IF NOT EXISTS journal_entries (
    seq BIGSERIAL UNIQUE,
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_progression(id) ON DELETE CASCADE,
    entry_type VARCHAR(30) NOT NULL,
    title VARCHAR(255) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_entry_type CHECK (entry_type IN ('mentor_feedback', 'council_verdict', 'saved_insight'))
);

CREATE INDEX IF NOT EXISTS idx_journal_user ON journal_entries(user_id, seq DESC);

CREATE TABLE IF NOT EXISTS council_cases (
    seq BIGSERIAL UNIQUE,
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(64) NOT NULL REFERENCES user_progression(id) ON DELETE CASCADE,
    dilemma TEXT NOT NULL,
    views JSONB NOT NULL DEFAULT '[]'::jsonb,
    verdict TEXT NOT NULL,
    verdict_tasks JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_council_user ON council_cases(user_id, seq DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS council_cases;
DROP TABLE IF EXISTS journal_entries;
DROP TABLE IF EXISTS tasks;
DROP TABLE IF EXISTS trial_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one schema step.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_progression", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_activities", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// ErrMigrationFailed wraps every migration error.
var ErrMigrationFailed = errors.New("postgres: migration failed")

const migrationsTable = "schema_migrations"

// txRunner is satisfied by *Connection.
type txRunner interface {
	Querier
	WithTx(ctx context.Context, fn func(Querier) error) error
}

// Migrator applies and reverts embedded migrations. Each step runs in its own
// transaction together with its bookkeeping row.
type Migrator struct {
	db         txRunner
	migrations []Migration
}

// NewMigrator creates a migrator over conn.
func NewMigrator(conn *Connection) *Migrator {
	return newMigrator(conn, GetMigrations())
}

func newMigrator(db txRunner, migrations []Migration) *Migrator {
	return &Migrator{db: db, migrations: migrations}
}

// Migrate applies pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		err := m.db.WithTx(ctx, func(tx Querier) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO "+migrationsTable+" (version, name) VALUES ($1, $2)", mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		ran++
	}
	return ran, nil
}

// Rollback reverts the newest applied migration. It returns the reverted
// version, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if !applied[mig.Version] {
			continue
		}
		err := m.db.WithTx(ctx, func(tx Querier) error {
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "DELETE FROM "+migrationsTable+" WHERE version = $1", mig.Version)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("%w: rollback %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		return mig.Version, nil
	}
	return 0, nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	_, err := m.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrMigrationFailed, migrationsTable, err)
	}

	rows, err := m.db.Query(ctx, "SELECT version FROM "+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("%w: list applied: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrMigrationFailed, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
