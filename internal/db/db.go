// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubsync/notifier/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the API, store, and
// audience layers use. Prepared statements eliminate parse overhead on every
// request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Notifications CRUD
		"notification_get": `
			SELECT id, name, kind, is_reminder, team_ids, player_ids, coach_ids,
			       survey, bring_datetime, periodic_type, trigger_id
			FROM notifications WHERE id = $1`,
		"notification_list": `
			SELECT id, name, kind, is_reminder, team_ids, player_ids, coach_ids,
			       survey, bring_datetime, periodic_type, trigger_id
			FROM notifications ORDER BY id`,
		"notification_put": `
			INSERT INTO notifications (
				id, name, kind, is_reminder, team_ids, player_ids, coach_ids,
				survey, bring_datetime, periodic_type, trigger_id, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				is_reminder = EXCLUDED.is_reminder,
				team_ids = EXCLUDED.team_ids,
				player_ids = EXCLUDED.player_ids,
				coach_ids = EXCLUDED.coach_ids,
				survey = EXCLUDED.survey,
				bring_datetime = EXCLUDED.bring_datetime,
				periodic_type = EXCLUDED.periodic_type,
				trigger_id = EXCLUDED.trigger_id,
				updated_at = NOW()`,
		"notification_delete": "DELETE FROM notifications WHERE id = $1",

		// Team membership (audience snapshots)
		"team_members_for_teams": `
			SELECT team_id, member_id, kind FROM team_members
			WHERE team_id = ANY($1)
			ORDER BY team_id, kind DESC, member_id`,
		"known_members": `
			SELECT DISTINCT member_id FROM team_members
			WHERE member_id = ANY($1) AND kind = $2`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
