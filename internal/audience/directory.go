package audience

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory loads membership snapshots from the team_members table.
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a Directory over a connection pool.
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// Snapshot loads the current membership for the referenced teams and checks
// which explicit player/coach ids are known. Stale ids simply stay out of the
// snapshot; resolution excludes them later.
func (d *Directory) Snapshot(ctx context.Context, teamIDs, playerIDs, coachIDs []string) (Snapshot, error) {
	snap := Snapshot{
		Teams:   make(map[string]TeamMembers),
		Players: make(map[string]struct{}),
		Coaches: make(map[string]struct{}),
	}

	if len(teamIDs) > 0 {
		rows, err := d.pool.Query(ctx, "team_members_for_teams", teamIDs)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load team members: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var teamID, memberID, kind string
			if err := rows.Scan(&teamID, &memberID, &kind); err != nil {
				return Snapshot{}, fmt.Errorf("scan team member: %w", err)
			}
			team := snap.Teams[teamID]
			switch Kind(kind) {
			case KindPlayer:
				team.Players = append(team.Players, memberID)
			case KindCoach:
				team.Coaches = append(team.Coaches, memberID)
			}
			snap.Teams[teamID] = team
		}
		if err := rows.Err(); err != nil {
			return Snapshot{}, fmt.Errorf("read team members: %w", err)
		}
	}

	if err := d.known(ctx, playerIDs, string(KindPlayer), snap.Players); err != nil {
		return Snapshot{}, err
	}
	if err := d.known(ctx, coachIDs, string(KindCoach), snap.Coaches); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (d *Directory) known(ctx context.Context, ids []string, kind string, into map[string]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := d.pool.Query(ctx, "known_members", ids, kind)
	if err != nil {
		return fmt.Errorf("check %s ids: %w", kind, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan %s id: %w", kind, err)
		}
		into[id] = struct{}{}
	}
	return rows.Err()
}
