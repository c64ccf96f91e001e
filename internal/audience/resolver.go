// Package audience expands a notification's team/player/coach references
// into a deduplicated recipient set.
//
// Resolution is a pure function over a point-in-time membership snapshot;
// the pgx-backed Directory supplies snapshots from the team_members table.
package audience

// Kind classifies a resolved recipient.
type Kind string

const (
	KindPlayer Kind = "player"
	KindCoach  Kind = "coach"
)

// Recipient is one resolved delivery target.
type Recipient struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

// TeamMembers is the membership of one team at snapshot time.
type TeamMembers struct {
	Players []string
	Coaches []string
}

// Snapshot is a point-in-time view of team membership plus the set of
// individually known players and coaches. Explicit ids absent from the known
// sets are treated as stale and excluded.
type Snapshot struct {
	Teams   map[string]TeamMembers
	Players map[string]struct{}
	Coaches map[string]struct{}
}

// Resolve expands team references into their members, unions in the explicit
// player/coach ids, and deduplicates by (id, kind). The result is ordered by
// first appearance: teams in listed order (players before coaches per team),
// then explicit players, then explicit coaches.
//
// Unknown or stale ids are silently excluded from the result and reported in
// excluded; callers log them as a degraded resolution, not an error. An empty
// result is valid and means the dispatch is a no-op.
func Resolve(snap Snapshot, teamIDs, playerIDs, coachIDs []string) (recipients []Recipient, excluded []string) {
	seen := make(map[Recipient]struct{})
	add := func(r Recipient) {
		if _, dup := seen[r]; dup {
			return
		}
		seen[r] = struct{}{}
		recipients = append(recipients, r)
	}

	for _, teamID := range teamIDs {
		team, ok := snap.Teams[teamID]
		if !ok {
			excluded = append(excluded, teamID)
			continue
		}
		for _, id := range team.Players {
			add(Recipient{ID: id, Kind: KindPlayer})
		}
		for _, id := range team.Coaches {
			add(Recipient{ID: id, Kind: KindCoach})
		}
	}

	for _, id := range playerIDs {
		if _, ok := snap.Players[id]; !ok {
			excluded = append(excluded, id)
			continue
		}
		add(Recipient{ID: id, Kind: KindPlayer})
	}
	for _, id := range coachIDs {
		if _, ok := snap.Coaches[id]; !ok {
			excluded = append(excluded, id)
			continue
		}
		add(Recipient{ID: id, Kind: KindCoach})
	}

	return recipients, excluded
}
