package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is the Postgres-backed ledger. The dispatch_ledger primary key
// (notification_id, occurrence_key) makes the claim atomic across processes:
// INSERT … ON CONFLICT DO NOTHING either owns the occurrence or reports it
// taken.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a ledger over a connection pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// TryRecord implements Ledger.
func (l *PG) TryRecord(ctx context.Context, rec Record) (bool, error) {
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return false, fmt.Errorf("marshal recipients: %w", err)
	}
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO dispatch_ledger (
			notification_id, occurrence_key, fired_at, recipients, reminder_seq
		) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (notification_id, occurrence_key) DO NOTHING`,
		rec.NotificationID, rec.OccurrenceKey, rec.FiredAt, recipients, rec.ReminderSeq,
	)
	if err != nil {
		return false, fmt.Errorf("record occurrence: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Prune removes records older than the retention window. Returns the number
// of rows removed.
func (l *PG) Prune(ctx context.Context, olderThan int) (int64, error) {
	tag, err := l.pool.Exec(ctx, `
		DELETE FROM dispatch_ledger
		WHERE fired_at < NOW() - make_interval(hours => $1)`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	return tag.RowsAffected(), nil
}
