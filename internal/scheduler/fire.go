package scheduler

import (
	"context"
	"time"

	"github.com/clubsync/notifier/internal/audience"
	"github.com/clubsync/notifier/internal/delivery"
	"github.com/clubsync/notifier/internal/ledger"
	"github.com/clubsync/notifier/internal/notification"
	"github.com/clubsync/notifier/internal/occurrence"
)

// fire dispatches one occurrence: resolve the audience, claim the occurrence
// in the ledger, emit the delivery intent, then complete (re-arm / chain the
// reminder). Losing the ledger race or failing delivery both fall through to
// completion — the occurrence is claimed and never retried.
func (c *Core) fire(ctx context.Context, t task) {
	firedAt := c.now()

	recipients := c.resolve(ctx, t)

	// A deregister or full-replace update that landed after this occurrence
	// was computed invalidates it before it can reach the ledger.
	if !c.alive(t.id, t.gen) {
		c.logger.Info("occurrence dropped, notification superseded",
			"notification_id", t.id, "occurrence_key", t.key)
		return
	}

	recorded, err := c.ledger.TryRecord(ctx, ledger.Record{
		NotificationID: t.id,
		OccurrenceKey:  t.key,
		FiredAt:        firedAt,
		Recipients:     recipients,
		ReminderSeq:    t.seq,
	})
	if err != nil {
		c.logger.Error("ledger record failed, occurrence skipped",
			"notification_id", t.id, "occurrence_key", t.key, "error", err)
		c.complete(t, firedAt, false)
		return
	}
	if !recorded {
		// Another worker or replica owns this occurrence; skip delivery but
		// still advance local state so the notification re-arms.
		c.complete(t, firedAt, true)
		return
	}

	switch {
	case len(recipients) == 0:
		c.logger.Info("empty recipient set, no-op dispatch",
			"notification_id", t.id, "occurrence_key", t.key)
	default:
		intent := delivery.Intent{
			NotificationID: t.id,
			OccurrenceKey:  t.key,
			Name:           t.n.Name,
			Recipients:     recipients,
			Survey:         t.n.Survey,
			FiredAt:        firedAt,
			ReminderSeq:    t.seq,
		}
		if err := c.sender.Emit(ctx, intent); err != nil {
			// Terminal for this occurrence; the ledger record stands.
			c.logger.Error("delivery emission failed",
				"notification_id", t.id, "occurrence_key", t.key, "error", err)
		}
	}
	c.complete(t, firedAt, true)
}

// resolve builds the recipient snapshot for a task. A directory failure
// degrades to an empty set rather than blocking the claim.
func (c *Core) resolve(ctx context.Context, t task) []audience.Recipient {
	snap, err := c.dir.Snapshot(ctx, t.n.TeamIDs, t.n.PlayerIDs, t.n.CoachIDs)
	if err != nil {
		c.logger.Error("audience snapshot failed, dispatching with empty set",
			"notification_id", t.id, "error", err)
		return nil
	}
	recipients, excluded := audience.Resolve(snap, t.n.TeamIDs, t.n.PlayerIDs, t.n.CoachIDs)
	if len(excluded) > 0 {
		c.logger.Warn("audience resolution degraded, unknown ids excluded",
			"notification_id", t.id, "excluded", excluded)
	}
	return recipients
}

func (c *Core) alive(id string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return ok && e.gen == gen
}

// complete finalizes a dispatched occurrence: re-arm periodic schedules,
// drop the pending occurrence, and chain the next reminder when the
// notification asks for one. claimed=false means the ledger was unreachable;
// the occurrence is treated as missed and no reminder is chained.
func (c *Core) complete(t task, firedAt time.Time, claimed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[t.id]
	if !ok || e.gen != t.gen {
		return
	}

	if t.seq == 0 && e.n.Schedule.Kind == notification.KindPeriodic {
		e.inFlight = false
		e.lastDue = t.due
		e.state = StateFired
		// Re-arm strictly after the fired occurrence.
		due, err := occurrence.NextDue(e.n.Schedule, c.now(), e.lastDue)
		if err != nil {
			c.logger.Error("re-arm failed", "notification_id", t.id, "error", err)
			return
		}
		e.nextDue = due.At
		e.state = StateArmed
	} else {
		e.pending = removePending(e.pending, t.key)
		if t.seq > 0 {
			e.state = StateReminderFired
		} else {
			e.state = StateFired
		}
	}

	if claimed && e.n.IsReminder && t.seq < c.cfg.MaxReminders {
		p := ledger.ScheduleReminder(t.baseKey, t.seq+1, firedAt, c.cfg.ReminderDelay)
		e.pending = append(e.pending, pendingFire{
			baseKey: t.baseKey, key: p.Key, due: p.Due, seq: p.Seq,
		})
		e.state = StateReminderArmed
	}
}

func removePending(pending []pendingFire, key string) []pendingFire {
	out := pending[:0]
	for _, p := range pending {
		if p.key != key {
			out = append(out, p)
		}
	}
	return out
}
