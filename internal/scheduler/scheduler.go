// Package scheduler is the scheduling core: it owns the set of active
// notifications, drives periodic sweeps, consumes trigger events, resolves
// audiences, claims occurrences in the dispatch ledger, and emits delivery
// intents.
//
// Failure policy is skip-and-continue: a claimed occurrence whose resolution
// or delivery fails is logged and left behind; the notification stays armed
// for its next natural occurrence. Missed occurrences are never retroactively
// fired.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clubsync/notifier/internal/audience"
	"github.com/clubsync/notifier/internal/delivery"
	"github.com/clubsync/notifier/internal/ledger"
	"github.com/clubsync/notifier/internal/notification"
	"github.com/clubsync/notifier/internal/occurrence"
)

// Directory supplies point-in-time membership snapshots for audience
// resolution.
type Directory interface {
	Snapshot(ctx context.Context, teamIDs, playerIDs, coachIDs []string) (audience.Snapshot, error)
}

// Lister enumerates stored notifications; used by the catch-up resync.
type Lister interface {
	List(ctx context.Context) ([]notification.Notification, error)
}

// TriggerEvent is one externally observed event of a trigger class.
type TriggerEvent struct {
	TriggerID  string    `json:"triggerId"`
	EventID    string    `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Config controls sweep cadence, worker count, reminder chaining, and the
// trigger acceptance window.
type Config struct {
	SweepInterval time.Duration
	Workers       int
	ReminderDelay time.Duration
	MaxReminders  int
	TriggerWindow time.Duration // events older than this are logged and dropped

	// Now overrides the clock; nil means time.Now. Tests use it.
	Now func() time.Time
}

// Core orchestrates scheduling for all registered notifications.
type Core struct {
	ledger ledger.Ledger
	dir    Directory
	sender delivery.Sender
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	byTrigger map[string]map[string]struct{} // trigger id → notification ids
	gen       uint64

	work chan task
	poke chan struct{}
}

// entry is the per-notification scheduling state. All fields are guarded by
// Core.mu; workers only ever see copies.
type entry struct {
	n       notification.Notification
	gen     uint64
	state   State
	nextDue time.Time // periodic only
	lastDue time.Time // due instant of the last completed periodic fire

	inFlight bool          // periodic occurrence currently dispatching
	pending  []pendingFire // trigger occurrences and reminders waiting
}

// pendingFire is a concrete occurrence waiting for its due instant: a
// trigger match (seq 0) or a chained reminder (seq >= 1).
type pendingFire struct {
	baseKey  string
	key      string
	due      time.Time
	seq      int
	inFlight bool
}

// task is one occurrence handed to a dispatch worker. It carries a snapshot
// of the notification plus the generation it was computed for, so a
// deregister or update that happens mid-flight invalidates it.
type task struct {
	id      string
	gen     uint64
	n       notification.Notification
	baseKey string
	key     string
	due     time.Time
	seq     int
}

// New creates a scheduling core. Call Run to start sweeping.
func New(l ledger.Ledger, dir Directory, sender delivery.Sender, cfg Config, logger *slog.Logger) *Core {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Core{
		ledger:    l,
		dir:       dir,
		sender:    sender,
		cfg:       cfg,
		logger:    logger,
		now:       now,
		entries:   make(map[string]*entry),
		byTrigger: make(map[string]map[string]struct{}),
		work:      make(chan task, 4*cfg.Workers),
		poke:      make(chan struct{}, 1),
	}
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

// Register arms a notification. An existing registration for the same id is
// replaced in the same transition — full-replace updates deregister the old
// descriptor and register the new one atomically, so a superseded in-flight
// occurrence can never record against the new descriptor's generation.
func (c *Core) Register(n notification.Notification) error {
	due, err := occurrence.NextDue(n.Schedule, c.now(), time.Time{})
	if err != nil {
		return fmt.Errorf("arm %s: %w", n.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked(n.ID)
	c.gen++
	e := &entry{n: n, gen: c.gen, state: StateArmed}
	if due.Pending() {
		c.subscribeLocked(due.TriggerID, n.ID)
	} else {
		e.nextDue = due.At
	}
	c.entries[n.ID] = e

	c.logger.Info("notification armed",
		"notification_id", n.ID, "kind", n.Schedule.Kind,
		"next_due", e.nextDue, "trigger_id", n.Schedule.TriggerID)
	return nil
}

// Deregister removes a notification from scheduling. In-flight occurrences
// that have not reached the ledger are dropped; recorded occurrences stay in
// the ledger as history.
func (c *Core) Deregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropLocked(id) {
		c.logger.Info("notification deregistered", "notification_id", id)
	}
}

func (c *Core) dropLocked(id string) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	delete(c.entries, id)
	if trig := e.n.Schedule.TriggerID; trig != "" {
		delete(c.byTrigger[trig], id)
		if len(c.byTrigger[trig]) == 0 {
			delete(c.byTrigger, trig)
		}
	}
	return true
}

func (c *Core) subscribeLocked(triggerID, notificationID string) {
	if c.byTrigger[triggerID] == nil {
		c.byTrigger[triggerID] = make(map[string]struct{})
	}
	c.byTrigger[triggerID][notificationID] = struct{}{}
}

// Resync reconciles the in-memory registry with the store: stored
// notifications missing from the registry are armed, registry entries whose
// records were deleted externally are deregistered. Entries already armed
// are left untouched. Run at startup and periodically by maintenance as a
// catch-up sweep.
func (c *Core) Resync(ctx context.Context, store Lister) (added, removed int, err error) {
	all, err := store.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("resync: %w", err)
	}

	stored := make(map[string]struct{}, len(all))
	for _, n := range all {
		stored[n.ID] = struct{}{}
		c.mu.Lock()
		_, known := c.entries[n.ID]
		c.mu.Unlock()
		if known {
			continue
		}
		if err := c.Register(n); err != nil {
			c.logger.Warn("resync: cannot arm notification", "notification_id", n.ID, "error", err)
			continue
		}
		added++
	}

	c.mu.Lock()
	var gone []string
	for id := range c.entries {
		if _, ok := stored[id]; !ok {
			gone = append(gone, id)
		}
	}
	c.mu.Unlock()
	for _, id := range gone {
		c.Deregister(id)
		removed++
	}
	return added, removed, nil
}

// Stats returns registry counts for health reporting.
func (c *Core) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := 0
	byState := make(map[string]int)
	for _, e := range c.entries {
		pending += len(e.pending)
		byState[e.state.String()]++
	}
	return map[string]interface{}{
		"active":              len(c.entries),
		"trigger_classes":     len(c.byTrigger),
		"pending_occurrences": pending,
		"states":              byState,
	}
}

// --------------------------------------------------------------------------
// Run loop
// --------------------------------------------------------------------------

// Run starts the dispatch workers and the sweep ticker. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func (c *Core) Run(ctx context.Context) {
	c.logger.Info("scheduling core started",
		"sweep_interval", c.cfg.SweepInterval, "workers", c.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case t := <-c.work:
					c.fire(ctx, t)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep(ctx)
		case <-c.poke:
			c.sweep(ctx)
		case <-ctx.Done():
			wg.Wait()
			c.logger.Info("scheduling core stopped")
			return
		}
	}
}

// Sweep evaluates due occurrences once. Exposed for the operations CLI and
// tests; Run calls it on every tick.
func (c *Core) Sweep(ctx context.Context) {
	c.sweep(ctx)
}

func (c *Core) sweep(ctx context.Context) {
	now := c.now()

	c.mu.Lock()
	var due []task
	for id, e := range c.entries {
		if e.n.Schedule.Kind == notification.KindPeriodic &&
			!e.inFlight && !e.nextDue.IsZero() && !e.nextDue.After(now) {
			e.inFlight = true
			due = append(due, task{
				id: id, gen: e.gen, n: e.n,
				baseKey: ledger.PeriodicKey(e.nextDue),
				key:     ledger.PeriodicKey(e.nextDue),
				due:     e.nextDue,
			})
		}
		for i := range e.pending {
			p := &e.pending[i]
			if !p.inFlight && !p.due.After(now) {
				p.inFlight = true
				due = append(due, task{
					id: id, gen: e.gen, n: e.n,
					baseKey: p.baseKey, key: p.key, due: p.due, seq: p.seq,
				})
			}
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		select {
		case c.work <- t:
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Trigger events
// --------------------------------------------------------------------------

// HandleTriggerEvent reacts to one external trigger event. Every subscribed
// notification gets a pending occurrence keyed by (triggerId, eventId) —
// distinct events fire independently, re-processing the same event dedupes
// at the ledger. Events older than the trigger window are logged and dropped,
// never retroactively fired.
func (c *Core) HandleTriggerEvent(ctx context.Context, ev TriggerEvent) {
	now := c.now()
	if c.cfg.TriggerWindow > 0 && now.Sub(ev.OccurredAt) > c.cfg.TriggerWindow {
		c.logger.Warn("trigger event outside acceptance window, dropped",
			"trigger_id", ev.TriggerID, "event_id", ev.EventID,
			"occurred_at", ev.OccurredAt, "window", c.cfg.TriggerWindow)
		return
	}

	c.mu.Lock()
	matched := 0
	for id := range c.byTrigger[ev.TriggerID] {
		e, ok := c.entries[id]
		if !ok {
			continue
		}
		key := ledger.TriggerKey(ev.TriggerID, ev.EventID)
		e.pending = append(e.pending, pendingFire{
			baseKey: key,
			key:     key,
			due:     occurrence.TriggerDue(e.n.Schedule, ev.OccurredAt),
		})
		matched++
	}
	c.mu.Unlock()

	c.logger.Info("trigger event received",
		"trigger_id", ev.TriggerID, "event_id", ev.EventID, "matched", matched)

	if matched > 0 {
		select {
		case c.poke <- struct{}{}:
		default:
		}
	}
}
