package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubsync/notifier/internal/audience"
	"github.com/clubsync/notifier/internal/delivery"
	"github.com/clubsync/notifier/internal/ledger"
	"github.com/clubsync/notifier/internal/notification"
	"github.com/clubsync/notifier/internal/occurrence"
	"github.com/clubsync/notifier/internal/scheduler"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeDirectory struct {
	snap audience.Snapshot
}

func (d *fakeDirectory) Snapshot(context.Context, []string, []string, []string) (audience.Snapshot, error) {
	return d.snap, nil
}

type fakeSender struct {
	mu      sync.Mutex
	intents []delivery.Intent
}

func (s *fakeSender) Emit(_ context.Context, i delivery.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, i)
	return nil
}

func (s *fakeSender) all() []delivery.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]delivery.Intent, len(s.intents))
	copy(out, s.intents)
	return out
}

func (s *fakeSender) count() int { return len(s.all()) }

type fakeLister struct {
	mu  sync.Mutex
	all map[string]notification.Notification
}

func (l *fakeLister) List(context.Context) ([]notification.Notification, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notification.Notification, 0, len(l.all))
	for _, n := range l.all {
		out = append(out, n)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Harness
// --------------------------------------------------------------------------

type harness struct {
	core   *scheduler.Core
	ledger *ledger.Memory
	sender *fakeSender
	clock  *clock
	cancel context.CancelFunc
}

func newHarness(t *testing.T, cfg scheduler.Config) *harness {
	t.Helper()

	clk := &clock{t: time.Date(2025, 10, 22, 11, 0, 0, 0, time.UTC)}
	led := ledger.NewMemory()
	sender := &fakeSender{}
	dir := &fakeDirectory{snap: audience.Snapshot{
		Teams: map[string]audience.TeamMembers{
			"team-a": {Players: []string{"p1", "p2"}, Coaches: []string{"c1"}},
		},
		Players: map[string]struct{}{"p1": {}, "p2": {}},
		Coaches: map[string]struct{}{"c1": {}},
	}}

	cfg.Now = clk.Now
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 5 * time.Millisecond
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := scheduler.New(led, dir, sender, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	t.Cleanup(cancel)

	return &harness{core: core, ledger: led, sender: sender, clock: clk, cancel: cancel}
}

func periodicNotif(id string, anchor time.Time, reminder bool) notification.Notification {
	return notification.Notification{
		ID:         id,
		Name:       "training reminder",
		IsReminder: reminder,
		TeamIDs:    []string{"team-a"},
		Schedule: notification.Schedule{
			Kind:          notification.KindPeriodic,
			BringDatetime: anchor,
			PeriodicType:  occurrence.UnitDaily,
		},
	}
}

func triggerNotif(id, triggerID string, floor time.Time) notification.Notification {
	return notification.Notification{
		ID:      id,
		Name:    "match notice",
		TeamIDs: []string{"team-a"},
		Schedule: notification.Schedule{
			Kind:          notification.KindTrigger,
			BringDatetime: floor,
			TriggerID:     triggerID,
		},
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

// settle waits long enough for several sweeps to run.
func settle() { time.Sleep(50 * time.Millisecond) }

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestPeriodicFireAndRearm(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	anchor := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.core.Register(periodicNotif("n-1", anchor, false)))

	// Before the anchor nothing fires.
	settle()
	require.Zero(t, h.sender.count())

	h.clock.Set(anchor)
	eventually(t, func() bool { return h.sender.count() == 1 }, "first occurrence fires at the anchor")

	first := h.sender.all()[0]
	require.Equal(t, "n-1", first.NotificationID)
	require.Equal(t, "2025-10-22T12:00:00Z", first.OccurrenceKey)
	require.Len(t, first.Recipients, 3)

	_, ok := h.ledger.Get("n-1", "2025-10-22T12:00:00Z")
	require.True(t, ok)

	// Re-armed strictly after the fired instant: advancing within the same
	// day does nothing, the next day fires again.
	h.clock.Set(anchor.Add(6 * time.Hour))
	settle()
	require.Equal(t, 1, h.sender.count())

	h.clock.Set(anchor.AddDate(0, 0, 1))
	eventually(t, func() bool { return h.sender.count() == 2 }, "re-armed occurrence fires next day")
	require.Equal(t, "2025-10-23T12:00:00Z", h.sender.all()[1].OccurrenceKey)
}

func TestTriggerFiresOncePerEvent(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	floor := time.Date(2025, 10, 22, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.core.Register(triggerNotif("n-2", "match-start", floor)))

	ev := scheduler.TriggerEvent{
		TriggerID:  "match-start",
		EventID:    "ev-1",
		OccurredAt: h.clock.Now(),
	}
	h.core.HandleTriggerEvent(context.Background(), ev)
	eventually(t, func() bool { return h.sender.count() == 1 }, "trigger event fires once")
	require.Equal(t, "match-start/ev-1", h.sender.all()[0].OccurrenceKey)

	rec, ok := h.ledger.Get("n-2", "match-start/ev-1")
	require.True(t, ok)
	require.Len(t, rec.Recipients, 3)

	// Re-delivery of the same event dedups at the ledger.
	h.core.HandleTriggerEvent(context.Background(), ev)
	settle()
	require.Equal(t, 1, h.sender.count())
	require.Equal(t, 1, h.ledger.Len())

	// A distinct event of the same class fires independently.
	ev.EventID = "ev-2"
	h.core.HandleTriggerEvent(context.Background(), ev)
	eventually(t, func() bool { return h.sender.count() == 2 }, "distinct event fires")
}

func TestTriggerFloorDelaysFire(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	floor := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC) // one hour ahead
	require.NoError(t, h.core.Register(triggerNotif("n-3", "match-start", floor)))

	h.core.HandleTriggerEvent(context.Background(), scheduler.TriggerEvent{
		TriggerID:  "match-start",
		EventID:    "ev-1",
		OccurredAt: h.clock.Now(),
	})
	settle()
	require.Zero(t, h.sender.count(), "event before the floor waits")

	h.clock.Set(floor)
	eventually(t, func() bool { return h.sender.count() == 1 }, "fires once the floor is reached")
}

func TestTriggerWindowDropsStaleEvents(t *testing.T) {
	h := newHarness(t, scheduler.Config{TriggerWindow: time.Minute})
	floor := time.Date(2025, 10, 22, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.core.Register(triggerNotif("n-4", "match-start", floor)))

	h.core.HandleTriggerEvent(context.Background(), scheduler.TriggerEvent{
		TriggerID:  "match-start",
		EventID:    "ev-late",
		OccurredAt: h.clock.Now().Add(-2 * time.Minute),
	})
	settle()
	require.Zero(t, h.sender.count())
	require.Zero(t, h.ledger.Len())
}

func TestDeregisterDropsArmedOccurrence(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	anchor := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.core.Register(periodicNotif("n-5", anchor, false)))

	// Armed but not yet fired; deletion removes it from scheduling.
	h.core.Deregister("n-5")
	h.clock.Set(anchor.Add(time.Minute))
	settle()
	require.Zero(t, h.sender.count())
	require.Zero(t, h.ledger.Len())
}

func TestUpdateSupersedesOldDescriptor(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	floor := time.Date(2025, 10, 22, 10, 0, 0, 0, time.UTC)
	require.NoError(t, h.core.Register(triggerNotif("n-6", "match-start", floor)))

	// Full-replace update: same id, new trigger class.
	require.NoError(t, h.core.Register(triggerNotif("n-6", "match-end", floor)))

	h.core.HandleTriggerEvent(context.Background(), scheduler.TriggerEvent{
		TriggerID: "match-start", EventID: "ev-1", OccurredAt: h.clock.Now(),
	})
	settle()
	require.Zero(t, h.sender.count(), "old trigger subscription is gone")

	h.core.HandleTriggerEvent(context.Background(), scheduler.TriggerEvent{
		TriggerID: "match-end", EventID: "ev-1", OccurredAt: h.clock.Now(),
	})
	eventually(t, func() bool { return h.sender.count() == 1 }, "new trigger subscription fires")
}

func TestReminderChain(t *testing.T) {
	h := newHarness(t, scheduler.Config{
		ReminderDelay: time.Hour,
		MaxReminders:  2,
	})
	anchor := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.core.Register(periodicNotif("n-7", anchor, true)))

	h.clock.Set(anchor)
	eventually(t, func() bool { return h.sender.count() == 1 }, "base occurrence fires")

	h.clock.Set(anchor.Add(time.Hour))
	eventually(t, func() bool { return h.sender.count() == 2 }, "first reminder fires")
	second := h.sender.all()[1]
	require.Equal(t, "2025-10-22T12:00:00Z#r1", second.OccurrenceKey)
	require.Equal(t, 1, second.ReminderSeq)

	h.clock.Set(anchor.Add(2 * time.Hour))
	eventually(t, func() bool { return h.sender.count() == 3 }, "second reminder fires")
	require.Equal(t, "2025-10-22T12:00:00Z#r2", h.sender.all()[2].OccurrenceKey)

	// Chain stops at MaxReminders.
	h.clock.Set(anchor.Add(3 * time.Hour))
	settle()
	require.Equal(t, 3, h.sender.count())
}

func TestEmptyAudienceIsNoopDispatch(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	anchor := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	n := periodicNotif("n-8", anchor, false)
	n.TeamIDs = []string{"team-gone"}
	require.NoError(t, h.core.Register(n))

	h.clock.Set(anchor)
	eventually(t, func() bool { return h.ledger.Len() == 1 }, "occurrence is claimed")

	rec, ok := h.ledger.Get("n-8", "2025-10-22T12:00:00Z")
	require.True(t, ok)
	require.Empty(t, rec.Recipients)
	require.Zero(t, h.sender.count(), "no delivery intent for an empty recipient set")
}

func TestResyncReconcilesRegistry(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	anchor := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{all: map[string]notification.Notification{
		"n-a": periodicNotif("n-a", anchor, false),
		"n-b": triggerNotif("n-b", "match-start", anchor),
	}}

	added, removed, err := h.core.Resync(context.Background(), lister)
	require.NoError(t, err)
	require.Equal(t, 2, added)
	require.Zero(t, removed)

	// Second pass is a no-op.
	added, removed, err = h.core.Resync(context.Background(), lister)
	require.NoError(t, err)
	require.Zero(t, added)
	require.Zero(t, removed)

	// External deletion deregisters on the next pass.
	lister.mu.Lock()
	delete(lister.all, "n-b")
	lister.mu.Unlock()
	added, removed, err = h.core.Resync(context.Background(), lister)
	require.NoError(t, err)
	require.Zero(t, added)
	require.Equal(t, 1, removed)

	stats := h.core.Stats()
	require.Equal(t, 1, stats["active"])
}

func TestInvalidScheduleRejectedAtRegister(t *testing.T) {
	h := newHarness(t, scheduler.Config{})
	n := periodicNotif("n-9", time.Now(), false)
	n.Schedule.PeriodicType = "fortnightly"
	require.Error(t, h.core.Register(n))
}
