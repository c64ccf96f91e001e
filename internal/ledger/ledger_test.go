package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubsync/notifier/internal/audience"
	"github.com/clubsync/notifier/internal/ledger"
)

func TestTryRecordConcurrent(t *testing.T) {
	l := ledger.NewMemory()
	rec := ledger.Record{
		NotificationID: "n-1",
		OccurrenceKey:  "2025-10-22T12:00:00Z",
		FiredAt:        time.Now(),
		Recipients:     []audience.Recipient{{ID: "p1", Kind: audience.KindPlayer}},
	}

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorded, err := l.TryRecord(context.Background(), rec)
			require.NoError(t, err)
			results <- recorded
		}()
	}
	wg.Wait()
	close(results)

	recorded := 0
	for r := range results {
		if r {
			recorded++
		}
	}
	require.Equal(t, 1, recorded, "exactly one worker wins the claim")
	require.Equal(t, 1, l.Len())
}

func TestTryRecordDistinctKeys(t *testing.T) {
	l := ledger.NewMemory()
	ctx := context.Background()

	a, err := l.TryRecord(ctx, ledger.Record{NotificationID: "n-1", OccurrenceKey: "k1"})
	require.NoError(t, err)
	require.True(t, a)

	// Same key, different notification: independent claim.
	b, err := l.TryRecord(ctx, ledger.Record{NotificationID: "n-2", OccurrenceKey: "k1"})
	require.NoError(t, err)
	require.True(t, b)

	// Same composite key again: skip signal, not an error.
	c, err := l.TryRecord(ctx, ledger.Record{NotificationID: "n-1", OccurrenceKey: "k1"})
	require.NoError(t, err)
	require.False(t, c)
}

func TestOccurrenceKeys(t *testing.T) {
	due := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "2025-10-22T12:00:00Z", ledger.PeriodicKey(due))

	// Periodic keys normalize to UTC so replicas in different zones agree.
	est := due.In(time.FixedZone("EST", -5*3600))
	require.Equal(t, ledger.PeriodicKey(due), ledger.PeriodicKey(est))

	require.Equal(t, "match-start/ev-7", ledger.TriggerKey("match-start", "ev-7"))
	require.Equal(t, "match-start/ev-7#r2", ledger.ReminderKey("match-start/ev-7", 2))
}

func TestScheduleReminder(t *testing.T) {
	fired := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	p := ledger.ScheduleReminder("2025-10-22T12:00:00Z", 1, fired, 24*time.Hour)

	require.Equal(t, "2025-10-22T12:00:00Z#r1", p.Key)
	require.Equal(t, fired.Add(24*time.Hour), p.Due)
	require.Equal(t, 1, p.Seq)

	// The derived key dedups like any other occurrence key.
	l := ledger.NewMemory()
	ok, err := l.TryRecord(context.Background(), ledger.Record{
		NotificationID: "n-1", OccurrenceKey: p.Key, ReminderSeq: p.Seq,
	})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = l.TryRecord(context.Background(), ledger.Record{
		NotificationID: "n-1", OccurrenceKey: p.Key, ReminderSeq: p.Seq,
	})
	require.NoError(t, err)
	require.False(t, ok)
}
