// Package ledger records fired occurrences per notification. The composite
// key (notificationID, occurrenceKey) is unique: whoever inserts it first
// owns the occurrence, everyone else skips delivery. This check-and-insert
// is the sole mechanism preventing duplicate delivery when workers or
// replicas race on the same due instant or trigger event.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/clubsync/notifier/internal/audience"
)

// Record is one fired occurrence. Records are written once at dispatch time
// and never mutated; they are kept for audit and reminder chaining.
type Record struct {
	NotificationID string
	OccurrenceKey  string
	FiredAt        time.Time
	Recipients     []audience.Recipient
	ReminderSeq    int // 0 for base occurrences
}

// Ledger is the durable store of fired occurrences.
type Ledger interface {
	// TryRecord atomically inserts the record if its composite key is new.
	// recorded=false means another worker already handled the occurrence;
	// that is a skip signal, not an error.
	TryRecord(ctx context.Context, rec Record) (recorded bool, err error)
}

// --------------------------------------------------------------------------
// Occurrence keys
// --------------------------------------------------------------------------

// PeriodicKey identifies a periodic occurrence by its due instant.
func PeriodicKey(due time.Time) string {
	return due.UTC().Format(time.RFC3339)
}

// TriggerKey identifies a trigger occurrence by the event that caused it.
// Distinct events of the same trigger class fire independently.
func TriggerKey(triggerID, eventID string) string {
	return triggerID + "/" + eventID
}

// ReminderKey derives the key for the seq-th reminder chained after a base
// occurrence. The derived key competes under the same dedup rule as any
// other occurrence key.
func ReminderKey(baseKey string, seq int) string {
	return fmt.Sprintf("%s#r%d", baseKey, seq)
}

// Pending is a reminder occurrence waiting to fire.
type Pending struct {
	Key string
	Due time.Time
	Seq int
}

// ScheduleReminder derives the follow-up occurrence for a fired base
// occurrence: same notification, key extended with the reminder sequence,
// due delay after the base fire.
func ScheduleReminder(baseKey string, seq int, baseFired time.Time, delay time.Duration) Pending {
	return Pending{
		Key: ReminderKey(baseKey, seq),
		Due: baseFired.Add(delay),
		Seq: seq,
	}
}
