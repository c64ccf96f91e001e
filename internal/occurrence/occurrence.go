// Package occurrence computes when a notification's schedule is due.
//
// Periodic schedules step from their bringDatetime anchor in whole recurrence
// units. Trigger schedules wait on an external event; their bringDatetime is
// the earliest permitted fire instant, so a matching event fires at
// max(event time, bringDatetime) — always at or after the event, never before.
package occurrence

import (
	"fmt"
	"time"

	"github.com/clubsync/notifier/internal/notification"
)

// Built-in recurrence units. Config narrows the allowed set; it cannot add
// steppers beyond these.
const (
	UnitHourly    = "hourly"
	UnitDaily     = "daily"
	UnitWeekly    = "weekly"
	UnitMonthly   = "monthly"
	UnitQuarterly = "quarterly"
	UnitYearly    = "yearly"
)

// AllUnits lists every built-in recurrence unit.
func AllUnits() []string {
	return []string{UnitHourly, UnitDaily, UnitWeekly, UnitMonthly, UnitQuarterly, UnitYearly}
}

// stepper advances an anchor by k whole units. Calendar units use AddDate so
// month lengths and leap years are respected.
type stepper func(anchor time.Time, k int) time.Time

var steppers = map[string]stepper{
	UnitHourly:    func(a time.Time, k int) time.Time { return a.Add(time.Duration(k) * time.Hour) },
	UnitDaily:     func(a time.Time, k int) time.Time { return a.AddDate(0, 0, k) },
	UnitWeekly:    func(a time.Time, k int) time.Time { return a.AddDate(0, 0, 7*k) },
	UnitMonthly:   func(a time.Time, k int) time.Time { return a.AddDate(0, k, 0) },
	UnitQuarterly: func(a time.Time, k int) time.Time { return a.AddDate(0, 3*k, 0) },
	UnitYearly:    func(a time.Time, k int) time.Time { return a.AddDate(k, 0, 0) },
}

// approxWidth is used only to seed the step search near the target.
var approxWidth = map[string]time.Duration{
	UnitHourly:    time.Hour,
	UnitDaily:     24 * time.Hour,
	UnitWeekly:    7 * 24 * time.Hour,
	UnitMonthly:   30 * 24 * time.Hour,
	UnitQuarterly: 91 * 24 * time.Hour,
	UnitYearly:    365 * 24 * time.Hour,
}

// KnownUnit reports whether unit has a built-in stepper.
func KnownUnit(unit string) bool {
	_, ok := steppers[unit]
	return ok
}

// Due is the outcome of NextDue: either a concrete instant or, for trigger
// schedules, the trigger id the schedule waits on.
type Due struct {
	At        time.Time
	TriggerID string
}

// Pending reports whether the schedule waits on a trigger event.
func (d Due) Pending() bool { return d.TriggerID != "" }

// NextDue computes the next firing instant for a schedule.
//
// Periodic: the smallest anchor+k*unit that is >= now and strictly after
// lastFired (zero lastFired means no prior fire). A future anchor with no
// prior fire is due at the anchor itself. The result is a pure function of
// its inputs, so recomputation after a restart lands on the same instant.
//
// Trigger: no instant is computed; the returned Due names the trigger id.
func NextDue(s notification.Schedule, now, lastFired time.Time) (Due, error) {
	switch s.Kind {
	case notification.KindTrigger:
		return Due{TriggerID: s.TriggerID}, nil
	case notification.KindPeriodic:
		at, err := nextPeriodic(s, now, lastFired)
		if err != nil {
			return Due{}, err
		}
		return Due{At: at}, nil
	default:
		return Due{}, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}

// TriggerDue computes the firing instant for a trigger event observed at
// occurredAt: the event time, floored by the schedule's bringDatetime.
func TriggerDue(s notification.Schedule, occurredAt time.Time) time.Time {
	if s.BringDatetime.After(occurredAt) {
		return s.BringDatetime
	}
	return occurredAt
}

func nextPeriodic(s notification.Schedule, now, lastFired time.Time) (time.Time, error) {
	step, ok := steppers[s.PeriodicType]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown periodicType %q", s.PeriodicType)
	}
	anchor := s.BringDatetime

	due := func(t time.Time) bool {
		return !t.Before(now) && t.After(lastFired)
	}

	if due(anchor) {
		return anchor, nil
	}

	// Seed the search near the target, then settle on the smallest due step.
	floor := now
	if lastFired.After(floor) {
		floor = lastFired
	}
	k := int(floor.Sub(anchor)/approxWidth[s.PeriodicType]) - 2
	if k < 0 {
		k = 0
	}
	for !due(step(anchor, k)) {
		k++
	}
	for k > 0 && due(step(anchor, k-1)) {
		k--
	}
	return step(anchor, k), nil
}
