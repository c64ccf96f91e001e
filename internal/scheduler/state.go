package scheduler

// State is the per-notification lifecycle inside the scheduling core.
//
// Registered → Armed → (Fired → [ReminderArmed → ReminderFired]*) → gone.
// Periodic notifications cycle Fired → Armed on re-arm; trigger notifications
// re-arm per distinct event id. Deregistration removes the entry outright.
type State int

const (
	StateRegistered State = iota
	StateArmed
	StateFired
	StateReminderArmed
	StateReminderFired
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateArmed:
		return "armed"
	case StateFired:
		return "fired"
	case StateReminderArmed:
		return "reminder_armed"
	case StateReminderFired:
		return "reminder_fired"
	default:
		return "unknown"
	}
}
