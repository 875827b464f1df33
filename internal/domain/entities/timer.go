package entities

import "time"

// TimerKind identifies one of the two one-shot actions attached to an event.
type TimerKind int

const (
	TimerPreStart TimerKind = iota + 1
	TimerCompletion
)

func (k TimerKind) String() string {
	switch k {
	case TimerPreStart:
		return "pre_start"
	case TimerCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

func ParseTimerKind(s string) (TimerKind, bool) {
	switch s {
	case "pre_start":
		return TimerPreStart, true
	case "completion":
		return TimerCompletion, true
	default:
		return 0, false
	}
}

// TimerKinds lists every kind in firing order for equal due times.
var TimerKinds = []TimerKind{TimerPreStart, TimerCompletion}

// Timer is keyed by (EventID, Kind); Fired flips to true exactly once.
type Timer struct {
	EventID string
	Kind    TimerKind
	FireAt  time.Time
	Fired   bool
}

// TimersFor derives both timers from an event's start time and reminder offset.
func TimersFor(e *Event) []Timer {
	return []Timer{
		{EventID: e.ID, Kind: TimerPreStart, FireAt: e.StartTime.Add(-e.ReminderOffset())},
		{EventID: e.ID, Kind: TimerCompletion, FireAt: e.StartTime},
	}
}
