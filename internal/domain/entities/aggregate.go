package entities

import (
	"fmt"
	"sort"
	"time"

	"withgames/internal/domain"
)

// Aggregate is an Event with the Participants and Timers it owns.
// It is read, locked, written and deleted as one unit.
type Aggregate struct {
	Event        Event
	Participants []Participant
	Timers       []Timer
}

// RosterChange lists the users whose role changed as a side effect of an operation.
type RosterChange struct {
	Promoted []Participant
	Demoted  []Participant
}

func (c RosterChange) Empty() bool {
	return len(c.Promoted) == 0 && len(c.Demoted) == 0
}

// NewAggregate builds an Open event with both timers pending. Start times are
// kept at second precision.
func NewAggregate(e Event) *Aggregate {
	e.Status = StatusOpen
	e.StartTime = e.StartTime.Truncate(time.Second)
	a := &Aggregate{Event: e}
	a.Timers = TimersFor(&a.Event)
	return a
}

func (a *Aggregate) Clone() *Aggregate {
	if a == nil {
		return nil
	}
	c := &Aggregate{Event: a.Event}
	c.Participants = append([]Participant(nil), a.Participants...)
	c.Timers = append([]Timer(nil), a.Timers...)
	return c
}

func (a *Aggregate) indexOf(userID string) int {
	for i := range a.Participants {
		if a.Participants[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Participant returns a copy of the user's record.
func (a *Aggregate) Participant(userID string) (Participant, bool) {
	i := a.indexOf(userID)
	if i < 0 {
		return Participant{}, false
	}
	return a.Participants[i], true
}

func (a *Aggregate) ConfirmedCount() int {
	n := 0
	for i := range a.Participants {
		if a.Participants[i].Role == RoleConfirmed {
			n++
		}
	}
	return n
}

// Confirmed returns confirmed participants in confirmation order.
func (a *Aggregate) Confirmed() []Participant {
	out := a.filter(RoleConfirmed)
	sort.Slice(out, func(i, j int) bool { return confirmedLess(&out[i], &out[j]) })
	return out
}

// Waitlist returns waitlisted participants in promotion order.
func (a *Aggregate) Waitlist() []Participant {
	out := a.filter(RoleWaitlisted)
	sort.Slice(out, func(i, j int) bool { return waitlistLess(&out[i], &out[j]) })
	return out
}

func (a *Aggregate) filter(role Role) []Participant {
	var out []Participant
	for i := range a.Participants {
		if a.Participants[i].Role == role {
			out = append(out, a.Participants[i])
		}
	}
	return out
}

// Join adds userID as Confirmed if a slot is free and as Waitlisted otherwise.
func (a *Aggregate) Join(userID, username string, now time.Time) (Role, error) {
	if a.indexOf(userID) >= 0 {
		return 0, domain.ErrAlreadyJoined
	}
	if a.Event.Status != StatusOpen {
		return 0, domain.ErrEventClosed
	}

	p := Participant{
		EventID:  a.Event.ID,
		UserID:   userID,
		Username: username,
		JoinedAt: now,
	}
	if a.ConfirmedCount() < a.Event.Capacity {
		p.Role = RoleConfirmed
		p.ConfirmedAt = now
	} else {
		p.Role = RoleWaitlisted
	}
	a.Participants = append(a.Participants, p)
	return p.Role, nil
}

// Leave removes userID. Freeing a confirmed slot promotes the waitlist head.
func (a *Aggregate) Leave(userID string, now time.Time) (Participant, RosterChange, error) {
	if a.Event.Status.IsTerminal() {
		return Participant{}, RosterChange{}, domain.ErrEventFinished
	}
	i := a.indexOf(userID)
	if i < 0 {
		return Participant{}, RosterChange{}, domain.ErrParticipantNotFound
	}

	removed := a.Participants[i]
	a.Participants = append(a.Participants[:i], a.Participants[i+1:]...)

	var change RosterChange
	if removed.Role == RoleConfirmed {
		change.Promoted = a.promote(a.Event.Capacity-a.ConfirmedCount(), now)
	}
	return removed, change, nil
}

// ChangeCapacity applies a new capacity, promoting FIFO on growth and demoting the
// most recently confirmed users to the front of the waitlist on shrink.
// maxCapacity <= 0 disables the upper bound.
func (a *Aggregate) ChangeCapacity(capacity, maxCapacity int, now time.Time) (RosterChange, error) {
	if err := ValidateCapacity(capacity, maxCapacity); err != nil {
		return RosterChange{}, err
	}
	if a.Event.Status.IsTerminal() {
		return RosterChange{}, domain.ErrEventFinished
	}

	a.Event.Capacity = capacity
	var change RosterChange
	confirmed := a.ConfirmedCount()
	switch {
	case confirmed > capacity:
		change.Demoted = a.demote(confirmed - capacity)
	case confirmed < capacity:
		change.Promoted = a.promote(capacity-confirmed, now)
	}
	return change, nil
}

// promote confirms up to n users from the head of the waitlist.
func (a *Aggregate) promote(n int, now time.Time) []Participant {
	if n <= 0 {
		return nil
	}
	queue := a.Waitlist()
	if len(queue) > n {
		queue = queue[:n]
	}
	promoted := make([]Participant, 0, len(queue))
	for _, q := range queue {
		p := &a.Participants[a.indexOf(q.UserID)]
		p.Role = RoleConfirmed
		p.ConfirmedAt = now
		p.QueueRank = 0
		promoted = append(promoted, *p)
	}
	return promoted
}

// demote moves the n most recently confirmed users ahead of every waitlist entry,
// keeping their relative confirmation order.
func (a *Aggregate) demote(n int) []Participant {
	confirmed := a.Confirmed()
	if n > len(confirmed) {
		n = len(confirmed)
	}
	if n <= 0 {
		return nil
	}
	batch := confirmed[len(confirmed)-n:]

	front := 0
	for i := range a.Participants {
		if a.Participants[i].Role == RoleWaitlisted && a.Participants[i].QueueRank < front {
			front = a.Participants[i].QueueRank
		}
	}

	demoted := make([]Participant, 0, n)
	for k, b := range batch {
		p := &a.Participants[a.indexOf(b.UserID)]
		p.Role = RoleWaitlisted
		p.QueueRank = front - n + k
		demoted = append(demoted, *p)
	}
	return demoted
}

// Close moves an Open event to Closed.
func (a *Aggregate) Close() error {
	switch a.Event.Status {
	case StatusOpen:
		a.Event.Status = StatusClosed
		return nil
	case StatusClosed:
		return domain.ErrAlreadyClosed
	default:
		return domain.ErrInvalidState
	}
}

// Cancel moves an Open or Closed event to Cancelled and drops its pending timers.
func (a *Aggregate) Cancel() error {
	if !a.Event.Status.CanTransition(StatusCancelled) {
		return domain.ErrInvalidState
	}
	a.Event.Status = StatusCancelled
	a.DropPendingTimers()
	return nil
}

// Complete reports whether the event moved to Completed.
// A terminal event is left untouched.
func (a *Aggregate) Complete() bool {
	if !a.Event.Status.CanTransition(StatusCompleted) {
		return false
	}
	a.Event.Status = StatusCompleted
	a.DropPendingTimers()
	return true
}

// Reschedule moves the start time and replaces both timers with fresh pending ones.
func (a *Aggregate) Reschedule(start time.Time, offsetMinutes int, now time.Time) error {
	if a.Event.Status.IsTerminal() {
		return domain.ErrInvalidState
	}
	if err := ValidateStartTime(start, now); err != nil {
		return err
	}
	if err := ValidateReminderOffset(offsetMinutes); err != nil {
		return err
	}
	a.Event.StartTime = start.Truncate(time.Second)
	a.Event.ReminderOffsetMinutes = offsetMinutes
	a.Timers = TimersFor(&a.Event)
	return nil
}

func (a *Aggregate) Timer(kind TimerKind) (Timer, bool) {
	for _, t := range a.Timers {
		if t.Kind == kind {
			return t, true
		}
	}
	return Timer{}, false
}

// PendingTimers returns timers not yet fired.
func (a *Aggregate) PendingTimers() []Timer {
	var out []Timer
	for _, t := range a.Timers {
		if !t.Fired {
			out = append(out, t)
		}
	}
	return out
}

// DropPendingTimers removes every unfired timer and returns them.
func (a *Aggregate) DropPendingTimers() []Timer {
	var kept, dropped []Timer
	for _, t := range a.Timers {
		if t.Fired {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}
	a.Timers = kept
	return dropped
}

// MarkFired flips the timer of the given kind to fired if it is still pending
// with the expected due time.
func (a *Aggregate) MarkFired(kind TimerKind, fireAt time.Time) bool {
	for i := range a.Timers {
		t := &a.Timers[i]
		if t.Kind != kind {
			continue
		}
		if t.Fired || !t.FireAt.Equal(fireAt) {
			return false
		}
		t.Fired = true
		return true
	}
	return false
}

// CheckInvariants verifies the roster and timer constraints of the aggregate.
func (a *Aggregate) CheckInvariants() error {
	if a.Event.Capacity < 1 {
		return fmt.Errorf("event %s: capacity %d below 1", a.Event.ID, a.Event.Capacity)
	}
	seen := make(map[string]struct{}, len(a.Participants))
	for _, p := range a.Participants {
		if _, dup := seen[p.UserID]; dup {
			return fmt.Errorf("event %s: duplicate participant %s", a.Event.ID, p.UserID)
		}
		seen[p.UserID] = struct{}{}
		if p.Role != RoleConfirmed && p.Role != RoleWaitlisted {
			return fmt.Errorf("event %s: participant %s has role %s", a.Event.ID, p.UserID, p.Role)
		}
	}
	confirmed := a.ConfirmedCount()
	if confirmed > a.Event.Capacity {
		return fmt.Errorf("event %s: %d confirmed exceeds capacity %d", a.Event.ID, confirmed, a.Event.Capacity)
	}
	if waiting := len(a.Participants) - confirmed; waiting > 0 && confirmed < a.Event.Capacity {
		return fmt.Errorf("event %s: %d waiting with %d free slots", a.Event.ID, waiting, a.Event.Capacity-confirmed)
	}
	kinds := make(map[TimerKind]struct{}, len(a.Timers))
	for _, t := range a.Timers {
		if _, dup := kinds[t.Kind]; dup {
			return fmt.Errorf("event %s: duplicate %s timer", a.Event.ID, t.Kind)
		}
		kinds[t.Kind] = struct{}{}
	}
	return nil
}
