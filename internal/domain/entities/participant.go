package entities

import "time"

// Role is a participant's place in the roster.
type Role int

const (
	RoleConfirmed Role = iota + 1
	RoleWaitlisted
)

func (r Role) String() string {
	switch r {
	case RoleConfirmed:
		return "confirmed"
	case RoleWaitlisted:
		return "waitlisted"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, bool) {
	switch s {
	case "confirmed":
		return RoleConfirmed, true
	case "waitlisted":
		return RoleWaitlisted, true
	default:
		return 0, false
	}
}

// Participant represents a user's participation in an event.
// QueueRank is 0 for ordinary waitlist entries and negative for users demoted by a
// capacity reduction, which sort ahead of everyone else.
type Participant struct {
	EventID     string
	UserID      string
	Username    string
	Role        Role
	JoinedAt    time.Time
	ConfirmedAt time.Time
	QueueRank   int
}

// waitlistLess orders the waitlist: front-inserted demotions first, then FIFO by JoinedAt.
func waitlistLess(a, b *Participant) bool {
	if a.QueueRank != b.QueueRank {
		return a.QueueRank < b.QueueRank
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.UserID < b.UserID
}

// confirmedLess orders confirmed participants by confirmation order.
func confirmedLess(a, b *Participant) bool {
	if !a.ConfirmedAt.Equal(b.ConfirmedAt) {
		return a.ConfirmedAt.Before(b.ConfirmedAt)
	}
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.UserID < b.UserID
}
