package entities

import (
	"time"
	"unicode/utf8"

	"withgames/internal/domain"
)

// EventStatus is the lifecycle state of a recruitment listing.
type EventStatus int

const (
	StatusOpen EventStatus = iota + 1
	StatusClosed
	StatusCompleted
	StatusCancelled
)

func (s EventStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseEventStatus is the inverse of String.
func ParseEventStatus(s string) (EventStatus, bool) {
	switch s {
	case "open":
		return StatusOpen, true
	case "closed":
		return StatusClosed, true
	case "completed":
		return StatusCompleted, true
	case "cancelled":
		return StatusCancelled, true
	default:
		return 0, false
	}
}

// IsTerminal reports whether no transition can leave s.
func (s EventStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition encodes Open -> Closed -> Completed and Open|Closed -> Cancelled.
func (s EventStatus) CanTransition(to EventStatus) bool {
	switch s {
	case StatusOpen:
		return to == StatusClosed || to == StatusCompleted || to == StatusCancelled
	case StatusClosed:
		return to == StatusCompleted || to == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	default:
		return false
	}
}

const (
	MaxTitleLength        = 100
	MaxDescriptionLength  = 1000
	MaxReminderOffsetMins = 7 * 24 * 60
	MaxScheduleAhead      = 365 * 24 * time.Hour
)

// Event is the aggregate root of a recruitment listing.
type Event struct {
	ID                    string
	OwnerID               string
	GuildID               string
	ChannelID             string
	MessageID             string
	Title                 string
	Description           string
	StartTime             time.Time
	Capacity              int
	Status                EventStatus
	ReminderOffsetMinutes int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (e *Event) ReminderOffset() time.Duration {
	return time.Duration(e.ReminderOffsetMinutes) * time.Minute
}

// ValidateTitle checks the title length in characters.
func ValidateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > MaxTitleLength {
		return domain.ErrInvalidTitle
	}
	return nil
}

func ValidateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return domain.ErrInvalidDescription
	}
	return nil
}

// ValidateCapacity checks 1 <= capacity <= maxCapacity; maxCapacity <= 0 disables the upper bound.
func ValidateCapacity(capacity, maxCapacity int) error {
	if capacity < 1 {
		return domain.ErrInvalidCapacity
	}
	if maxCapacity > 0 && capacity > maxCapacity {
		return domain.ErrInvalidCapacity
	}
	return nil
}

func ValidateStartTime(start, now time.Time) error {
	if !start.After(now) {
		return domain.ErrStartTimeInPast
	}
	if start.Sub(now) > MaxScheduleAhead {
		return domain.ErrStartTimeTooFar
	}
	return nil
}

func ValidateReminderOffset(minutes int) error {
	if minutes < 0 || minutes > MaxReminderOffsetMins {
		return domain.ErrInvalidReminderOffset
	}
	return nil
}
