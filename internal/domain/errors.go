package domain

import "errors"

// Kind classifies a domain error for callers that only care about the outcome family.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalidArgument
	KindStoreUnavailable
	KindDispatchFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindDispatchFailure:
		return "dispatch_failure"
	default:
		return "unknown"
	}
}

// Error is a typed business outcome. Sentinels below are compared with errors.Is.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Domain errors.
var (
	ErrEventNotFound         = newError(KindNotFound, "event_not_found", "event not found")
	ErrParticipantNotFound   = newError(KindNotFound, "participant_not_found", "participant not found")
	ErrAlreadyJoined         = newError(KindConflict, "already_joined", "user already joined this event")
	ErrEventClosed           = newError(KindConflict, "event_closed", "event is not accepting participants")
	ErrAlreadyClosed         = newError(KindConflict, "already_closed", "event is already closed")
	ErrInvalidState          = newError(KindConflict, "invalid_state", "operation not allowed in the current event state")
	ErrEventFinished         = newError(KindConflict, "event_finished", "event is already completed or cancelled")
	ErrNotOrganizer          = newError(KindConflict, "not_organizer", "only the organizer can perform this action")
	ErrInvalidCapacity       = newError(KindInvalidArgument, "invalid_capacity", "capacity is out of range")
	ErrStartTimeInPast       = newError(KindInvalidArgument, "start_time_in_past", "start time must be in the future")
	ErrStartTimeTooFar       = newError(KindInvalidArgument, "start_time_too_far", "start time must be within one year")
	ErrInvalidTitle          = newError(KindInvalidArgument, "invalid_title", "title must be 1 to 100 characters")
	ErrInvalidDescription    = newError(KindInvalidArgument, "invalid_description", "description must be at most 1000 characters")
	ErrInvalidReminderOffset = newError(KindInvalidArgument, "invalid_reminder_offset", "reminder offset is out of range")
	ErrInvalidDateTime       = newError(KindInvalidArgument, "invalid_datetime", "date/time could not be parsed")
	ErrStoreUnavailable      = newError(KindStoreUnavailable, "store_unavailable", "entity store unavailable")
	ErrDispatchFailure       = newError(KindDispatchFailure, "dispatch_failure", "notification delivery failed")
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Code returns the stable code of the first *Error in err's chain, or "".
func Code(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsBusiness reports whether err is an expected outcome that must not be retried.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindConflict, KindInvalidArgument:
		return true
	}
	return false
}
