package output

import (
	"context"
	"time"
)

type NotificationKind int

const (
	NotifyReminder NotificationKind = iota + 1
	NotifyCompletion
	NotifyRosterChange
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyReminder:
		return "reminder"
	case NotifyCompletion:
		return "completion"
	case NotifyRosterChange:
		return "roster_change"
	default:
		return "unknown"
	}
}

// RosterChangeKind tells what happened in a NotifyRosterChange notification.
type RosterChangeKind int

const (
	ChangeNone RosterChangeKind = iota
	ChangePromoted
	ChangeDemoted
	ChangeEventCancelled
)

func (c RosterChangeKind) String() string {
	switch c {
	case ChangePromoted:
		return "promoted"
	case ChangeDemoted:
		return "demoted"
	case ChangeEventCancelled:
		return "event_cancelled"
	default:
		return "none"
	}
}

// Target is either a user (direct message) or a channel.
type Target struct {
	UserID    string
	ChannelID string
}

func (t Target) IsUser() bool { return t.UserID != "" }

func (t Target) String() string {
	if t.IsUser() {
		return "user:" + t.UserID
	}
	return "channel:" + t.ChannelID
}

// Notification says who to tell, what happened and when. Rendering is left to the
// dispatcher.
type Notification struct {
	Target        Target
	Kind          NotificationKind
	EventID       string
	Title         string
	StartTime     time.Time
	MinutesBefore int
	Change        RosterChangeKind
	// Mentions lists user ids to mention in a channel message.
	Mentions []string
}

// Dispatcher delivers notifications. Errors are reported for logging only; callers
// never retry.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
}
