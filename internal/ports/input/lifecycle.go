package input

import (
	"context"
	"time"

	"withgames/internal/domain/entities"
)

type CreateEventParams struct {
	OwnerID     string
	GuildID     string
	ChannelID   string
	Title       string
	Description string
	StartTime   time.Time
	Capacity    int
	// ReminderOffsetMinutes falls back to the configured default when nil.
	ReminderOffsetMinutes *int
}

// EditEventParams holds the fields to change; nil fields are left as they are.
type EditEventParams struct {
	Title                 *string
	Description           *string
	Capacity              *int
	StartTime             *time.Time
	ReminderOffsetMinutes *int
}

func (p EditEventParams) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Capacity == nil &&
		p.StartTime == nil && p.ReminderOffsetMinutes == nil
}

type LifecycleUseCase interface {
	CreateEvent(ctx context.Context, params CreateEventParams) (*entities.Aggregate, error)
	CloseEvent(ctx context.Context, eventID string) (*entities.Event, error)
	CancelEvent(ctx context.Context, eventID string) (*entities.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
	EditEvent(ctx context.Context, eventID string, params EditEventParams) (*entities.Aggregate, error)
	SetMessageID(ctx context.Context, eventID, messageID string) error
	GetEvent(ctx context.Context, eventID string) (*entities.Event, error)
	ListEvents(ctx context.Context, guildID string) ([]entities.Event, error)
}
