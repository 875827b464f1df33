package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"withgames/internal/domain/entities"
	"withgames/internal/ports/input"
	"withgames/internal/ports/output"
)

// TimerQueue is the in-process side of the reminder scheduler.
type TimerQueue interface {
	Schedule(timers ...entities.Timer)
	Unschedule(eventID string)
	// Resync reloads the event's pending timers from the store.
	Resync(ctx context.Context, eventID string)
}

// LifecycleController owns event state transitions and their timer cascades.
type LifecycleController struct {
	store                 output.EventStore
	roster                *RosterManager
	dispatcher            output.Dispatcher
	timers                TimerQueue
	defaultReminderOffset int
	now                   func() time.Time
	log                   *zap.Logger
}

var _ input.LifecycleUseCase = (*LifecycleController)(nil)

func NewLifecycleController(
	store output.EventStore,
	roster *RosterManager,
	dispatcher output.Dispatcher,
	timers TimerQueue,
	defaultReminderOffset int,
	clock func() time.Time,
	log *zap.Logger,
) *LifecycleController {
	if clock == nil {
		clock = time.Now
	}
	return &LifecycleController{
		store:                 store,
		roster:                roster,
		dispatcher:            dispatcher,
		timers:                timers,
		defaultReminderOffset: defaultReminderOffset,
		now:                   clock,
		log:                   log,
	}
}

func (c *LifecycleController) CreateEvent(ctx context.Context, p input.CreateEventParams) (*entities.Aggregate, error) {
	now := c.now()
	title := strings.TrimSpace(p.Title)
	offset := c.defaultReminderOffset
	if p.ReminderOffsetMinutes != nil {
		offset = *p.ReminderOffsetMinutes
	}

	if err := entities.ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := entities.ValidateDescription(p.Description); err != nil {
		return nil, err
	}
	if err := entities.ValidateCapacity(p.Capacity, c.roster.MaxCapacity()); err != nil {
		return nil, err
	}
	if err := entities.ValidateStartTime(p.StartTime, now); err != nil {
		return nil, err
	}
	if err := entities.ValidateReminderOffset(offset); err != nil {
		return nil, err
	}

	agg := entities.NewAggregate(entities.Event{
		ID:                    uuid.NewString(),
		OwnerID:               p.OwnerID,
		GuildID:               p.GuildID,
		ChannelID:             p.ChannelID,
		Title:                 title,
		Description:           p.Description,
		StartTime:             p.StartTime,
		Capacity:              p.Capacity,
		ReminderOffsetMinutes: offset,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err := c.store.InsertAggregate(ctx, agg); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	c.timers.Schedule(agg.PendingTimers()...)

	c.log.Info("event created",
		zap.String("event_id", agg.Event.ID),
		zap.String("guild_id", agg.Event.GuildID),
		zap.Time("start_time", agg.Event.StartTime),
		zap.Int("capacity", agg.Event.Capacity),
	)
	return agg, nil
}

func (c *LifecycleController) CloseEvent(ctx context.Context, eventID string) (*entities.Event, error) {
	now := c.now()
	agg, err := c.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		if err := agg.Close(); err != nil {
			return err
		}
		agg.Event.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("close event %s: %w", eventID, err)
	}
	c.log.Info("event closed", zap.String("event_id", eventID))
	return &agg.Event, nil
}

// CancelEvent cancels an Open or Closed event. Participants are kept; pending
// timers are dropped.
func (c *LifecycleController) CancelEvent(ctx context.Context, eventID string) (*entities.Event, error) {
	now := c.now()
	agg, err := c.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		if err := agg.Cancel(); err != nil {
			return err
		}
		agg.Event.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel event %s: %w", eventID, err)
	}
	c.timers.Unschedule(eventID)

	c.log.Info("event cancelled", zap.String("event_id", eventID))
	deliver(ctx, c.dispatcher, c.log, []output.Notification{
		channelNote(agg, output.NotifyRosterChange, output.ChangeEventCancelled),
	})
	return &agg.Event, nil
}

// DeleteEvent removes the event with its participants and timers from any state.
func (c *LifecycleController) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.store.DeleteAggregate(ctx, eventID); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	c.timers.Unschedule(eventID)
	c.log.Info("event deleted", zap.String("event_id", eventID))
	return nil
}

// EditEvent applies the given fields in one transaction. A capacity change goes
// through the roster algorithm; a start time or reminder offset change replaces
// both timers.
func (c *LifecycleController) EditEvent(ctx context.Context, eventID string, p input.EditEventParams) (*entities.Aggregate, error) {
	now := c.now()
	var title string
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
		if err := entities.ValidateTitle(title); err != nil {
			return nil, err
		}
	}
	if p.Description != nil {
		if err := entities.ValidateDescription(*p.Description); err != nil {
			return nil, err
		}
	}
	if p.Empty() {
		return c.store.GetAggregate(ctx, eventID)
	}

	var (
		change      entities.RosterChange
		rescheduled bool
	)
	agg, err := c.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		change, rescheduled = entities.RosterChange{}, false

		if p.Title != nil {
			agg.Event.Title = title
		}
		if p.Description != nil {
			agg.Event.Description = *p.Description
		}
		if p.Capacity != nil && *p.Capacity != agg.Event.Capacity {
			ch, err := c.roster.applyCapacity(agg, *p.Capacity, now)
			if err != nil {
				return err
			}
			change = ch
		}
		if p.StartTime != nil || p.ReminderOffsetMinutes != nil {
			start := agg.Event.StartTime
			if p.StartTime != nil {
				start = *p.StartTime
			}
			offset := agg.Event.ReminderOffsetMinutes
			if p.ReminderOffsetMinutes != nil {
				offset = *p.ReminderOffsetMinutes
			}
			if !start.Equal(agg.Event.StartTime) || offset != agg.Event.ReminderOffsetMinutes {
				if err := agg.Reschedule(start, offset, now); err != nil {
					return err
				}
				rescheduled = true
			}
		}
		agg.Event.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("edit event %s: %w", eventID, err)
	}

	if rescheduled {
		c.timers.Resync(ctx, eventID)
	}
	c.log.Info("event edited",
		zap.String("event_id", eventID),
		zap.Bool("rescheduled", rescheduled),
		zap.Int("promoted", len(change.Promoted)),
		zap.Int("demoted", len(change.Demoted)),
	)
	deliver(ctx, c.dispatcher, c.log, rosterNotes(&agg.Event, change))
	return agg, nil
}

func (c *LifecycleController) SetMessageID(ctx context.Context, eventID, messageID string) error {
	_, err := c.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		agg.Event.MessageID = messageID
		return nil
	})
	if err != nil {
		return fmt.Errorf("set message id of %s: %w", eventID, err)
	}
	return nil
}

func (c *LifecycleController) GetEvent(ctx context.Context, eventID string) (*entities.Event, error) {
	return c.store.GetEvent(ctx, eventID)
}

func (c *LifecycleController) ListEvents(ctx context.Context, guildID string) ([]entities.Event, error) {
	return c.store.ListEventsByGuild(ctx, guildID)
}

// ApplyTimer runs inside the firing transaction, after the timer was marked fired,
// and returns the notifications to send once it commits.
func (c *LifecycleController) ApplyTimer(agg *entities.Aggregate, timer entities.Timer, now time.Time) []output.Notification {
	if agg.Event.Status.IsTerminal() {
		c.log.Debug("timer on finished event skipped",
			zap.String("event_id", agg.Event.ID),
			zap.Stringer("kind", timer.Kind),
			zap.Stringer("status", agg.Event.Status),
		)
		return nil
	}

	switch timer.Kind {
	case entities.TimerPreStart:
		return reminderNotes(agg)
	case entities.TimerCompletion:
		if !agg.Complete() {
			return nil
		}
		agg.Event.UpdatedAt = now
		return []output.Notification{channelNote(agg, output.NotifyCompletion, output.ChangeNone)}
	default:
		c.log.Warn("unknown timer kind", zap.String("event_id", agg.Event.ID), zap.Int("kind", int(timer.Kind)))
		return nil
	}
}
