package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"withgames/internal/domain"
	"withgames/internal/domain/entities"
	"withgames/internal/ports/output"
)

// deliver sends notifications after the triggering transaction committed.
// Failures are logged and dropped.
func deliver(ctx context.Context, d output.Dispatcher, log *zap.Logger, notes []output.Notification) {
	for _, n := range notes {
		if err := d.Notify(ctx, n); err != nil {
			log.Warn("notification not delivered",
				zap.String("event_id", n.EventID),
				zap.Stringer("kind", n.Kind),
				zap.Stringer("target", n.Target),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrDispatchFailure, err)),
			)
		}
	}
}

func rosterNotes(e *entities.Event, change entities.RosterChange) []output.Notification {
	var notes []output.Notification
	for _, p := range change.Promoted {
		notes = append(notes, userNote(e, p.UserID, output.ChangePromoted))
	}
	for _, p := range change.Demoted {
		notes = append(notes, userNote(e, p.UserID, output.ChangeDemoted))
	}
	return notes
}

func userNote(e *entities.Event, userID string, change output.RosterChangeKind) output.Notification {
	return output.Notification{
		Target:    output.Target{UserID: userID},
		Kind:      output.NotifyRosterChange,
		EventID:   e.ID,
		Title:     e.Title,
		StartTime: e.StartTime,
		Change:    change,
	}
}

// reminderNotes DMs every confirmed participant and posts one channel message
// mentioning them. Waitlisted users are not reminded.
func reminderNotes(agg *entities.Aggregate) []output.Notification {
	confirmed := agg.Confirmed()
	if len(confirmed) == 0 {
		return nil
	}
	e := &agg.Event
	notes := make([]output.Notification, 0, len(confirmed)+1)
	mentions := make([]string, 0, len(confirmed))
	for _, p := range confirmed {
		mentions = append(mentions, p.UserID)
		notes = append(notes, output.Notification{
			Target:        output.Target{UserID: p.UserID},
			Kind:          output.NotifyReminder,
			EventID:       e.ID,
			Title:         e.Title,
			StartTime:     e.StartTime,
			MinutesBefore: e.ReminderOffsetMinutes,
		})
	}
	notes = append(notes, output.Notification{
		Target:        output.Target{ChannelID: e.ChannelID},
		Kind:          output.NotifyReminder,
		EventID:       e.ID,
		Title:         e.Title,
		StartTime:     e.StartTime,
		MinutesBefore: e.ReminderOffsetMinutes,
		Mentions:      mentions,
	})
	return notes
}

func channelNote(agg *entities.Aggregate, kind output.NotificationKind, change output.RosterChangeKind) output.Notification {
	e := &agg.Event
	var mentions []string
	for _, p := range agg.Confirmed() {
		mentions = append(mentions, p.UserID)
	}
	return output.Notification{
		Target:    output.Target{ChannelID: e.ChannelID},
		Kind:      kind,
		EventID:   e.ID,
		Title:     e.Title,
		StartTime: e.StartTime,
		Change:    change,
		Mentions:  mentions,
	}
}
