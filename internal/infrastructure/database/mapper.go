package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"withgames/internal/domain/entities"
)

// pgtypeTimestamptzToTime returns t.Time when Valid, else zero time.
func pgtypeTimestamptzToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func timeToPgtypeTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

type eventRow struct {
	ID                    string
	OwnerID               string
	GuildID               string
	ChannelID             string
	MessageID             string
	Title                 string
	Description           string
	StartTime             time.Time
	Capacity              int32
	Status                string
	ReminderOffsetMinutes int32
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (r *eventRow) scanTargets() []any {
	return []any{
		&r.ID, &r.OwnerID, &r.GuildID, &r.ChannelID, &r.MessageID, &r.Title, &r.Description,
		&r.StartTime, &r.Capacity, &r.Status, &r.ReminderOffsetMinutes, &r.CreatedAt, &r.UpdatedAt,
	}
}

func eventToDomain(r eventRow) (entities.Event, error) {
	status, ok := entities.ParseEventStatus(r.Status)
	if !ok {
		return entities.Event{}, fmt.Errorf("event %s: unknown status %q", r.ID, r.Status)
	}
	return entities.Event{
		ID:                    r.ID,
		OwnerID:               r.OwnerID,
		GuildID:               r.GuildID,
		ChannelID:             r.ChannelID,
		MessageID:             r.MessageID,
		Title:                 r.Title,
		Description:           r.Description,
		StartTime:             r.StartTime,
		Capacity:              int(r.Capacity),
		Status:                status,
		ReminderOffsetMinutes: int(r.ReminderOffsetMinutes),
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}, nil
}

type participantRow struct {
	EventID     string
	UserID      string
	Username    string
	Role        string
	JoinedAt    time.Time
	ConfirmedAt pgtype.Timestamptz
	QueueRank   int32
}

func participantToDomain(r participantRow) (entities.Participant, error) {
	role, ok := entities.ParseRole(r.Role)
	if !ok {
		return entities.Participant{}, fmt.Errorf("participant %s/%s: unknown role %q", r.EventID, r.UserID, r.Role)
	}
	return entities.Participant{
		EventID:     r.EventID,
		UserID:      r.UserID,
		Username:    r.Username,
		Role:        role,
		JoinedAt:    r.JoinedAt,
		ConfirmedAt: pgtypeTimestamptzToTime(r.ConfirmedAt),
		QueueRank:   int(r.QueueRank),
	}, nil
}

type timerRow struct {
	EventID string
	Kind    string
	FireAt  time.Time
	Fired   bool
}

func timerToDomain(r timerRow) (entities.Timer, error) {
	kind, ok := entities.ParseTimerKind(r.Kind)
	if !ok {
		return entities.Timer{}, fmt.Errorf("timer %s: unknown kind %q", r.EventID, r.Kind)
	}
	return entities.Timer{
		EventID: r.EventID,
		Kind:    kind,
		FireAt:  r.FireAt,
		Fired:   r.Fired,
	}, nil
}
