package input

import (
	"context"
	"time"

	"withgames/internal/domain/entities"
)

type CancelResult struct {
	Removed  entities.Participant
	Promoted *entities.Participant
}

type CapacityResult struct {
	Capacity int
	Promoted []entities.Participant
	Demoted  []entities.Participant
}

// Roster is a read view of an event's participants.
type Roster struct {
	Event     entities.Event
	Confirmed []entities.Participant
	Waitlist  []entities.Participant
}

type RosterUseCase interface {
	Join(ctx context.Context, eventID, userID, username string, now time.Time) (entities.Role, error)
	Cancel(ctx context.Context, eventID, userID string, now time.Time) (*CancelResult, error)
	ChangeCapacity(ctx context.Context, eventID string, capacity int, now time.Time) (*CapacityResult, error)
	GetRoster(ctx context.Context, eventID string) (*Roster, error)
}
