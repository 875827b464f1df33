package output

import (
	"context"

	"withgames/internal/domain/entities"
)

// EventStore persists event aggregates. Lookups of a missing event return
// domain.ErrEventNotFound; transient failures that outlive the store's own retries
// wrap domain.ErrStoreUnavailable.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (*entities.Event, error)
	GetAggregate(ctx context.Context, id string) (*entities.Aggregate, error)
	// InsertAggregate stores a new event together with its timers.
	InsertAggregate(ctx context.Context, agg *entities.Aggregate) error
	ListParticipants(ctx context.Context, eventID string) ([]entities.Participant, error)
	// TransactEvent loads the aggregate under an exclusive per-event lock, applies fn
	// and writes the result back atomically. An error from fn aborts without writing
	// and is returned as is.
	TransactEvent(ctx context.Context, id string, fn func(agg *entities.Aggregate) error) (*entities.Aggregate, error)
	// DeleteAggregate removes the event, its participants and its timers in one step.
	DeleteAggregate(ctx context.Context, id string) error
	// ListPendingTimers returns unfired timers of non-terminal events.
	ListPendingTimers(ctx context.Context) ([]entities.Timer, error)
	// ListEventsByGuild returns non-terminal events of a guild ordered by start time.
	ListEventsByGuild(ctx context.Context, guildID string) ([]entities.Event, error)
}
