package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"withgames/internal/domain/entities"
	"withgames/internal/ports/input"
	"withgames/internal/ports/output"
)

// RosterManager keeps the confirmed/waitlisted partition of each event. Every
// operation is a single store transaction on the event's aggregate.
type RosterManager struct {
	store       output.EventStore
	dispatcher  output.Dispatcher
	maxCapacity int
	log         *zap.Logger
}

var _ input.RosterUseCase = (*RosterManager)(nil)

func NewRosterManager(
	store output.EventStore,
	dispatcher output.Dispatcher,
	maxCapacity int,
	log *zap.Logger,
) *RosterManager {
	return &RosterManager{
		store:       store,
		dispatcher:  dispatcher,
		maxCapacity: maxCapacity,
		log:         log,
	}
}

func (m *RosterManager) Join(ctx context.Context, eventID, userID, username string, now time.Time) (entities.Role, error) {
	var role entities.Role
	_, err := m.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		r, err := agg.Join(userID, username, now)
		if err != nil {
			return err
		}
		role = r
		agg.Event.UpdatedAt = now
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("join event %s: %w", eventID, err)
	}
	m.log.Info("participant joined",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.Stringer("role", role),
	)
	return role, nil
}

func (m *RosterManager) Cancel(ctx context.Context, eventID, userID string, now time.Time) (*input.CancelResult, error) {
	var (
		removed entities.Participant
		change  entities.RosterChange
	)
	agg, err := m.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		r, c, err := agg.Leave(userID, now)
		if err != nil {
			return err
		}
		removed, change = r, c
		agg.Event.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel participation in %s: %w", eventID, err)
	}

	res := &input.CancelResult{Removed: removed}
	if len(change.Promoted) > 0 {
		res.Promoted = &change.Promoted[0]
	}
	m.log.Info("participant left",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.Stringer("role", removed.Role),
		zap.Int("promoted", len(change.Promoted)),
	)
	deliver(ctx, m.dispatcher, m.log, rosterNotes(&agg.Event, change))
	return res, nil
}

func (m *RosterManager) ChangeCapacity(ctx context.Context, eventID string, capacity int, now time.Time) (*input.CapacityResult, error) {
	var change entities.RosterChange
	agg, err := m.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		c, err := m.applyCapacity(agg, capacity, now)
		change = c
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("change capacity of %s: %w", eventID, err)
	}
	m.logCapacity(eventID, capacity, change)
	deliver(ctx, m.dispatcher, m.log, rosterNotes(&agg.Event, change))
	return &input.CapacityResult{
		Capacity: capacity,
		Promoted: change.Promoted,
		Demoted:  change.Demoted,
	}, nil
}

// applyCapacity runs the capacity algorithm inside a caller's transaction.
func (m *RosterManager) applyCapacity(agg *entities.Aggregate, capacity int, now time.Time) (entities.RosterChange, error) {
	change, err := agg.ChangeCapacity(capacity, m.maxCapacity, now)
	if err != nil {
		return entities.RosterChange{}, err
	}
	agg.Event.UpdatedAt = now
	return change, nil
}

func (m *RosterManager) logCapacity(eventID string, capacity int, change entities.RosterChange) {
	m.log.Info("capacity changed",
		zap.String("event_id", eventID),
		zap.Int("capacity", capacity),
		zap.Int("promoted", len(change.Promoted)),
		zap.Int("demoted", len(change.Demoted)),
	)
}

func (m *RosterManager) GetRoster(ctx context.Context, eventID string) (*input.Roster, error) {
	agg, err := m.store.GetAggregate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &input.Roster{
		Event:     agg.Event,
		Confirmed: agg.Confirmed(),
		Waitlist:  agg.Waitlist(),
	}, nil
}

func (m *RosterManager) MaxCapacity() int {
	return m.maxCapacity
}
