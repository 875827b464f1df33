package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"withgames/internal/domain"
	"withgames/internal/domain/entities"
	"withgames/internal/ports/output"
)

type entry struct {
	mu      sync.Mutex
	agg     *entities.Aggregate
	deleted bool
}

// Store keeps aggregates in process memory. Each event has its own lock, so
// transactions on different events never wait on each other.
type Store struct {
	mu     sync.RWMutex
	events map[string]*entry
}

var _ output.EventStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{events: make(map[string]*entry)}
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return e, nil
}

// snapshot returns a copy of the stored aggregate.
func (s *Store) snapshot(id string) (*entities.Aggregate, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrEventNotFound
	}
	return e.agg.Clone(), nil
}

func (s *Store) GetEvent(_ context.Context, id string) (*entities.Event, error) {
	agg, err := s.snapshot(id)
	if err != nil {
		return nil, err
	}
	return &agg.Event, nil
}

func (s *Store) GetAggregate(_ context.Context, id string) (*entities.Aggregate, error) {
	return s.snapshot(id)
}

func (s *Store) InsertAggregate(_ context.Context, agg *entities.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[agg.Event.ID]; ok {
		return fmt.Errorf("event %s already stored", agg.Event.ID)
	}
	s.events[agg.Event.ID] = &entry{agg: agg.Clone()}
	return nil
}

func (s *Store) ListParticipants(_ context.Context, eventID string) ([]entities.Participant, error) {
	agg, err := s.snapshot(eventID)
	if err != nil {
		return nil, err
	}
	return agg.Participants, nil
}

func (s *Store) TransactEvent(ctx context.Context, id string, fn func(*entities.Aggregate) error) (*entities.Aggregate, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrEventNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := e.agg.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	e.agg = work
	return work.Clone(), nil
}

func (s *Store) DeleteAggregate(_ context.Context, id string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.ErrEventNotFound
	}
	e.deleted = true

	s.mu.Lock()
	delete(s.events, id)
	s.mu.Unlock()
	return nil
}

func (s *Store) all() []*entities.Aggregate {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.events))
	for _, e := range s.events {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*entities.Aggregate, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.agg.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

func (s *Store) ListPendingTimers(_ context.Context) ([]entities.Timer, error) {
	var out []entities.Timer
	for _, agg := range s.all() {
		if agg.Event.Status.IsTerminal() {
			continue
		}
		out = append(out, agg.PendingTimers()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].EventID < out[j].EventID
	})
	return out, nil
}

func (s *Store) ListEventsByGuild(_ context.Context, guildID string) ([]entities.Event, error) {
	var out []entities.Event
	for _, agg := range s.all() {
		if agg.Event.GuildID != guildID || agg.Event.Status.IsTerminal() {
			continue
		}
		out = append(out, agg.Event)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
