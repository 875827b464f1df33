package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"withgames/internal/domain"
	"withgames/internal/domain/entities"
)

var start = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func newAgg(id, guild string, capacity int, at time.Time) *entities.Aggregate {
	return entities.NewAggregate(entities.Event{
		ID:                    id,
		GuildID:               guild,
		ChannelID:             "chan",
		Title:                 id,
		StartTime:             at,
		Capacity:              capacity,
		ReminderOffsetMinutes: 30,
	})
}

func TestStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	agg := newAgg("ev-1", "g", 2, start)

	require.NoError(t, s.InsertAggregate(ctx, agg))
	assert.Error(t, s.InsertAggregate(ctx, agg))

	got, err := s.GetAggregate(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, agg, got)

	got.Event.Title = "mutated"
	ev, err := s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "ev-1", ev.Title)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestStore_TransactEvent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.InsertAggregate(ctx, newAgg("ev-1", "g", 2, start)))

	t.Run("commit", func(t *testing.T) {
		out, err := s.TransactEvent(ctx, "ev-1", func(agg *entities.Aggregate) error {
			_, err := agg.Join("a", "A", start.Add(-time.Hour))
			return err
		})
		require.NoError(t, err)
		assert.Len(t, out.Participants, 1)

		ps, err := s.ListParticipants(ctx, "ev-1")
		require.NoError(t, err)
		assert.Len(t, ps, 1)
	})

	t.Run("abort leaves state untouched", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := s.TransactEvent(ctx, "ev-1", func(agg *entities.Aggregate) error {
			agg.Event.Title = "changed"
			_, _ = agg.Join("b", "B", start.Add(-time.Hour))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		agg, err := s.GetAggregate(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, "ev-1", agg.Event.Title)
		assert.Len(t, agg.Participants, 1)
	})

	t.Run("missing event", func(t *testing.T) {
		_, err := s.TransactEvent(ctx, "nope", func(*entities.Aggregate) error { return nil })
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})
}

func TestStore_DeleteAggregate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.InsertAggregate(ctx, newAgg("ev-1", "g", 2, start)))

	require.NoError(t, s.DeleteAggregate(ctx, "ev-1"))
	assert.ErrorIs(t, s.DeleteAggregate(ctx, "ev-1"), domain.ErrEventNotFound)

	_, err := s.ListParticipants(ctx, "ev-1")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)

	timers, err := s.ListPendingTimers(ctx)
	require.NoError(t, err)
	assert.Empty(t, timers)
}

func TestStore_Listings(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.InsertAggregate(ctx, newAgg("late", "g", 2, start.Add(2*time.Hour))))
	require.NoError(t, s.InsertAggregate(ctx, newAgg("early", "g", 2, start)))
	require.NoError(t, s.InsertAggregate(ctx, newAgg("other", "h", 2, start)))
	done := newAgg("done", "g", 2, start)
	done.Complete()
	require.NoError(t, s.InsertAggregate(ctx, done))

	events, err := s.ListEventsByGuild(ctx, "g")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "early", events[0].ID)
	assert.Equal(t, "late", events[1].ID)

	timers, err := s.ListPendingTimers(ctx)
	require.NoError(t, err)
	assert.Len(t, timers, 6)
	for _, tm := range timers {
		assert.NotEqual(t, "done", tm.EventID)
	}
	assert.Equal(t, entities.TimerPreStart, timers[0].Kind)
}

func TestStore_ConcurrentTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.InsertAggregate(ctx, newAgg("ev-1", "g", 5, start)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.TransactEvent(ctx, "ev-1", func(agg *entities.Aggregate) error {
				_, err := agg.Join(fmt.Sprintf("u%d", i), "", start.Add(-time.Hour))
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	agg, err := s.GetAggregate(ctx, "ev-1")
	require.NoError(t, err)
	assert.Len(t, agg.Participants, 50)
	assert.Equal(t, 5, agg.ConfirmedCount())
	require.NoError(t, agg.CheckInvariants())
}
