package entities

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"withgames/internal/domain"
)

var base = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestAggregate(capacity int) *Aggregate {
	return NewAggregate(Event{
		ID:                    "ev-1",
		OwnerID:               "owner",
		GuildID:               "guild",
		ChannelID:             "chan",
		Title:                 "raid night",
		StartTime:             base.Add(24 * time.Hour),
		Capacity:              capacity,
		ReminderOffsetMinutes: 30,
	})
}

func tick(n int) time.Time {
	return base.Add(time.Duration(n) * time.Second)
}

func userIDs(ps []Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}

func TestNewAggregate(t *testing.T) {
	agg := newTestAggregate(2)

	assert.Equal(t, StatusOpen, agg.Event.Status)
	require.Len(t, agg.Timers, 2)

	pre, ok := agg.Timer(TimerPreStart)
	require.True(t, ok)
	assert.Equal(t, agg.Event.StartTime.Add(-30*time.Minute), pre.FireAt)
	assert.False(t, pre.Fired)

	done, ok := agg.Timer(TimerCompletion)
	require.True(t, ok)
	assert.Equal(t, agg.Event.StartTime, done.FireAt)
}

func TestAggregate_Join(t *testing.T) {
	t.Run("fills capacity then waitlists", func(t *testing.T) {
		agg := newTestAggregate(2)

		role, err := agg.Join("a", "A", tick(1))
		require.NoError(t, err)
		assert.Equal(t, RoleConfirmed, role)

		role, err = agg.Join("b", "B", tick(2))
		require.NoError(t, err)
		assert.Equal(t, RoleConfirmed, role)

		role, err = agg.Join("c", "C", tick(3))
		require.NoError(t, err)
		assert.Equal(t, RoleWaitlisted, role)

		assert.Equal(t, []string{"a", "b"}, userIDs(agg.Confirmed()))
		assert.Equal(t, []string{"c"}, userIDs(agg.Waitlist()))
	})

	t.Run("duplicate join", func(t *testing.T) {
		agg := newTestAggregate(2)
		_, err := agg.Join("a", "A", tick(1))
		require.NoError(t, err)

		_, err = agg.Join("a", "A", tick(2))
		assert.ErrorIs(t, err, domain.ErrAlreadyJoined)
		assert.Len(t, agg.Participants, 1)
	})

	t.Run("closed event rejects join", func(t *testing.T) {
		agg := newTestAggregate(2)
		require.NoError(t, agg.Close())

		_, err := agg.Join("a", "A", tick(1))
		assert.ErrorIs(t, err, domain.ErrEventClosed)
	})

	t.Run("duplicate wins over closed", func(t *testing.T) {
		agg := newTestAggregate(2)
		_, err := agg.Join("a", "A", tick(1))
		require.NoError(t, err)
		require.NoError(t, agg.Close())

		_, err = agg.Join("a", "A", tick(2))
		assert.ErrorIs(t, err, domain.ErrAlreadyJoined)
	})
}

func TestAggregate_Leave(t *testing.T) {
	t.Run("confirmed leave promotes earliest waiter", func(t *testing.T) {
		agg := newTestAggregate(1)
		for i, u := range []string{"a", "b", "c"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}

		removed, change, err := agg.Leave("a", tick(10))
		require.NoError(t, err)
		assert.Equal(t, RoleConfirmed, removed.Role)
		require.Len(t, change.Promoted, 1)
		assert.Equal(t, "b", change.Promoted[0].UserID)
		assert.Equal(t, tick(10), change.Promoted[0].ConfirmedAt)
		assert.Equal(t, []string{"b"}, userIDs(agg.Confirmed()))
		assert.Equal(t, []string{"c"}, userIDs(agg.Waitlist()))
	})

	t.Run("waitlisted leave promotes nobody", func(t *testing.T) {
		agg := newTestAggregate(1)
		for i, u := range []string{"a", "b", "c"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}

		removed, change, err := agg.Leave("b", tick(10))
		require.NoError(t, err)
		assert.Equal(t, RoleWaitlisted, removed.Role)
		assert.True(t, change.Empty())
		assert.Equal(t, []string{"c"}, userIDs(agg.Waitlist()))
	})

	t.Run("unknown participant", func(t *testing.T) {
		agg := newTestAggregate(1)
		_, _, err := agg.Leave("ghost", tick(1))
		assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	})

	t.Run("closed event still promotes", func(t *testing.T) {
		agg := newTestAggregate(1)
		for i, u := range []string{"a", "b"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}
		require.NoError(t, agg.Close())

		_, change, err := agg.Leave("a", tick(10))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, userIDs(change.Promoted))
	})

	t.Run("terminal event", func(t *testing.T) {
		agg := newTestAggregate(1)
		_, err := agg.Join("a", "A", tick(1))
		require.NoError(t, err)
		require.NoError(t, agg.Cancel())

		_, _, err = agg.Leave("a", tick(2))
		assert.ErrorIs(t, err, domain.ErrEventFinished)
	})
}

func TestAggregate_ChangeCapacity(t *testing.T) {
	t.Run("grow promotes fifo", func(t *testing.T) {
		agg := newTestAggregate(1)
		for i, u := range []string{"a", "b", "c", "d"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}

		change, err := agg.ChangeCapacity(3, 0, tick(10))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, userIDs(change.Promoted))
		assert.Empty(t, change.Demoted)
		assert.Equal(t, []string{"d"}, userIDs(agg.Waitlist()))
	})

	t.Run("grow beyond waitlist", func(t *testing.T) {
		agg := newTestAggregate(1)
		for i, u := range []string{"a", "b"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}

		change, err := agg.ChangeCapacity(5, 0, tick(10))
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, userIDs(change.Promoted))
		assert.Empty(t, agg.Waitlist())
	})

	t.Run("shrink demotes most recently confirmed to the front", func(t *testing.T) {
		agg := newTestAggregate(3)
		for i, u := range []string{"a", "b", "c", "d", "e"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}

		change, err := agg.ChangeCapacity(1, 0, tick(10))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, userIDs(change.Demoted))
		assert.Equal(t, []string{"a"}, userIDs(agg.Confirmed()))
		assert.Equal(t, []string{"b", "c", "d", "e"}, userIDs(agg.Waitlist()))
		assert.Len(t, agg.Participants, 5)
	})

	t.Run("later demotion goes ahead of earlier one", func(t *testing.T) {
		agg := newTestAggregate(3)
		for i, u := range []string{"a", "b", "c", "d"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}

		_, err := agg.ChangeCapacity(2, 0, tick(10))
		require.NoError(t, err)
		_, err = agg.ChangeCapacity(1, 0, tick(11))
		require.NoError(t, err)

		assert.Equal(t, []string{"b", "c", "d"}, userIDs(agg.Waitlist()))
	})

	t.Run("promoted user is confirmed latest", func(t *testing.T) {
		agg := newTestAggregate(2)
		for i, u := range []string{"a", "b", "c"} {
			_, err := agg.Join(u, u, tick(i))
			require.NoError(t, err)
		}
		_, _, err := agg.Leave("a", tick(10))
		require.NoError(t, err)

		change, err := agg.ChangeCapacity(1, 0, tick(11))
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, userIDs(change.Demoted))
		assert.Equal(t, []string{"b"}, userIDs(agg.Confirmed()))
	})

	t.Run("equal timestamps break ties by user id", func(t *testing.T) {
		agg := newTestAggregate(2)
		_, err := agg.Join("x", "X", tick(1))
		require.NoError(t, err)
		_, err = agg.Join("y", "Y", tick(1))
		require.NoError(t, err)

		change, err := agg.ChangeCapacity(1, 0, tick(2))
		require.NoError(t, err)
		assert.Equal(t, []string{"y"}, userIDs(change.Demoted))
	})

	t.Run("invalid capacity", func(t *testing.T) {
		agg := newTestAggregate(2)
		for _, c := range []int{0, -1, 51} {
			_, err := agg.ChangeCapacity(c, 50, tick(1))
			assert.ErrorIs(t, err, domain.ErrInvalidCapacity, "capacity %d", c)
		}
		assert.Equal(t, 2, agg.Event.Capacity)
	})

	t.Run("terminal event", func(t *testing.T) {
		agg := newTestAggregate(2)
		require.True(t, agg.Complete())

		_, err := agg.ChangeCapacity(3, 0, tick(1))
		assert.ErrorIs(t, err, domain.ErrEventFinished)
	})
}

func TestAggregate_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*Aggregate)
		apply   func(*Aggregate) error
		want    EventStatus
		wantErr error
	}{
		{"close open", func(*Aggregate) {}, (*Aggregate).Close, StatusClosed, nil},
		{"close closed", func(a *Aggregate) { _ = a.Close() }, (*Aggregate).Close, StatusClosed, domain.ErrAlreadyClosed},
		{"close cancelled", func(a *Aggregate) { _ = a.Cancel() }, (*Aggregate).Close, StatusCancelled, domain.ErrInvalidState},
		{"cancel open", func(*Aggregate) {}, (*Aggregate).Cancel, StatusCancelled, nil},
		{"cancel closed", func(a *Aggregate) { _ = a.Close() }, (*Aggregate).Cancel, StatusCancelled, nil},
		{"cancel completed", func(a *Aggregate) { a.Complete() }, (*Aggregate).Cancel, StatusCompleted, domain.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newTestAggregate(2)
			tt.prepare(agg)

			err := tt.apply(agg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, agg.Event.Status)
		})
	}
}

func TestAggregate_TerminalDropsPendingTimers(t *testing.T) {
	agg := newTestAggregate(2)
	pre, _ := agg.Timer(TimerPreStart)
	require.True(t, agg.MarkFired(TimerPreStart, pre.FireAt))

	require.True(t, agg.Complete())
	assert.False(t, agg.Complete())

	require.Len(t, agg.Timers, 1)
	assert.Equal(t, TimerPreStart, agg.Timers[0].Kind)
	assert.Empty(t, agg.PendingTimers())
}

func TestAggregate_MarkFired(t *testing.T) {
	agg := newTestAggregate(2)
	pre, _ := agg.Timer(TimerPreStart)

	assert.False(t, agg.MarkFired(TimerPreStart, pre.FireAt.Add(time.Second)), "stale due time")
	assert.True(t, agg.MarkFired(TimerPreStart, pre.FireAt))
	assert.False(t, agg.MarkFired(TimerPreStart, pre.FireAt), "already fired")

	agg.DropPendingTimers()
	assert.False(t, agg.MarkFired(TimerCompletion, agg.Event.StartTime), "missing timer")
}

func TestAggregate_Reschedule(t *testing.T) {
	now := base

	t.Run("replaces both timers", func(t *testing.T) {
		agg := newTestAggregate(2)
		pre, _ := agg.Timer(TimerPreStart)
		require.True(t, agg.MarkFired(TimerPreStart, pre.FireAt))

		start := base.Add(48 * time.Hour)
		require.NoError(t, agg.Reschedule(start, 15, now))

		require.Len(t, agg.Timers, 2)
		require.NoError(t, agg.CheckInvariants())
		for _, tm := range agg.Timers {
			assert.False(t, tm.Fired)
		}
		pre, _ = agg.Timer(TimerPreStart)
		assert.Equal(t, start.Add(-15*time.Minute), pre.FireAt)
	})

	t.Run("past start", func(t *testing.T) {
		agg := newTestAggregate(2)
		err := agg.Reschedule(now.Add(-time.Minute), 30, now)
		assert.ErrorIs(t, err, domain.ErrStartTimeInPast)
	})

	t.Run("terminal", func(t *testing.T) {
		agg := newTestAggregate(2)
		require.NoError(t, agg.Cancel())
		err := agg.Reschedule(now.Add(time.Hour), 30, now)
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestAggregate_Clone(t *testing.T) {
	agg := newTestAggregate(2)
	_, err := agg.Join("a", "A", tick(1))
	require.NoError(t, err)

	c := agg.Clone()
	c.Participants[0].Role = RoleWaitlisted
	c.Timers[0].Fired = true
	c.Event.Title = "changed"

	assert.Equal(t, RoleConfirmed, agg.Participants[0].Role)
	assert.False(t, agg.Timers[0].Fired)
	assert.Equal(t, "raid night", agg.Event.Title)
}

// TestAggregate_RandomOperations drives random join/leave/capacity sequences and
// checks the roster invariants and the promotion/demotion counts after every step.
func TestAggregate_RandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		agg := newTestAggregate(1 + rng.Intn(5))
		for step := 0; step < 60; step++ {
			now := tick(run*1000 + step)
			user := fmt.Sprintf("u%d", rng.Intn(12))

			switch rng.Intn(3) {
			case 0:
				before := len(agg.Participants)
				_, err := agg.Join(user, user, now)
				if err == nil {
					assert.Equal(t, before+1, len(agg.Participants))
				} else {
					assert.ErrorIs(t, err, domain.ErrAlreadyJoined)
				}
			case 1:
				head := agg.Waitlist()
				removed, change, err := agg.Leave(user, now)
				if err != nil {
					assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
					break
				}
				if removed.Role == RoleConfirmed && len(head) > 0 {
					require.Len(t, change.Promoted, 1)
					assert.Equal(t, head[0].UserID, change.Promoted[0].UserID)
				} else {
					assert.Empty(t, change.Promoted)
				}
			case 2:
				oldConfirmed := agg.ConfirmedCount()
				oldWaiting := len(agg.Waitlist())
				total := len(agg.Participants)
				capacity := 1 + rng.Intn(6)

				change, err := agg.ChangeCapacity(capacity, 0, now)
				require.NoError(t, err)
				assert.Equal(t, total, len(agg.Participants))
				if oldConfirmed > capacity {
					assert.Len(t, change.Demoted, oldConfirmed-capacity)
					for i, d := range change.Demoted {
						assert.Equal(t, d.UserID, agg.Waitlist()[i].UserID)
					}
				} else {
					assert.Len(t, change.Promoted, min(capacity-oldConfirmed, oldWaiting))
				}
			}
			require.NoError(t, agg.CheckInvariants(), "run %d step %d", run, step)
		}
	}
}
