package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"withgames/internal/domain/entities"
	"withgames/internal/infrastructure/memory"
	"withgames/internal/ports/input"
	"withgames/internal/ports/output"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	notes []output.Notification
	err   error
}

func (d *recordingDispatcher) Notify(_ context.Context, n output.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = append(d.notes, n)
	return d.err
}

func (d *recordingDispatcher) all() []output.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]output.Notification(nil), d.notes...)
}

func (d *recordingDispatcher) ofKind(kind output.NotificationKind) []output.Notification {
	var out []output.Notification
	for _, n := range d.all() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// userTargets lists the user ids of direct-message notifications.
func userTargets(notes []output.Notification) []string {
	var out []string
	for _, n := range notes {
		if n.Target.IsUser() {
			out = append(out, n.Target.UserID)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	store  output.EventStore
	mem    *memory.Store
	disp   *recordingDispatcher
	clock  *fakeClock
	roster *RosterManager
	life   *LifecycleController
	sched  *Scheduler
}

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStore()
	return newFixtureWithStore(t, mem, mem)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, store output.EventStore) *fixture {
	t.Helper()
	f := &fixture{
		store: store,
		mem:   mem,
		disp:  &recordingDispatcher{},
		clock: &fakeClock{now: t0},
	}
	log := zap.NewNop()
	f.roster = NewRosterManager(store, f.disp, 50, log)
	f.sched = NewScheduler(store, f.disp, nil, SchedulerConfig{
		RetryDelay: time.Minute,
		Clock:      f.clock.Now,
	}, log)
	f.life = NewLifecycleController(store, f.roster, f.disp, f.sched, 30, f.clock.Now, log)
	f.sched.SetHandler(f.life)
	return f
}

func (f *fixture) create(t *testing.T, capacity int, start time.Time) *entities.Aggregate {
	t.Helper()
	agg, err := f.life.CreateEvent(context.Background(), input.CreateEventParams{
		OwnerID:   "owner",
		GuildID:   "guild",
		ChannelID: "chan",
		Title:     "Ranked night",
		StartTime: start,
		Capacity:  capacity,
	})
	require.NoError(t, err)
	return agg
}

func (f *fixture) join(t *testing.T, eventID, userID string, at time.Time) entities.Role {
	t.Helper()
	role, err := f.roster.Join(context.Background(), eventID, userID, userID, at)
	require.NoError(t, err)
	return role
}

func ids(ps []entities.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
