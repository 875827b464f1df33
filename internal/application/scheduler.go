package application

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"withgames/internal/domain"
	"withgames/internal/domain/entities"
	"withgames/internal/ports/output"
)

// TimerHandler applies a fired timer to its aggregate inside the firing transaction.
type TimerHandler interface {
	ApplyTimer(agg *entities.Aggregate, timer entities.Timer, now time.Time) []output.Notification
}

type SchedulerConfig struct {
	// RetryDelay is how long a timer waits before another attempt after a store failure.
	RetryDelay time.Duration
	// LeaseInterval is how often the lease is renewed, or retried while another
	// process holds it.
	LeaseInterval time.Duration
	// ReconcileInterval reloads pending timers from the store periodically so timers
	// created by other processes are picked up. Zero disables it.
	ReconcileInterval time.Duration
	// MaxIdle bounds the sleep when no timer is queued.
	MaxIdle time.Duration
	Clock   func() time.Time
}

func (c *SchedulerConfig) defaults() {
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.LeaseInterval <= 0 {
		c.LeaseInterval = 10 * time.Second
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = time.Hour
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

var errTimerStale = errors.New("timer missing, fired or rescheduled")

type timerKey struct {
	eventID string
	kind    entities.TimerKind
}

type queuedTimer struct {
	key timerKey
	// fireAt is the persisted due time checked by compare-and-set.
	fireAt time.Time
	// due is when the next attempt happens; later than fireAt after a failure.
	due   time.Time
	index int
}

type timerHeap []*queuedTimer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	if h[i].key.kind != h[j].key.kind {
		return h[i].key.kind < h[j].key.kind
	}
	return h[i].key.eventID < h[j].key.eventID
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*queuedTimer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler fires each persisted timer once, at or shortly after its due time.
// A single loop owns the queue; Schedule and Unschedule only edit it and wake the loop.
type Scheduler struct {
	store      output.EventStore
	dispatcher output.Dispatcher
	lease      output.Lease
	handler    TimerHandler
	cfg        SchedulerConfig
	log        *zap.Logger

	// syncMu orders store reads with the queue updates built from them.
	syncMu sync.Mutex

	mu    sync.Mutex
	queue timerHeap
	byKey map[timerKey]*queuedTimer
	wake  chan struct{}
}

// NewScheduler builds a scheduler. lease may be nil for a single-process deployment.
func NewScheduler(
	store output.EventStore,
	dispatcher output.Dispatcher,
	lease output.Lease,
	cfg SchedulerConfig,
	log *zap.Logger,
) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		lease:      lease,
		cfg:        cfg,
		log:        log,
		byKey:      make(map[timerKey]*queuedTimer),
		wake:       make(chan struct{}, 1),
	}
}

// SetHandler installs the callback run for fired timers. It must be called before Run.
func (s *Scheduler) SetHandler(h TimerHandler) {
	s.handler = h
}

// Schedule adds or replaces queue entries for the given unfired timers.
func (s *Scheduler) Schedule(timers ...entities.Timer) {
	s.mu.Lock()
	for _, t := range timers {
		if t.Fired {
			continue
		}
		key := timerKey{eventID: t.EventID, kind: t.Kind}
		if q, ok := s.byKey[key]; ok {
			q.fireAt, q.due = t.FireAt, t.FireAt
			heap.Fix(&s.queue, q.index)
			continue
		}
		q := &queuedTimer{key: key, fireAt: t.FireAt, due: t.FireAt}
		heap.Push(&s.queue, q)
		s.byKey[key] = q
	}
	s.mu.Unlock()
	s.signal()
}

// Unschedule drops every queued timer of the event.
func (s *Scheduler) Unschedule(eventID string) {
	s.mu.Lock()
	s.dropLocked(eventID)
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) dropLocked(eventID string) {
	for _, kind := range entities.TimerKinds {
		key := timerKey{eventID: eventID, kind: kind}
		if q, ok := s.byKey[key]; ok {
			heap.Remove(&s.queue, q.index)
			delete(s.byKey, key)
		}
	}
}

// Resync replaces the queued timers of the event with its persisted pending
// timers. Calls are serialized, so the queue ends with the latest committed due times.
func (s *Scheduler) Resync(ctx context.Context, eventID string) {
	if err := s.resync(ctx, eventID); err != nil {
		// queued entries stay; a stale one requeues the persisted timer when it fires
		s.log.Warn("timer resync failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *Scheduler) resync(ctx context.Context, eventID string) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	agg, err := s.store.GetAggregate(ctx, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		s.Unschedule(eventID)
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.dropLocked(eventID)
	s.mu.Unlock()
	s.Schedule(agg.PendingTimers()...)
	return nil
}

// Pending reports how many timers are queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Reconcile loads every pending timer from the store and fires the overdue ones.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	s.syncMu.Lock()
	timers, err := s.store.ListPendingTimers(ctx)
	if err != nil {
		s.syncMu.Unlock()
		return fmt.Errorf("load pending timers: %w", err)
	}
	s.Schedule(timers...)
	s.syncMu.Unlock()

	now := s.cfg.Clock()
	overdue := 0
	for _, t := range timers {
		if !t.FireAt.After(now) {
			overdue++
		}
	}
	s.log.Info("timers reconciled", zap.Int("pending", len(timers)), zap.Int("overdue", overdue))
	s.FireDue(ctx, now)
	return nil
}

// FireDue fires every queued timer due at now and returns how many fired.
func (s *Scheduler) FireDue(ctx context.Context, now time.Time) int {
	var due []*queuedTimer
	s.mu.Lock()
	for len(s.queue) > 0 && !s.queue[0].due.After(now) {
		q := heap.Pop(&s.queue).(*queuedTimer)
		delete(s.byKey, q.key)
		due = append(due, q)
	}
	s.mu.Unlock()

	fired := 0
	for _, q := range due {
		ok, err := s.Fire(ctx, q.key.eventID, q.key.kind, q.fireAt, now)
		if err != nil {
			s.log.Error("timer fire failed, retrying later",
				zap.String("event_id", q.key.eventID),
				zap.Stringer("kind", q.key.kind),
				zap.Duration("retry_in", s.cfg.RetryDelay),
				zap.Error(err),
			)
			s.requeue(q, now.Add(s.cfg.RetryDelay))
			continue
		}
		if ok {
			fired++
		}
	}
	return fired
}

// requeue puts a failed timer back unless it was rescheduled meanwhile.
func (s *Scheduler) requeue(q *queuedTimer, due time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[q.key]; ok {
		return
	}
	q.due = due
	heap.Push(&s.queue, q)
	s.byKey[q.key] = q
}

// Fire marks the persisted timer fired if it still matches fireAt, applies it and
// dispatches the resulting notifications after commit. It reports false when the
// timer was missing, already fired or rescheduled.
func (s *Scheduler) Fire(ctx context.Context, eventID string, kind entities.TimerKind, fireAt, now time.Time) (bool, error) {
	if s.handler == nil {
		return false, errors.New("scheduler: no timer handler")
	}

	var (
		notes []output.Notification
		moved *entities.Timer
	)
	_, err := s.store.TransactEvent(ctx, eventID, func(agg *entities.Aggregate) error {
		notes, moved = nil, nil
		if !agg.MarkFired(kind, fireAt) {
			if cur, ok := agg.Timer(kind); ok && !cur.Fired && !cur.FireAt.Equal(fireAt) {
				moved = &cur
			}
			return errTimerStale
		}
		timer, _ := agg.Timer(kind)
		notes = s.handler.ApplyTimer(agg, timer, now)
		return nil
	})
	switch {
	case errors.Is(err, errTimerStale) && moved != nil:
		s.log.Info("timer requeued at persisted due time",
			zap.String("event_id", eventID),
			zap.Stringer("kind", kind),
			zap.Time("queued_at", fireAt),
			zap.Time("fire_at", moved.FireAt),
		)
		if rerr := s.resync(ctx, eventID); rerr != nil {
			s.Schedule(*moved)
		}
		return false, nil
	case errors.Is(err, errTimerStale), errors.Is(err, domain.ErrEventNotFound):
		s.log.Debug("timer skipped",
			zap.String("event_id", eventID),
			zap.Stringer("kind", kind),
			zap.NamedError("reason", err),
		)
		return false, nil
	case err != nil:
		return false, err
	}

	s.log.Info("timer fired",
		zap.String("event_id", eventID),
		zap.Stringer("kind", kind),
		zap.Time("fire_at", fireAt),
		zap.Int("notifications", len(notes)),
	)
	deliver(ctx, s.dispatcher, s.log, notes)
	return true, nil
}

// Run drives the scheduling loop until ctx is cancelled. Unfired timers stay
// persisted and are picked up by the next Reconcile.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.handler == nil {
		return errors.New("scheduler: no timer handler")
	}
	s.log.Info("scheduler started")

	var (
		leader        bool
		lastReconcile time.Time
	)
	for {
		held := s.holdLease(ctx, leader)
		if held {
			now := s.cfg.Clock()
			reload := !leader || lastReconcile.IsZero() ||
				(s.cfg.ReconcileInterval > 0 && now.Sub(lastReconcile) >= s.cfg.ReconcileInterval)
			if reload {
				if err := s.Reconcile(ctx); err != nil {
					s.log.Error("reconcile failed", zap.Error(err))
				} else {
					lastReconcile = now
				}
			}
			s.FireDue(ctx, s.cfg.Clock())
		}
		if held != leader {
			s.log.Info("scheduler leadership changed", zap.Bool("leader", held))
		}
		leader = held

		d := s.nextWait(s.cfg.Clock(), held)
		if held && lastReconcile.IsZero() && d > s.cfg.RetryDelay {
			d = s.cfg.RetryDelay
		}
		wait := time.NewTimer(d)
		select {
		case <-ctx.Done():
			wait.Stop()
			s.releaseLease(leader)
			s.log.Info("scheduler stopped", zap.Int("pending", s.Pending()))
			return nil
		case <-s.wake:
		case <-wait.C:
		}
		wait.Stop()
	}
}

func (s *Scheduler) holdLease(ctx context.Context, leader bool) bool {
	if s.lease == nil {
		return true
	}
	ok, err := s.lease.Acquire(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("scheduler lease check failed", zap.Bool("leader", leader), zap.Error(err))
		}
		return leader
	}
	return ok
}

func (s *Scheduler) releaseLease(leader bool) {
	if s.lease == nil || !leader {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		s.log.Warn("scheduler lease release failed", zap.Error(err))
	}
}

func (s *Scheduler) nextWait(now time.Time, held bool) time.Duration {
	wait := s.cfg.MaxIdle
	if s.lease != nil && s.cfg.LeaseInterval < wait {
		wait = s.cfg.LeaseInterval
	}
	if !held {
		return wait
	}
	if s.cfg.ReconcileInterval > 0 && s.cfg.ReconcileInterval < wait {
		wait = s.cfg.ReconcileInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		until := s.queue[0].due.Sub(now)
		if until < 0 {
			until = 0
		}
		if until < wait {
			wait = until
		}
	}
	return wait
}
