package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"withgames/internal/domain"
	"withgames/internal/domain/entities"
	"withgames/internal/ports/output"
)

const eventColumns = `id, owner_id, guild_id, channel_id, message_id, title, description,
	start_time, capacity, status, reminder_offset_minutes, created_at, updated_at`

var _ output.EventStore = (*Store)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists aggregates in PostgreSQL. The event row is the lock for the whole
// aggregate: TransactEvent takes it with SELECT ... FOR UPDATE.
type Store struct {
	pool  *pgxpool.Pool
	retry RetryConfig
	log   *zap.Logger
}

func NewStore(pool *pgxpool.Pool, retry RetryConfig, log *zap.Logger) *Store {
	return &Store{pool: pool, retry: retry, log: log}
}

func (s *Store) GetEvent(ctx context.Context, id string) (*entities.Event, error) {
	return withRetry(ctx, s.retry, s.log, "get event", func() (*entities.Event, error) {
		e, err := loadEvent(ctx, s.pool, id, false)
		if err != nil {
			return nil, err
		}
		return &e, nil
	})
}

func (s *Store) GetAggregate(ctx context.Context, id string) (*entities.Aggregate, error) {
	return withRetry(ctx, s.retry, s.log, "get aggregate", func() (*entities.Aggregate, error) {
		return s.readAggregate(ctx, id)
	})
}

// readAggregate loads the aggregate from one consistent snapshot.
func (s *Store) readAggregate(ctx context.Context, id string) (*entities.Aggregate, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	agg, err := loadAggregate(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return agg, nil
}

func (s *Store) ListParticipants(ctx context.Context, eventID string) ([]entities.Participant, error) {
	agg, err := s.GetAggregate(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return agg.Participants, nil
}

func (s *Store) InsertAggregate(ctx context.Context, agg *entities.Aggregate) error {
	_, err := withRetry(ctx, s.retry, s.log, "insert aggregate", func() (struct{}, error) {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return struct{}{}, err
		}
		defer tx.Rollback(ctx)

		e := &agg.Event
		_, err = tx.Exec(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, e.ID, e.OwnerID, e.GuildID, e.ChannelID, e.MessageID, e.Title, e.Description,
			e.StartTime, e.Capacity, e.Status.String(), e.ReminderOffsetMinutes, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return struct{}{}, fmt.Errorf("insert event: %w", err)
		}
		if err := saveChildren(ctx, tx, agg); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, tx.Commit(ctx)
	})
	return err
}

// TransactEvent runs fn on the locked aggregate and writes back the result. The
// whole attempt, fn included, is repeated on transient failures, so fn must not
// have side effects outside the aggregate.
func (s *Store) TransactEvent(ctx context.Context, id string, fn func(*entities.Aggregate) error) (*entities.Aggregate, error) {
	return withRetry(ctx, s.retry, s.log, "transact event", func() (*entities.Aggregate, error) {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return nil, err
		}
		defer tx.Rollback(ctx)

		agg, err := loadAggregate(ctx, tx, id, true)
		if err != nil {
			return nil, err
		}
		if err := fn(agg); err != nil {
			return nil, backoff.Permanent(err)
		}

		e := &agg.Event
		_, err = tx.Exec(ctx, `
			UPDATE events
			SET message_id = $2, title = $3, description = $4, start_time = $5, capacity = $6,
			    status = $7, reminder_offset_minutes = $8, updated_at = $9
			WHERE id = $1
		`, e.ID, e.MessageID, e.Title, e.Description, e.StartTime, e.Capacity,
			e.Status.String(), e.ReminderOffsetMinutes, e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("update event: %w", err)
		}
		if err := saveChildren(ctx, tx, agg); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return agg, nil
	})
}

// DeleteAggregate relies on ON DELETE CASCADE for participants and timers.
func (s *Store) DeleteAggregate(ctx context.Context, id string) error {
	_, err := withRetry(ctx, s.retry, s.log, "delete aggregate", func() (struct{}, error) {
		tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return struct{}{}, err
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, domain.ErrEventNotFound
		}
		return struct{}{}, nil
	})
	return err
}

func (s *Store) ListPendingTimers(ctx context.Context) ([]entities.Timer, error) {
	return withRetry(ctx, s.retry, s.log, "list pending timers", func() ([]entities.Timer, error) {
		rows, err := s.pool.Query(ctx, `
			SELECT t.event_id, t.kind, t.fire_at, t.fired
			FROM timers t
			JOIN events e ON e.id = t.event_id
			WHERE NOT t.fired AND e.status IN ('open', 'closed')
			ORDER BY t.fire_at, t.event_id
		`)
		if err != nil {
			return nil, err
		}
		return scanTimers(rows)
	})
}

func (s *Store) ListEventsByGuild(ctx context.Context, guildID string) ([]entities.Event, error) {
	return withRetry(ctx, s.retry, s.log, "list events", func() ([]entities.Event, error) {
		rows, err := s.pool.Query(ctx, `
			SELECT `+eventColumns+`
			FROM events
			WHERE guild_id = $1 AND status IN ('open', 'closed')
			ORDER BY start_time, id
		`, guildID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		events := make([]entities.Event, 0)
		for rows.Next() {
			var r eventRow
			if err := rows.Scan(r.scanTargets()...); err != nil {
				return nil, err
			}
			e, err := eventToDomain(r)
			if err != nil {
				return nil, err
			}
			events = append(events, e)
		}
		return events, rows.Err()
	})
}

func loadEvent(ctx context.Context, q querier, id string, forUpdate bool) (entities.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var r eventRow
	if err := q.QueryRow(ctx, query, id).Scan(r.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entities.Event{}, domain.ErrEventNotFound
		}
		return entities.Event{}, err
	}
	return eventToDomain(r)
}

func loadAggregate(ctx context.Context, q querier, id string, forUpdate bool) (*entities.Aggregate, error) {
	e, err := loadEvent(ctx, q, id, forUpdate)
	if err != nil {
		return nil, err
	}
	agg := &entities.Aggregate{Event: e}

	rows, err := q.Query(ctx, `
		SELECT event_id, user_id, username, role, joined_at, confirmed_at, queue_rank
		FROM participants
		WHERE event_id = $1
		ORDER BY joined_at, user_id
	`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var r participantRow
		if err := rows.Scan(&r.EventID, &r.UserID, &r.Username, &r.Role, &r.JoinedAt, &r.ConfirmedAt, &r.QueueRank); err != nil {
			rows.Close()
			return nil, err
		}
		p, err := participantToDomain(r)
		if err != nil {
			rows.Close()
			return nil, err
		}
		agg.Participants = append(agg.Participants, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `SELECT event_id, kind, fire_at, fired FROM timers WHERE event_id = $1`, id)
	if err != nil {
		return nil, err
	}
	agg.Timers, err = scanTimers(rows)
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func scanTimers(rows pgx.Rows) ([]entities.Timer, error) {
	defer rows.Close()
	var timers []entities.Timer
	for rows.Next() {
		var r timerRow
		if err := rows.Scan(&r.EventID, &r.Kind, &r.FireAt, &r.Fired); err != nil {
			return nil, err
		}
		t, err := timerToDomain(r)
		if err != nil {
			return nil, err
		}
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// saveChildren makes the participant and timer rows match the aggregate: rows that
// are gone are deleted, the rest upserted in one batch.
func saveChildren(ctx context.Context, tx pgx.Tx, agg *entities.Aggregate) error {
	id := agg.Event.ID
	userIDs := make([]string, 0, len(agg.Participants))
	for _, p := range agg.Participants {
		userIDs = append(userIDs, p.UserID)
	}
	kinds := make([]string, 0, len(agg.Timers))
	for _, t := range agg.Timers {
		kinds = append(kinds, t.Kind.String())
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM participants WHERE event_id = $1 AND user_id <> ALL($2)`, id, userIDs)
	batch.Queue(`DELETE FROM timers WHERE event_id = $1 AND kind <> ALL($2)`, id, kinds)
	for _, p := range agg.Participants {
		batch.Queue(`
			INSERT INTO participants (event_id, user_id, username, role, joined_at, confirmed_at, queue_rank)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (event_id, user_id) DO UPDATE
			SET username = EXCLUDED.username, role = EXCLUDED.role, joined_at = EXCLUDED.joined_at,
			    confirmed_at = EXCLUDED.confirmed_at, queue_rank = EXCLUDED.queue_rank
		`, id, p.UserID, p.Username, p.Role.String(), p.JoinedAt, timeToPgtypeTimestamptz(p.ConfirmedAt), p.QueueRank)
	}
	for _, t := range agg.Timers {
		batch.Queue(`
			INSERT INTO timers (event_id, kind, fire_at, fired)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, kind) DO UPDATE
			SET fire_at = EXCLUDED.fire_at, fired = EXCLUDED.fired
		`, id, t.Kind.String(), t.FireAt, t.Fired)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("save participants and timers: %w", err)
		}
	}
	return br.Close()
}
