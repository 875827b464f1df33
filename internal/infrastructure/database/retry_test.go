package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"withgames/internal/domain"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxTries:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"not found", domain.ErrEventNotFound, false},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()

	t.Run("recovers from transient failure", func(t *testing.T) {
		calls := 0
		got, err := withRetry(ctx, fastRetry(), log, "op", func() (int, error) {
			calls++
			if calls < 3 {
				return 0, &pgconn.PgError{Code: "40001"}
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, got)
		assert.Equal(t, 3, calls)
	})

	t.Run("business error is not retried", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, fastRetry(), log, "op", func() (int, error) {
			calls++
			return 0, domain.ErrAlreadyJoined
		})
		assert.Equal(t, 1, calls)
		assert.Same(t, domain.ErrAlreadyJoined, err)
	})

	t.Run("exhaustion reports store unavailable", func(t *testing.T) {
		calls := 0
		_, err := withRetry(ctx, fastRetry(), log, "op", func() (int, error) {
			calls++
			return 0, &pgconn.PgError{Code: "40P01"}
		})
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.Equal(t, domain.KindStoreUnavailable, domain.KindOf(err))
	})
}
