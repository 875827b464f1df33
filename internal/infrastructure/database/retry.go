package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"withgames/internal/domain"
)

// RetryConfig bounds how long a store operation is retried on transient failures.
type RetryConfig struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  5 * time.Second,
	}
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isTransient reports whether err is a failure that a fresh attempt may not hit:
// serialization conflicts, deadlocks and lost or refused connections.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return true
		}
		// class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withRetry runs op with exponential backoff. Errors that are not transient stop
// the loop at once and are returned unchanged; a transient error that outlives the
// retries is reported as domain.ErrStoreUnavailable.
func withRetry[T any](ctx context.Context, cfg RetryConfig, log *zap.Logger, name string, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
		backoff.WithMaxElapsedTime(cfg.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("store operation failed, retrying",
				zap.String("op", name),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return res, nil
	}

	for {
		perm, ok := err.(*backoff.PermanentError)
		if !ok {
			break
		}
		err = perm.Unwrap()
	}
	if isTransient(err) {
		return res, fmt.Errorf("%s: %w: %v", name, domain.ErrStoreUnavailable, err)
	}
	return res, err
}
