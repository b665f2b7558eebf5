package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

type ctxKey string

const txCtxKey ctxKey = "invoice_gorm_tx"

// Postgres codes for transactions that lost a concurrency conflict and may simply be rerun.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TransactionManager runs a submission and its audit entry atomically.
// Repositories pick the transaction up from the context through GetDB.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// TxOption configures a TransactionManager.
type TxOption func(*gormTxManager)

// WithTxBackoff sets the policy for rerunning transactions that hit a
// serialization failure or deadlock.
func WithTxBackoff(fn func() retry.Backoff) TxOption {
	return func(m *gormTxManager) { m.backoff = fn }
}

type gormTxManager struct {
	db      *gorm.DB
	backoff func() retry.Backoff
}

func NewTransactionManager(db *gorm.DB, opts ...TxOption) TransactionManager {
	m := &gormTxManager{
		db: db,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(20*time.Millisecond))
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunInTx runs fn in a transaction. A call made inside another RunInTx joins the
// outer transaction; only the outermost call commits and reruns on conflicts.
func (m *gormTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	return retry.Do(ctx, m.backoff(), func(ctx context.Context) error {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txCtxKey, tx))
		})
		if isRetryableTxError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// GetDB returns the transaction carried by ctx, or rootDB when there is none.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}
