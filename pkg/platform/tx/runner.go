package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "reliefops/pkg/domain-errors"
)

// Runner provides a transactional boundary for multi-step store mutations.
// Stores called with the ctx handed to fn participate in the transaction.
// Nested calls join the outer transaction.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// defaultTxTimeout is the maximum duration for a transaction when the caller
// did not set a deadline.
const defaultTxTimeout = 5 * time.Second

// SQLRunner runs fn inside a database/sql transaction.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

// SQLRunnerOption configures a SQLRunner.
type SQLRunnerOption func(*SQLRunner)

// WithTimeout overrides the default transaction timeout.
func WithTimeout(d time.Duration) SQLRunnerOption {
	return func(r *SQLRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTxOptions sets isolation level / read-only flags for every transaction.
func WithTxOptions(opts *sql.TxOptions) SQLRunnerOption {
	return func(r *SQLRunner) {
		r.opts = opts
	}
}

func NewSQLRunner(db *sql.DB, opts ...SQLRunnerOption) *SQLRunner {
	r := &SQLRunner{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, r.opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	txCtx, hooks := withHooks(WithTx(ctx, tx))
	if err := fn(txCtx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	hooks.run()
	return nil
}

// Snapshotter is implemented by in-memory stores that take part in
// MemoryRunner transactions. Snapshot captures the current state and returns
// a function restoring it.
type Snapshotter interface {
	Snapshot() (restore func())
}

type memTxKey struct{}

// MemoryRunner serializes transactions over in-memory stores and restores
// every registered store when fn fails, giving all-or-nothing semantics
// without a database.
type MemoryRunner struct {
	mu           sync.Mutex
	participants []Snapshotter
}

func NewMemoryRunner(participants ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{participants: participants}
}

// Register adds stores whose state is rolled back on failure.
func (r *MemoryRunner) Register(participants ...Snapshotter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = append(r.participants, participants...)
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if ctx.Value(memTxKey{}) == r {
		return fn(ctx)
	}

	ctx, hooks := withHooks(ctx)
	if err := r.run(ctx, fn); err != nil {
		return err
	}
	hooks.run()
	return nil
}

func (r *MemoryRunner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), 0, len(r.participants))
	for _, p := range r.participants {
		restores = append(restores, p.Snapshot())
	}
	defer func() {
		if p := recover(); p != nil {
			rollback(restores)
			panic(p)
		}
		if err != nil {
			rollback(restores)
		}
	}()

	return fn(context.WithValue(ctx, memTxKey{}, r))
}

func rollback(restores []func()) {
	for i := len(restores) - 1; i >= 0; i-- {
		restores[i]()
	}
}
