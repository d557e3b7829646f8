package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterStore struct {
	mu    sync.Mutex
	value int
}

func (s *counterStore) add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value += n
}

func (s *counterStore) get() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *counterStore) Snapshot() func() {
	s.mu.Lock()
	saved := s.value
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.value = saved
		s.mu.Unlock()
	}
}

func TestMemoryRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store := &counterStore{}
		runner := NewMemoryRunner(store)

		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			store.add(2)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, store.get())
	})

	t.Run("restores every participant on error", func(t *testing.T) {
		a, b := &counterStore{value: 10}, &counterStore{value: 20}
		runner := NewMemoryRunner()
		runner.Register(a, b)

		boom := errors.New("boom")
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			a.add(1)
			b.add(1)
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 10, a.get())
		assert.Equal(t, 20, b.get())
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		store := &counterStore{}
		runner := NewMemoryRunner(store)

		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			store.add(1)
			if err := runner.RunInTx(ctx, func(ctx context.Context) error {
				store.add(1)
				return nil
			}); err != nil {
				return err
			}
			return errors.New("outer fails")
		})
		require.Error(t, err)
		assert.Equal(t, 0, store.get())
	})

	t.Run("restores and re-panics", func(t *testing.T) {
		store := &counterStore{value: 5}
		runner := NewMemoryRunner(store)

		assert.Panics(t, func() {
			_ = runner.RunInTx(ctx, func(ctx context.Context) error {
				store.add(100)
				panic("kaboom")
			})
		})
		assert.Equal(t, 5, store.get())
	})

	t.Run("rejects cancelled context", func(t *testing.T) {
		runner := NewMemoryRunner()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := runner.RunInTx(cctx, func(context.Context) error { return nil })
		require.Error(t, err)
	})

	t.Run("serializes concurrent transactions", func(t *testing.T) {
		store := &counterStore{}
		runner := NewMemoryRunner(store)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = runner.RunInTx(ctx, func(ctx context.Context) error {
					store.add(1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, store.get())
	})
}

func TestAfterCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("runs immediately without a transaction", func(t *testing.T) {
		ran := false
		AfterCommit(ctx, func() { ran = true })
		assert.True(t, ran)
	})

	t.Run("runs once the outermost transaction commits", func(t *testing.T) {
		runner := NewMemoryRunner()
		var order []string

		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			AfterCommit(ctx, func() { order = append(order, "outer") })
			return runner.RunInTx(ctx, func(ctx context.Context) error {
				AfterCommit(ctx, func() { order = append(order, "inner") })
				order = append(order, "body")
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"body", "outer", "inner"}, order)
	})

	t.Run("dropped on rollback", func(t *testing.T) {
		runner := NewMemoryRunner()
		ran := false

		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			AfterCommit(ctx, func() { ran = true })
			return errors.New("rollback")
		})
		require.Error(t, err)
		assert.False(t, ran)
	})
}
