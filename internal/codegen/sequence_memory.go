package codegen

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemorySequence keeps one atomic counter per kind in process memory.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[Kind]*atomic.Int64
}

func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[Kind]*atomic.Int64)}
}

// Seed sets the last issued value for kind, typically from a row count at
// startup.
func (s *MemorySequence) Seed(kind Kind, last int64) {
	s.counter(kind).Store(last)
}

func (s *MemorySequence) Next(_ context.Context, kind Kind) (int64, error) {
	return s.counter(kind).Add(1), nil
}

func (s *MemorySequence) counter(kind Kind) *atomic.Int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[kind]
	if !ok {
		c = &atomic.Int64{}
		s.counters[kind] = c
	}
	return c
}

// HighWater reports the largest sequence already committed for a kind.
type HighWater interface {
	LastIssued(ctx context.Context, kind Kind) (int64, error)
}

// SeedFrom primes seq with the high-water mark of every kind so a restarted
// process resumes after the codes already stored.
func SeedFrom(ctx context.Context, seq *MemorySequence, hw HighWater) error {
	for _, kind := range Kinds() {
		last, err := hw.LastIssued(ctx, kind)
		if err != nil {
			return err
		}
		seq.Seed(kind, last)
	}
	return nil
}
