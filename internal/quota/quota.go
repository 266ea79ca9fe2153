// Package quota counts analyses per key and refuses work past a limit.
// The counter store is injected so it can live in memory, on disk or in
// a shared service.
package quota

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-quality/pkg/types"
)

// Store keeps usage counters. IncrementIfBelow must test and bump the
// counter as one step so concurrent callers cannot overshoot the limit.
type Store interface {
	Get(ctx context.Context, key string) (int, error)
	Increment(ctx context.Context, key string) (int, error)
	IncrementIfBelow(ctx context.Context, key string, limit int) (int, bool, error)
	Decrement(ctx context.Context, key string) (int, error)
}

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], nil
}

func (s *MemoryStore) Increment(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

// IncrementIfBelow bumps key only while it is below limit. It returns the
// resulting count and whether the increment happened.
func (s *MemoryStore) IncrementIfBelow(_ context.Context, key string, limit int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[key] >= limit {
		return s.counts[key], false, nil
	}
	s.counts[key]++
	return s.counts[key], true, nil
}

// Decrement lowers key by one, never below zero
func (s *MemoryStore) Decrement(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[key] > 0 {
		s.counts[key]--
	}
	return s.counts[key], nil
}

// FileStore persists counters as a YAML map. Every change rewrites the
// file. The mutex serialises callers within one process only.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on
// first increment.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.read()
	if err != nil {
		return 0, err
	}
	return counts[key], nil
}

func (s *FileStore) Increment(_ context.Context, key string) (int, error) {
	n, _, err := s.update(key, func(int) int { return 1 })
	return n, err
}

// IncrementIfBelow bumps key only while it is below limit
func (s *FileStore) IncrementIfBelow(_ context.Context, key string, limit int) (int, bool, error) {
	return s.update(key, func(n int) int {
		if n >= limit {
			return 0
		}
		return 1
	})
}

// Decrement lowers key by one, never below zero
func (s *FileStore) Decrement(_ context.Context, key string) (int, error) {
	n, _, err := s.update(key, func(n int) int {
		if n <= 0 {
			return 0
		}
		return -1
	})
	return n, err
}

// update applies the delta returned by fn to key under the lock and writes
// the file when the count changed
func (s *FileStore) update(key string, fn func(int) int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts, err := s.read()
	if err != nil {
		return 0, false, err
	}
	delta := fn(counts[key])
	if delta == 0 {
		return counts[key], false, nil
	}
	counts[key] += delta

	data, err := yaml.Marshal(counts)
	if err != nil {
		return 0, false, fmt.Errorf("failed to marshal quota: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return 0, false, fmt.Errorf("failed to create quota directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return 0, false, fmt.Errorf("failed to write quota file: %w", err)
	}
	return counts[key], true, nil
}

func (s *FileStore) read() (map[string]int, error) {
	counts := make(map[string]int)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return counts, nil
		}
		return nil, fmt.Errorf("failed to read quota file: %w", err)
	}
	if err := yaml.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("failed to parse quota file: %w", err)
	}
	if counts == nil {
		counts = make(map[string]int)
	}
	return counts, nil
}

// Limiter enforces Limit uses per key. A zero Limit never refuses but
// still counts.
type Limiter struct {
	Store Store
	Limit int
}

// NewLimiter creates a limiter over store
func NewLimiter(store Store, limit int) *Limiter {
	return &Limiter{Store: store, Limit: limit}
}

// Reserve takes one use of key before the work starts. Once key has used
// up its allowance it returns an error wrapping types.ErrQuotaExceeded and
// records nothing.
func (l *Limiter) Reserve(ctx context.Context, key string) error {
	if l == nil || l.Store == nil {
		return nil
	}
	if l.Limit <= 0 {
		if _, err := l.Store.Increment(ctx, key); err != nil {
			return fmt.Errorf("quota update failed: %w", err)
		}
		return nil
	}
	used, ok, err := l.Store.IncrementIfBelow(ctx, key, l.Limit)
	if err != nil {
		return fmt.Errorf("quota update failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %d of %d used", types.ErrQuotaExceeded, used, l.Limit)
	}
	return nil
}

// Release gives back a use taken by Reserve when the work failed
func (l *Limiter) Release(ctx context.Context, key string) error {
	if l == nil || l.Store == nil {
		return nil
	}
	_, err := l.Store.Decrement(ctx, key)
	return err
}

// Remaining reports how many uses are left, or -1 when unlimited
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	if l == nil || l.Limit <= 0 {
		return -1, nil
	}
	used, err := l.Store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return max(l.Limit-used, 0), nil
}
