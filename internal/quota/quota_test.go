package quota

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/menta2k/image-quality/pkg/types"
)

func TestLimiterRefusesPastLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := NewLimiter(store, 2)

	for i := 0; i < 2; i++ {
		if err := l.Reserve(ctx, "user"); err != nil {
			t.Fatalf("Reserve %d: unexpected error %v", i, err)
		}
	}

	err := l.Reserve(ctx, "user")
	if !errors.Is(err, types.ErrQuotaExceeded) {
		t.Errorf("Expected ErrQuotaExceeded, got %v", err)
	}
	if n, _ := store.Get(ctx, "user"); n != 2 {
		t.Errorf("Expected refused reservation not to be counted, got %d", n)
	}

	if err := l.Reserve(ctx, "other"); err != nil {
		t.Errorf("Expected other key to be unaffected, got %v", err)
	}

	left, _ := l.Remaining(ctx, "user")
	if left != 0 {
		t.Errorf("Expected 0 remaining, got %d", left)
	}
}

func TestReleaseReturnsUse(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(NewMemoryStore(), 1)

	if err := l.Reserve(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := l.Release(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := l.Reserve(ctx, "k"); err != nil {
		t.Errorf("Expected released use to be available again, got %v", err)
	}

	l.Release(ctx, "k")
	l.Release(ctx, "k")
	if n, _ := l.Store.Get(ctx, "k"); n != 0 {
		t.Errorf("Expected counter not to go below 0, got %d", n)
	}
}

func TestZeroLimitIsUnlimited(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := NewLimiter(store, 0)
	for i := 0; i < 50; i++ {
		if err := l.Reserve(ctx, "k"); err != nil {
			t.Fatalf("Expected no limit, got %v", err)
		}
	}
	if n, _ := store.Get(ctx, "k"); n != 50 {
		t.Errorf("Expected usage to be counted, got %d", n)
	}
	if left, _ := l.Remaining(ctx, "k"); left != -1 {
		t.Errorf("Expected -1 remaining, got %d", left)
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Reserve(ctx, "k"); err != nil {
		t.Errorf("Expected nil limiter to allow, got %v", err)
	}
}

func TestReserveConcurrentNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "usage.yaml")),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			l := NewLimiter(store, 3)

			var wg sync.WaitGroup
			var mu sync.Mutex
			granted, refused := 0, 0
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := l.Reserve(ctx, "k")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						granted++
					case errors.Is(err, types.ErrQuotaExceeded):
						refused++
					default:
						t.Errorf("Unexpected error %v", err)
					}
				}()
			}
			wg.Wait()

			if granted != 3 || refused != 9 {
				t.Errorf("Expected 3 granted and 9 refused, got %d and %d", granted, refused)
			}
			if n, _ := store.Get(ctx, "k"); n != 3 {
				t.Errorf("Expected counter 3, got %d", n)
			}
		})
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Increment(ctx, "k")
		}()
	}
	wg.Wait()

	if n, _ := s.Get(ctx, "k"); n != 20 {
		t.Errorf("Expected 20, got %d", n)
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota", "usage.yaml")

	s := NewFileStore(path)
	if n, err := s.Get(ctx, "a"); err != nil || n != 0 {
		t.Fatalf("Expected empty store, got %d (%v)", n, err)
	}
	s.Increment(ctx, "a")
	s.Increment(ctx, "a")
	s.Increment(ctx, "a")
	s.Decrement(ctx, "a")
	s.Increment(ctx, "b")
	if _, ok, _ := s.IncrementIfBelow(ctx, "b", 1); ok {
		t.Error("Expected b to be at its limit")
	}

	reopened := NewFileStore(path)
	if n, _ := reopened.Get(ctx, "a"); n != 2 {
		t.Errorf("Expected a=2 after reopen, got %d", n)
	}
	if n, _ := reopened.Get(ctx, "b"); n != 1 {
		t.Errorf("Expected b=1 after reopen, got %d", n)
	}
}
