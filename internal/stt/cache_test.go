package stt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubEngine struct {
	name   string
	closed atomic.Bool
}

func (s *stubEngine) Transcribe(context.Context, string) (Result, error) {
	return Result{Text: s.name}, nil
}

func (s *stubEngine) Close() error {
	s.closed.Store(true)
	return nil
}

func TestCacheConcurrentGetConstructsOnce(t *testing.T) {
	var constructions atomic.Int32
	release := make(chan struct{})

	cache := NewCache(func(ctx context.Context, name string) (Engine, error) {
		constructions.Add(1)
		<-release
		return &stubEngine{name: name}, nil
	})

	const callers = 16
	results := make([]Engine, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Get(context.Background(), "small")
		}(i)
	}

	// Give every goroutine a chance to block on the in-flight construction.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := constructions.Load(); got != 1 {
		t.Fatalf("expected 1 construction, got %d", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: Get failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}

	again, err := cache.Get(context.Background(), "small")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again != results[0] || constructions.Load() != 1 {
		t.Fatal("expected cached handle on later Get")
	}
}

func TestCacheFailureIsNotCached(t *testing.T) {
	var attempts atomic.Int32
	cache := NewCache(func(ctx context.Context, name string) (Engine, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("weights unavailable")
		}
		return &stubEngine{name: name}, nil
	})

	if _, err := cache.Get(context.Background(), "base"); err == nil {
		t.Fatal("expected first Get to fail")
	}
	if len(cache.Names()) != 0 {
		t.Fatalf("failed engine must not be cached, got %v", cache.Names())
	}

	e, err := cache.Get(context.Background(), "base")
	if err != nil {
		t.Fatalf("retry Get failed: %v", err)
	}
	if e == nil || attempts.Load() != 2 {
		t.Fatalf("expected retry to construct again, attempts=%d", attempts.Load())
	}
}

func TestCacheDistinctNames(t *testing.T) {
	cache := NewCache(func(ctx context.Context, name string) (Engine, error) {
		return &stubEngine{name: name}, nil
	})

	a, _ := cache.Get(context.Background(), "tiny")
	b, _ := cache.Get(context.Background(), "base")
	if a == b {
		t.Fatal("expected distinct engines per name")
	}

	names := cache.Names()
	if len(names) != 2 || names[0] != "base" || names[1] != "tiny" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCacheConstructionSurvivesCallerCancel(t *testing.T) {
	cache := NewCache(func(ctx context.Context, name string) (Engine, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &stubEngine{name: name}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cache.Get(ctx, "tiny"); err != nil {
		t.Fatalf("Get with cancelled context failed: %v", err)
	}
}

func TestCacheCloseClosesEngines(t *testing.T) {
	cache := NewCache(func(ctx context.Context, name string) (Engine, error) {
		return &stubEngine{name: name}, nil
	})

	e, err := cache.Get(context.Background(), "tiny")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !e.(*stubEngine).closed.Load() {
		t.Fatal("expected engine to be closed")
	}
	if len(cache.Names()) != 0 {
		t.Fatal("expected empty cache after Close")
	}
}
