// Package stt holds the speech-to-text engine contract and the cache that
// builds each named engine at most once.
package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Engine transcribes audio files. Implementations must be safe for
// concurrent use.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
	Close() error
}

// Loader constructs the engine registered under name.
type Loader func(ctx context.Context, name string) (Engine, error)

// Cache lazily constructs engines by name and keeps them for the life of the
// process. Concurrent Get calls for an unseen name share one construction.
// A failed construction is not remembered, so the next Get retries.
type Cache struct {
	load Loader

	mu      sync.RWMutex
	engines map[string]Engine
	group   singleflight.Group
}

func NewCache(load Loader) *Cache {
	return &Cache{
		load:    load,
		engines: make(map[string]Engine),
	}
}

func (c *Cache) Get(ctx context.Context, name string) (Engine, error) {
	if e, ok := c.lookup(name); ok {
		return e, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		if e, ok := c.lookup(name); ok {
			return e, nil
		}

		start := time.Now()
		// Waiters share this construction, so it must not die with the
		// context of whichever request happened to start it.
		e, err := c.load(context.WithoutCancel(ctx), name)
		if err != nil {
			slog.Warn("stt: engine construction failed", "engine", name, "error", err)
			return nil, fmt.Errorf("load engine %s: %w", name, err)
		}

		c.mu.Lock()
		c.engines[name] = e
		c.mu.Unlock()

		slog.Info("stt: engine loaded", "engine", name, "elapsed", time.Since(start).Round(time.Millisecond))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Engine), nil
}

func (c *Cache) lookup(name string) (Engine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.engines[name]
	return e, ok
}

// Names lists the engines loaded so far, sorted.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.engines))
	for name := range c.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every cached engine and empties the cache.
func (c *Cache) Close() error {
	c.mu.Lock()
	engines := c.engines
	c.engines = make(map[string]Engine)
	c.mu.Unlock()

	var errs []error
	for name, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
