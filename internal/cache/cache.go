// Package cache holds small in-process caches and their cleanup loop.
package cache

import (
	"context"
	"time"

	"kasbot/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps registered caches so expired entries do not
// linger until they are looked up again.
type Manager struct {
	caches []Cleaner
	logger *log.Logger
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{logger: logger.WithComponent(log.ComponentBot)}
}

// Register adds a cache to the sweep. Call before Run.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the number of
// entries removed.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps every interval until ctx ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.DebugContext(ctx, "Cache sweep", "removed", n)
			}
		}
	}
}
