package cache

import (
	"context"
	"time"

	"budgetblocks/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Purge drops every entry
	Purge()

	// Size returns the current number of items in the cache
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans the registered caches
type Manager struct {
	caches   []Cleaner
	interval time.Duration
	logger   *log.Logger
}

// NewManager creates a manager that cleans every interval
func NewManager(interval time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Manager{interval: interval, logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the manager for cleanup. Call before Run.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// CleanAll runs one cleanup pass and returns how many entries expired
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run cleans on every tick until ctx is cancelled
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanAll(); n > 0 {
				m.logger.Debug("Cache cleanup completed", log.FieldCount, n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
