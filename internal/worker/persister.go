package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"
	"budgetblocks/internal/storage"
)

// SnapshotSource exposes the current ledger state and its version.
type SnapshotSource interface {
	Snapshot() (ledger.Snapshot, uint64)
}

// Persister writes the ledger to a SnapshotStore a short while after it
// changes, coalescing bursts of actions into one save.
type Persister struct {
	source   SnapshotSource
	store    storage.SnapshotStore
	debounce time.Duration
	notify   chan struct{}

	mu    sync.Mutex
	saved uint64

	logger *log.Logger
}

func NewPersister(source SnapshotSource, store storage.SnapshotStore, debounce time.Duration, logger *log.Logger) *Persister {
	if logger == nil {
		logger = log.Discard()
	}
	return &Persister{
		source:   source,
		store:    store,
		debounce: debounce,
		notify:   make(chan struct{}, 1),
		logger:   logger.WithComponent(log.ComponentStorage),
	}
}

// Notify marks the state dirty. It never blocks; wire it to Store.OnChange.
func (p *Persister) Notify(uint64) {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Saved returns the last version written.
func (p *Persister) Saved() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved
}

// MarkSaved records v as already persisted, e.g. after loading it.
func (p *Persister) MarkSaved(v uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = v
}

// Flush saves the current state unless its version was already written.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, v := p.source.Snapshot()
	if v == p.saved {
		return nil
	}
	start := time.Now()
	if err := p.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot v%d: %w", v, err)
	}
	p.saved = v
	p.logger.DebugContext(ctx, "Ledger persisted",
		log.FieldVersion, v,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Run saves dirty state after the debounce delay until ctx is done, then
// makes a final flush.
func (p *Persister) Run(ctx context.Context) error {
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := p.Flush(flushCtx); err != nil {
				p.logger.Error("Final flush failed", log.FieldError, err.Error())
				return err
			}
			return nil
		case <-p.notify:
			if timer == nil {
				timer = time.After(p.debounce)
			}
		case <-timer:
			timer = nil
			if err := p.Flush(ctx); err != nil {
				// Retried on the next change or at shutdown.
				p.logger.ErrorContext(ctx, "Persist failed", log.FieldError, err.Error())
			}
		}
	}
}
