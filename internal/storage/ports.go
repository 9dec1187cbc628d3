package storage

import (
	"context"

	"budgetblocks/internal/ledger"
)

// Ports implemented by the persistence adapters.
type (
	// SnapshotStore persists the whole ledger state.
	SnapshotStore interface {
		// LoadSnapshot returns the stored state; found is false on a fresh store.
		LoadSnapshot(ctx context.Context) (snap ledger.Snapshot, found bool, err error)
		SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error
	}

	// PreferenceStore keeps small client preferences such as the active filter.
	PreferenceStore interface {
		GetPreference(ctx context.Context, key string) (value []byte, found bool, err error)
		SetPreference(ctx context.Context, key string, value []byte) error
	}

	// EventLog is the append-only record of ledger events.
	EventLog interface {
		RecordEvent(ctx context.Context, e ledger.Event) error
		// ListEvents returns the newest events first.
		ListEvents(ctx context.Context, limit int) ([]ledger.Event, error)
	}
)
