package ledger

import (
	"context"
	"time"

	"budgetblocks/internal/core"
)

// EventKind classifies ledger events.
type EventKind string

const (
	EventRowExecuted   EventKind = "row.executed"
	EventRowUnexecuted EventKind = "row.unexecuted"
	EventBalanceEdited EventKind = "base.balance_edited"
	EventDeleted       EventKind = "entity.deleted"
	EventRestored      EventKind = "entity.restored"
	EventBandsAdded    EventKind = "bands.generated"
	EventImported      EventKind = "state.imported"
)

// Event describes a committed change that affects balances or history.
type Event struct {
	Kind     EventKind        `json:"kind"`
	EntityID string           `json:"entityId,omitempty"`
	BlockID  string           `json:"blockId,omitempty"`
	RowID    string           `json:"rowId,omitempty"`
	Deltas   []core.BaseDelta `json:"deltas,omitempty"`
	Label    string           `json:"label,omitempty"`
	Count    int              `json:"count,omitempty"`
	At       time.Time        `json:"at"`
}

// EventSink receives events after the action that produced them committed.
type EventSink interface {
	Publish(ctx context.Context, e Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, e Event) error

func (f EventSinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }
