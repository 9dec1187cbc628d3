package worker

import (
	"context"
	"fmt"

	"budgetblocks/internal/amqp"
	"budgetblocks/internal/log"
	"budgetblocks/internal/storage"
)

// Recorder appends ledger events delivered over AMQP to the event log.
type Recorder struct {
	events storage.EventLog
	logger *log.Logger
}

func NewRecorder(events storage.EventLog, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Discard()
	}
	return &Recorder{events: events, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleLedgerEvent records one message. A returned error requeues it.
func (r *Recorder) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	if msg.Event.Kind == "" {
		r.logger.WarnContext(ctx, "Skipping event without kind", "message_id", msg.ID)
		return nil
	}
	if msg.Event.At.IsZero() {
		msg.Event.At = msg.Timestamp
	}

	if err := r.events.RecordEvent(ctx, msg.Event); err != nil {
		return fmt.Errorf("record %s: %w", msg.Event.Kind, err)
	}

	r.logger.InfoContext(ctx, "Ledger event recorded",
		"message_id", msg.ID,
		log.FieldEventKind, string(msg.Event.Kind),
		log.FieldBlockID, msg.Event.BlockID,
		log.FieldRowID, msg.Event.RowID)
	return nil
}
