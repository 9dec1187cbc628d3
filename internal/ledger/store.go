package ledger

import (
	"context"
	"sync"

	"budgetblocks/internal/log"
)

// Store serializes every action on a State, versions each committed change
// and notifies observers outside the lock.
type Store struct {
	mu       sync.Mutex
	state    *State
	version  uint64
	sinks    []EventSink
	onChange []func(version uint64)

	logger *log.Logger
	slog   *log.StructuredLogger
}

// NewStore wraps st. A nil logger discards output.
func NewStore(st *State, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &Store{state: st, logger: logger, slog: log.NewStructuredLogger(logger)}
}

// AddSink registers an event sink. Call before serving traffic.
func (s *Store) AddSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// OnChange registers a callback invoked with the new version after every
// committed action.
func (s *Store) OnChange(fn func(version uint64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Update runs fn under the lock. A failing fn commits nothing: the version
// stays put and pending events are discarded.
func (s *Store) Update(ctx context.Context, op string, fn func(st *State) error) (uint64, error) {
	s.mu.Lock()
	err := fn(s.state)
	events := s.state.drainEvents()
	if err != nil {
		v := s.version
		s.mu.Unlock()
		return v, err
	}
	s.version++
	v := s.version
	sinks := append([]EventSink(nil), s.sinks...)
	observers := append([]func(uint64){}, s.onChange...)
	s.mu.Unlock()

	s.slog.LogAction(ctx, op, v, log.NewFields())
	for _, fn := range observers {
		fn(v)
	}
	for _, e := range events {
		for _, sink := range sinks {
			if err := sink.Publish(ctx, e); err != nil {
				s.logger.WarnContext(ctx, "Ledger event publish failed",
					log.FieldEventKind, string(e.Kind), log.FieldError, err.Error())
			}
		}
	}
	return v, nil
}

// View runs fn under the lock and returns the version it observed. fn must
// not retain references into st.
func (s *Store) View(fn func(st *State)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
	return s.version
}

// Version returns the current state version.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot exports the current state and its version.
func (s *Store) Snapshot() (Snapshot, uint64) {
	var snap Snapshot
	v := s.View(func(st *State) { snap = st.Export() })
	return snap, v
}

// UndoDelete restores a history entry, reporting whether it succeeded.
func (s *Store) UndoDelete(ctx context.Context, historyID string) bool {
	_, err := s.Update(ctx, log.OpUndo, func(st *State) error {
		return st.UndoDelete(historyID)
	})
	if err != nil {
		s.logger.InfoContext(ctx, "Undo unavailable", log.FieldHistoryID, historyID, log.FieldError, err.Error())
		return false
	}
	return true
}
