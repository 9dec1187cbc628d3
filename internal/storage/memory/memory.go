package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"budgetblocks/internal/ledger"
)

// Store keeps snapshots, preferences and events in process memory.
// Snapshots are held encoded so callers never share slices with it.
type Store struct {
	mu     sync.Mutex
	snap   []byte
	prefs  map[string][]byte
	events []ledger.Event
}

func New() *Store {
	return &Store{prefs: map[string][]byte{}}
}

func (s *Store) SaveSnapshot(_ context.Context, snap ledger.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = data
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context) (ledger.Snapshot, bool, error) {
	s.mu.Lock()
	data := s.snap
	s.mu.Unlock()
	if data == nil {
		return ledger.Snapshot{}, false, nil
	}
	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *Store) GetPreference(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.prefs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) SetPreference(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) RecordEvent(_ context.Context, e ledger.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// ListEvents returns up to limit events, newest first.
func (s *Store) ListEvents(_ context.Context, limit int) ([]ledger.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]ledger.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
