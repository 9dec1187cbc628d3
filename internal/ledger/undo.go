package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind tags an undo entry with the kind of entity it restores.
type EntityKind string

const (
	KindBase      EntityKind = "base"
	KindBlock     EntityKind = "block"
	KindBand      EntityKind = "band"
	KindFixedBill EntityKind = "fixedBill"
	KindSchedule  EntityKind = "paySchedule"
	KindMaster    EntityKind = "masterItem"
)

// HistoryEntry is a snapshot of a deleted entity.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Kind      EntityKind      `json:"kind"`
	Version   int             `json:"version"`
	Label     string          `json:"label"`
	Data      json.RawMessage `json:"data"`
	DeletedAt time.Time       `json:"deletedAt"`
}

// Codec serializes one snapshot type.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec is the default Codec.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// restorer is the type-erased capability stored per kind.
type restorer interface {
	version() int
	restore(st *State, data []byte) error
}

type snapshotKind[T any] struct {
	ver     int
	codec   Codec[T]
	restore func(st *State, v T) error
}

func (k *snapshotKind[T]) version() int { return k.ver }

func (k *snapshotKind[T]) restoreFn() func(*State, T) error { return k.restore }

type erased[T any] struct{ *snapshotKind[T] }

func (e erased[T]) restore(st *State, data []byte) error {
	v, err := e.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return e.restoreFn()(st, v)
}

// History is a bounded soft-delete log with per-kind restore capabilities.
type History struct {
	entries []HistoryEntry
	kinds   map[EntityKind]restorer
	limit   int
}

// NewHistory creates an empty history keeping at most limit entries
// (limit <= 0 keeps everything).
func NewHistory(limit int) *History {
	return &History{kinds: make(map[EntityKind]restorer), limit: limit}
}

// Register installs the codec and restore function for a kind.
func Register[T any](h *History, kind EntityKind, version int, codec Codec[T], restore func(st *State, v T) error) {
	h.kinds[kind] = erased[T]{&snapshotKind[T]{ver: version, codec: codec, restore: restore}}
}

// encodeEntry builds an entry for v using the codec registered for kind.
func encodeEntry[T any](h *History, kind EntityKind, id, label string, v T, at time.Time) (HistoryEntry, error) {
	r, ok := h.kinds[kind]
	if !ok {
		return HistoryEntry{}, fmt.Errorf("no snapshot codec registered for %s", kind)
	}
	e, ok := r.(erased[T])
	if !ok {
		return HistoryEntry{}, fmt.Errorf("snapshot codec for %s has a different type", kind)
	}
	data, err := e.codec.Encode(v)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("encode %s snapshot: %w", kind, err)
	}
	return HistoryEntry{
		ID:        id,
		Kind:      kind,
		Version:   e.version(),
		Label:     label,
		Data:      data,
		DeletedAt: at,
	}, nil
}

func (h *History) push(e HistoryEntry) {
	h.entries = append(h.entries, e)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append([]HistoryEntry(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}

func (h *History) index(id string) int {
	for i, e := range h.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Entries returns a copy of the log, oldest first.
func (h *History) Entries() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }

// load replaces the log, dropping entries of unknown kinds or versions.
func (h *History) load(entries []HistoryEntry) int {
	h.entries = h.entries[:0]
	dropped := 0
	for _, e := range entries {
		r, ok := h.kinds[e.Kind]
		if !ok || r.version() != e.Version {
			dropped++
			continue
		}
		h.push(e)
	}
	return dropped
}

func (h *History) clear() {
	h.entries = nil
}

// record encodes v and appends it to the state's history, returning the
// history id.
func record[T any](st *State, kind EntityKind, label string, v T) (HistoryEntry, error) {
	return encodeEntry(st.history, kind, st.newID(), label, v, st.now())
}

// UndoDelete restores the entity captured by historyID with its original
// id and removes the entry. The entry is kept if restoring fails.
func (st *State) UndoDelete(historyID string) error {
	i := st.history.index(historyID)
	if i < 0 {
		return ErrUndoUnavailable
	}
	e := st.history.entries[i]
	r, ok := st.history.kinds[e.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %s", ErrUndoUnavailable, e.Kind)
	}
	if err := r.restore(st, e.Data); err != nil {
		return err
	}
	st.history.entries = append(st.history.entries[:i], st.history.entries[i+1:]...)
	st.emit(Event{Kind: EventRestored, EntityID: historyID, Label: e.Label})
	return nil
}

// ClearUndoHistory discards every entry irreversibly.
func (st *State) ClearUndoHistory() {
	st.history.clear()
}

// UndoHistory returns the entries, newest first.
func (st *State) UndoHistory() []HistoryEntry {
	out := st.history.Entries()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
