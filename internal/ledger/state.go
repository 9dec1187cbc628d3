// Package ledger holds the application state and every action that mutates it.
//
// State is not safe for concurrent use; Store serializes access to it.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"budgetblocks/internal/core"
)

// DefaultHistoryLimit bounds the undo log when no limit is configured.
const DefaultHistoryLimit = 200

// MasterKind names one of the master lists.
type MasterKind string

const (
	Owners     MasterKind = "owners"
	Categories MasterKind = "categories"
	Vendors    MasterKind = "vendors"
	FlowTypes  MasterKind = "flowTypes"
)

// Masters are the user-managed picklists rows reference by name.
type Masters struct {
	Owners     []core.MasterItem `json:"owners"`
	Categories []core.MasterItem `json:"categories"`
	Vendors    []core.MasterItem `json:"vendors"`
	FlowTypes  []core.MasterItem `json:"flowTypes"`
}

func (m *Masters) list(kind MasterKind) (*[]core.MasterItem, error) {
	switch kind {
	case Owners:
		return &m.Owners, nil
	case Categories:
		return &m.Categories, nil
	case Vendors:
		return &m.Vendors, nil
	case FlowTypes:
		return &m.FlowTypes, nil
	default:
		return nil, ErrUnknownMasterKind
	}
}

func (m Masters) clone() Masters {
	return Masters{
		Owners:     append([]core.MasterItem(nil), m.Owners...),
		Categories: append([]core.MasterItem(nil), m.Categories...),
		Vendors:    append([]core.MasterItem(nil), m.Vendors...),
		FlowTypes:  append([]core.MasterItem(nil), m.FlowTypes...),
	}
}

// State is the explicit application state.
type State struct {
	bases      []core.Base
	blocks     []core.Block
	bands      []core.Band
	fixedBills []core.FixedBill
	schedules  []core.PaySchedule
	masters    Masters

	history *History
	events  []Event

	now   func() time.Time
	newID func() string
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(st *State) { st.now = now }
}

// WithIDs overrides id generation.
func WithIDs(newID func() string) Option {
	return func(st *State) { st.newID = newID }
}

// WithHistoryLimit bounds the undo log.
func WithHistoryLimit(n int) Option {
	return func(st *State) { st.history.limit = n }
}

// NewState returns an empty state with every undo kind registered.
func NewState(opts ...Option) *State {
	st := &State{
		history: NewHistory(DefaultHistoryLimit),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(st)
	}
	registerKinds(st.history)
	return st
}

func (st *State) today() core.Date { return core.DateOf(st.now()) }

func (st *State) emit(e Event) {
	if e.At.IsZero() {
		e.At = st.now()
	}
	st.events = append(st.events, e)
}

func (st *State) drainEvents() []Event {
	out := st.events
	st.events = nil
	return out
}

func (st *State) baseIndex(id string) int {
	for i, b := range st.bases {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (st *State) blockIndex(id string) int {
	for i, b := range st.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (st *State) bandIndex(id string) int {
	for i, b := range st.bands {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (st *State) fixedBillIndex(id string) int {
	for i, f := range st.fixedBills {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (st *State) scheduleIndex(id string) int {
	for i, s := range st.schedules {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Bases returns a copy of every base in insertion order.
func (st *State) Bases() []core.Base {
	out := make([]core.Base, len(st.bases))
	for i, b := range st.bases {
		out[i] = b.Clone()
	}
	return out
}

// Base looks up one base by id.
func (st *State) Base(id string) (core.Base, error) {
	i := st.baseIndex(id)
	if i < 0 {
		return core.Base{}, ErrBaseNotFound
	}
	return st.bases[i].Clone(), nil
}

// Blocks returns deep copies of every block, templates included.
func (st *State) Blocks() []core.Block {
	out := make([]core.Block, len(st.blocks))
	for i, b := range st.blocks {
		out[i] = b.Clone()
	}
	return out
}

// Block looks up one block by id.
func (st *State) Block(id string) (core.Block, error) {
	i := st.blockIndex(id)
	if i < 0 {
		return core.Block{}, ErrBlockNotFound
	}
	return st.blocks[i].Clone(), nil
}

// Templates returns the template library.
func (st *State) Templates() []core.Block {
	var out []core.Block
	for _, b := range st.blocks {
		if b.IsTemplate {
			out = append(out, b.Clone())
		}
	}
	return out
}

// Bands returns a copy of every band.
func (st *State) Bands() []core.Band {
	return append([]core.Band(nil), st.bands...)
}

// Band looks up one band by id.
func (st *State) Band(id string) (core.Band, error) {
	i := st.bandIndex(id)
	if i < 0 {
		return core.Band{}, ErrBandNotFound
	}
	return st.bands[i], nil
}

// FixedBills returns a copy of every fixed bill definition.
func (st *State) FixedBills() []core.FixedBill {
	return append([]core.FixedBill(nil), st.fixedBills...)
}

// Schedules returns a copy of every stored pay schedule.
func (st *State) Schedules() []core.PaySchedule {
	return append([]core.PaySchedule(nil), st.schedules...)
}

// Masters returns a copy of the master lists.
func (st *State) Masters() Masters {
	return st.masters.clone()
}
