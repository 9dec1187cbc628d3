package ledger

import (
	"fmt"
	"strings"
	"time"

	"budgetblocks/internal/core"
)

// SnapshotVersion is the schema version written by Export.
const SnapshotVersion = 1

// Snapshot is the full, versioned export of a State.
type Snapshot struct {
	Version    int                `json:"version"`
	ExportedAt time.Time          `json:"exportedAt"`
	Bases      []core.Base        `json:"bases"`
	Blocks     []core.Block       `json:"blocks"`
	Bands      []core.Band        `json:"bands"`
	FixedBills []core.FixedBill   `json:"fixedBills"`
	Schedules  []core.PaySchedule `json:"schedules"`
	Masters    Masters            `json:"masters"`
	History    []HistoryEntry     `json:"history"`
}

// Export copies the whole state.
func (st *State) Export() Snapshot {
	return Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: st.now(),
		Bases:      st.Bases(),
		Blocks:     st.Blocks(),
		Bands:      st.Bands(),
		FixedBills: st.FixedBills(),
		Schedules:  st.Schedules(),
		Masters:    st.Masters(),
		History:    st.history.Entries(),
	}
}

// Import validates s and replaces the whole state with it. Undo entries of
// unknown kinds or versions are dropped; their count is returned.
func (st *State) Import(s Snapshot) (int, error) {
	if s.Version != SnapshotVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedSnapshot, s.Version)
	}
	if err := validateSnapshot(s); err != nil {
		return 0, &core.ValidationError{Field: "snapshot", Err: err}
	}
	clone := func(bs []core.Block) []core.Block {
		out := make([]core.Block, len(bs))
		for i, b := range bs {
			out[i] = b.Clone()
		}
		return out
	}
	bases := make([]core.Base, len(s.Bases))
	for i, b := range s.Bases {
		bases[i] = b.Clone()
	}
	st.bases = bases
	st.blocks = clone(s.Blocks)
	st.bands = append([]core.Band(nil), s.Bands...)
	st.fixedBills = append([]core.FixedBill(nil), s.FixedBills...)
	st.schedules = append([]core.PaySchedule(nil), s.Schedules...)
	st.masters = s.Masters.clone()
	dropped := st.history.load(s.History)
	st.emit(Event{Kind: EventImported, Count: len(s.Blocks)})
	return dropped, nil
}

func validateSnapshot(s Snapshot) error {
	ids := map[string]struct{}{}
	unique := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s without id", kind)
		}
		k := kind + "/" + id
		if _, ok := ids[k]; ok {
			return fmt.Errorf("%w: %s %s", ErrDuplicateID, kind, id)
		}
		ids[k] = struct{}{}
		return nil
	}
	for _, b := range s.Bases {
		if err := unique("base", b.ID); err != nil {
			return err
		}
		if err := b.Validate(); err != nil {
			return fmt.Errorf("base %s: %w", b.ID, err)
		}
	}
	for _, b := range s.Bands {
		if err := unique("band", b.ID); err != nil {
			return err
		}
	}
	for _, b := range s.Blocks {
		if err := unique("block", b.ID); err != nil {
			return err
		}
		if err := b.ValidateStructure(); err != nil {
			return fmt.Errorf("block %s: %w", b.ID, err)
		}
		if b.BandID != "" {
			if _, ok := ids["band/"+b.BandID]; !ok {
				return fmt.Errorf("block %s: %w", b.ID, ErrBandNotFound)
			}
		}
	}
	for _, f := range s.FixedBills {
		if err := unique("fixedBill", f.ID); err != nil {
			return err
		}
	}
	for _, p := range s.Schedules {
		if err := unique("schedule", p.ID); err != nil {
			return err
		}
	}
	return nil
}

// SeedMasters appends names missing from each list, ignoring case.
// It returns how many items were added.
func (st *State) SeedMasters(m Masters) int {
	added := 0
	for _, kind := range []MasterKind{Owners, Categories, Vendors, FlowTypes} {
		src, _ := m.list(kind)
		dst, _ := st.masters.list(kind)
		for _, it := range *src {
			name := strings.TrimSpace(it.Name)
			if name == "" || hasName(*dst, name) {
				continue
			}
			id := it.ID
			if id == "" {
				id = st.newID()
			}
			*dst = append(*dst, core.MasterItem{ID: id, Name: name})
			added++
		}
	}
	return added
}

func hasName(items []core.MasterItem, name string) bool {
	for _, it := range items {
		if strings.EqualFold(it.Name, name) {
			return true
		}
	}
	return false
}
