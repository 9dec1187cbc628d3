package ledger

import (
	"sort"
	"strings"

	"budgetblocks/internal/core"
)

// DefaultCurrency is assigned to bases created without one.
const DefaultCurrency = "USD"

func normalizeBase(b core.Base) core.Base {
	b.Name = strings.TrimSpace(b.Name)
	b.Type = core.BaseType(strings.TrimSpace(string(b.Type)))
	b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	if b.Currency == "" {
		b.Currency = DefaultCurrency
	}
	b.Tags = core.NormalizeTags(b.Tags)
	b.Balance = b.Balance.Round(2)
	return b
}

// CreateBase adds a base. An empty id is generated.
func (st *State) CreateBase(b core.Base) (core.Base, error) {
	b = normalizeBase(b)
	if err := b.Validate(); err != nil {
		return core.Base{}, err
	}
	if b.ID == "" {
		b.ID = st.newID()
	} else if st.baseIndex(b.ID) >= 0 {
		return core.Base{}, ErrDuplicateID
	}
	now := st.now()
	b.CreatedAt, b.UpdatedAt = now, now
	st.bases = append(st.bases, b)
	return b.Clone(), nil
}

// UpdateBase replaces a base's editable fields. Changing the balance here is
// the explicit balance edit and is reported as an event.
func (st *State) UpdateBase(b core.Base) (core.Base, error) {
	i := st.baseIndex(b.ID)
	if i < 0 {
		return core.Base{}, ErrBaseNotFound
	}
	b = normalizeBase(b)
	if err := b.Validate(); err != nil {
		return core.Base{}, err
	}
	prev := st.bases[i]
	b.CreatedAt = prev.CreatedAt
	b.UpdatedAt = st.now()
	if b.SortOrder == nil {
		b.SortOrder = prev.SortOrder
	}
	st.bases[i] = b
	if delta := b.Balance.Sub(prev.Balance); !delta.IsZero() {
		st.emit(Event{
			Kind:     EventBalanceEdited,
			EntityID: b.ID,
			Deltas:   []core.BaseDelta{{BaseID: b.ID, Delta: delta}},
		})
	}
	return b.Clone(), nil
}

// ReorderBases assigns a manual sort order following ids. Bases not listed
// keep their current order value.
func (st *State) ReorderBases(ids []string) error {
	for _, id := range ids {
		if st.baseIndex(id) < 0 {
			return ErrBaseNotFound
		}
	}
	for pos, id := range ids {
		order := pos
		st.bases[st.baseIndex(id)].SortOrder = &order
	}
	return nil
}

// SortedBases returns bases by manual order; unordered bases follow by name.
func SortedBases(in []core.Base) []core.Base {
	out := append([]core.Base(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SortOrder, out[j].SortOrder
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
	})
	return out
}

type baseSnapshot struct {
	Base core.Base   `json:"base"`
	Refs []refChange `json:"refs,omitempty"`

	// ReassignedTo is the base the refs were moved to, empty when cleared.
	ReassignedTo string `json:"reassignedTo,omitempty"`
}

// DeleteBase removes a base. Rows and fixed bills pointing at it are handled
// per action; with the zero action any reference blocks the delete.
func (st *State) DeleteBase(id string, action ReferenceAction) (string, error) {
	i := st.baseIndex(id)
	if i < 0 {
		return "", ErrBaseNotFound
	}
	refs := st.findRefs(id, []string{refFrom, refTo})
	target := ""
	if len(refs) > 0 {
		switch {
		case !action.chosen():
			return "", &ReferencedError{Kind: KindBase, ID: id, Usages: len(refs)}
		case action.ReassignTo != "":
			if action.ReassignTo == id || st.baseIndex(action.ReassignTo) < 0 {
				return "", ErrInvalidReassign
			}
			for _, r := range refs {
				if r.Executed {
					return "", ErrExecutedReference
				}
			}
			target = action.ReassignTo
		}
	}
	base := st.bases[i]
	entry, err := record(st, KindBase, "Base \""+base.Name+"\"", baseSnapshot{Base: base.Clone(), Refs: refs, ReassignedTo: target})
	if err != nil {
		return "", err
	}
	st.applyRefs(refs, target)
	st.bases = append(st.bases[:i], st.bases[i+1:]...)
	st.history.push(entry)
	st.emit(Event{Kind: EventDeleted, EntityID: id, Label: entry.Label, Count: len(refs)})
	return entry.ID, nil
}

func restoreBase(st *State, s baseSnapshot) error {
	if st.baseIndex(s.Base.ID) >= 0 {
		return ErrDuplicateID
	}
	st.bases = append(st.bases, s.Base)
	st.restoreRefs(s.Refs, s.ReassignedTo, s.Base.ID)
	return nil
}
