package ledger

import (
	"strings"

	"budgetblocks/internal/core"
)

// CreateFixedBill adds a bill definition.
func (st *State) CreateFixedBill(f core.FixedBill) (core.FixedBill, error) {
	f.Amount = f.Amount.Round(2)
	if err := f.Validate(); err != nil {
		return core.FixedBill{}, err
	}
	if f.ID == "" {
		f.ID = st.newID()
	} else if st.fixedBillIndex(f.ID) >= 0 {
		return core.FixedBill{}, ErrDuplicateID
	}
	st.fixedBills = append(st.fixedBills, f)
	return f, nil
}

// UpdateFixedBill replaces a bill definition. Blocks populated earlier keep
// their rows.
func (st *State) UpdateFixedBill(f core.FixedBill) (core.FixedBill, error) {
	i := st.fixedBillIndex(f.ID)
	if i < 0 {
		return core.FixedBill{}, ErrFixedBillNotFound
	}
	f.Amount = f.Amount.Round(2)
	if err := f.Validate(); err != nil {
		return core.FixedBill{}, err
	}
	st.fixedBills[i] = f
	return f, nil
}

// DeleteFixedBill removes a bill definition.
func (st *State) DeleteFixedBill(id string) (string, error) {
	i := st.fixedBillIndex(id)
	if i < 0 {
		return "", ErrFixedBillNotFound
	}
	f := st.fixedBills[i]
	entry, err := record(st, KindFixedBill, "Fixed bill \""+f.Vendor+"\"", f)
	if err != nil {
		return "", err
	}
	st.fixedBills = append(st.fixedBills[:i], st.fixedBills[i+1:]...)
	st.history.push(entry)
	st.emit(Event{Kind: EventDeleted, EntityID: id, Label: entry.Label})
	return entry.ID, nil
}

func restoreFixedBill(st *State, f core.FixedBill) error {
	if st.fixedBillIndex(f.ID) >= 0 {
		return ErrDuplicateID
	}
	st.fixedBills = append(st.fixedBills, f)
	return nil
}

// masterFields maps a list to the row and bill fields that hold its names.
func masterFields(kind MasterKind) ([]string, []core.BlockType) {
	switch kind {
	case Owners:
		return []string{refOwner}, nil
	case Categories:
		return []string{refCategory}, nil
	case Vendors:
		return []string{refSource}, nil
	case FlowTypes:
		return []string{refType}, []core.BlockType{core.Flow}
	}
	return nil, nil
}

func masterIndex(items []core.MasterItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// AddMasterItem appends a name to a list. Names are unique per list,
// ignoring case.
func (st *State) AddMasterItem(kind MasterKind, name string) (core.MasterItem, error) {
	list, err := st.masters.list(kind)
	if err != nil {
		return core.MasterItem{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.MasterItem{}, &core.ValidationError{Field: "name", Err: core.ErrEmptyName}
	}
	for _, it := range *list {
		if strings.EqualFold(it.Name, name) {
			return core.MasterItem{}, ErrDuplicateName
		}
	}
	item := core.MasterItem{ID: st.newID(), Name: name}
	*list = append(*list, item)
	return item, nil
}

// MasterUsages counts the rows and bills referencing an item.
func (st *State) MasterUsages(kind MasterKind, id string) (int, error) {
	list, err := st.masters.list(kind)
	if err != nil {
		return 0, err
	}
	i := masterIndex(*list, id)
	if i < 0 {
		return 0, ErrMasterNotFound
	}
	fields, types := masterFields(kind)
	return len(st.findRefs((*list)[i].Name, fields, types...)), nil
}

type masterSnapshot struct {
	Kind  MasterKind      `json:"kind"`
	Item  core.MasterItem `json:"item"`
	Index int             `json:"index"`
	Refs  []refChange     `json:"refs,omitempty"`

	// ReassignedTo is the replacement name, empty when cleared.
	ReassignedTo string `json:"reassignedTo,omitempty"`
}

// DeleteMasterItem removes an item from a list. References are reassigned
// to another item of the same list or cleared, per action.
func (st *State) DeleteMasterItem(kind MasterKind, id string, action ReferenceAction) (string, error) {
	list, err := st.masters.list(kind)
	if err != nil {
		return "", err
	}
	i := masterIndex(*list, id)
	if i < 0 {
		return "", ErrMasterNotFound
	}
	item := (*list)[i]
	fields, types := masterFields(kind)
	refs := st.findRefs(item.Name, fields, types...)
	replacement := ""
	if len(refs) > 0 {
		switch {
		case !action.chosen():
			return "", &ReferencedError{Kind: KindMaster, ID: id, Usages: len(refs)}
		case action.ReassignTo != "":
			j := masterIndex(*list, action.ReassignTo)
			if j < 0 || j == i {
				return "", ErrInvalidReassign
			}
			replacement = (*list)[j].Name
		}
	}
	entry, err := record(st, KindMaster, string(kind)+" \""+item.Name+"\"",
		masterSnapshot{Kind: kind, Item: item, Index: i, Refs: refs, ReassignedTo: replacement})
	if err != nil {
		return "", err
	}
	st.applyRefs(refs, replacement)
	*list = append((*list)[:i], (*list)[i+1:]...)
	st.history.push(entry)
	st.emit(Event{Kind: EventDeleted, EntityID: id, Label: entry.Label, Count: len(refs)})
	return entry.ID, nil
}

func restoreMaster(st *State, s masterSnapshot) error {
	list, err := st.masters.list(s.Kind)
	if err != nil {
		return err
	}
	if masterIndex(*list, s.Item.ID) >= 0 {
		return ErrDuplicateID
	}
	idx := s.Index
	if idx < 0 || idx > len(*list) {
		idx = len(*list)
	}
	*list = append(*list, core.MasterItem{})
	copy((*list)[idx+1:], (*list)[idx:])
	(*list)[idx] = s.Item
	st.restoreRefs(s.Refs, s.ReassignedTo, s.Item.Name)
	return nil
}

// registerKinds installs the restore capability for every deletable kind.
func registerKinds(h *History) {
	Register[baseSnapshot](h, KindBase, 1, JSONCodec[baseSnapshot]{}, restoreBase)
	Register[blockSnapshot](h, KindBlock, 1, JSONCodec[blockSnapshot]{}, restoreBlock)
	Register[bandSnapshot](h, KindBand, 1, JSONCodec[bandSnapshot]{}, restoreBand)
	Register[core.FixedBill](h, KindFixedBill, 1, JSONCodec[core.FixedBill]{}, restoreFixedBill)
	Register[core.PaySchedule](h, KindSchedule, 1, JSONCodec[core.PaySchedule]{}, restoreSchedule)
	Register[masterSnapshot](h, KindMaster, 1, JSONCodec[masterSnapshot]{}, restoreMaster)
}
