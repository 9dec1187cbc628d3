package ledger

import "budgetblocks/internal/core"

// Reference fields a delete may reassign or clear.
const (
	refFrom     = "from"
	refTo       = "to"
	refOwner    = "owner"
	refCategory = "category"
	refSource   = "source"
	refType     = "type"
)

// refChange records one field that pointed at a deleted entity, so undo can
// point it back.
type refChange struct {
	BlockID     string `json:"blockId,omitempty"`
	RowID       string `json:"rowId,omitempty"`
	FixedBillID string `json:"fixedBillId,omitempty"`
	Field       string `json:"field"`
	Executed    bool   `json:"executed,omitempty"`
	WasActive   bool   `json:"wasActive,omitempty"`
}

func rowField(r *core.Row, field string) *string {
	switch field {
	case refFrom:
		return &r.FromBaseID
	case refTo:
		return &r.ToBaseID
	case refOwner:
		return &r.Owner
	case refCategory:
		return &r.Category
	case refSource:
		return &r.Source
	case refType:
		return &r.Type
	}
	return nil
}

func billField(f *core.FixedBill, field string) *string {
	switch field {
	case refFrom:
		return &f.FromBaseID
	case refOwner:
		return &f.Owner
	case refCategory:
		return &f.Category
	case refSource:
		return &f.Vendor
	}
	return nil
}

// findRefs lists every row and fixed bill field in fields equal to value.
// blockTypes, when non-empty, limits the rows searched.
func (st *State) findRefs(value string, fields []string, blockTypes ...core.BlockType) []refChange {
	var refs []refChange
	for _, blk := range st.blocks {
		if len(blockTypes) > 0 && !containsType(blockTypes, blk.Type) {
			continue
		}
		for i := range blk.Rows {
			r := &blk.Rows[i]
			for _, f := range fields {
				if p := rowField(r, f); p != nil && *p == value {
					refs = append(refs, refChange{BlockID: blk.ID, RowID: r.ID, Field: f, Executed: r.Executed})
				}
			}
		}
	}
	for i := range st.fixedBills {
		fb := &st.fixedBills[i]
		for _, f := range fields {
			if p := billField(fb, f); p != nil && *p == value {
				refs = append(refs, refChange{FixedBillID: fb.ID, Field: f, WasActive: fb.Active})
			}
		}
	}
	return refs
}

func containsType(types []core.BlockType, t core.BlockType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func (st *State) refTarget(ref refChange) (*string, *core.FixedBill) {
	if ref.FixedBillID != "" {
		i := st.fixedBillIndex(ref.FixedBillID)
		if i < 0 {
			return nil, nil
		}
		fb := &st.fixedBills[i]
		return billField(fb, ref.Field), fb
	}
	bi, ri, err := st.locateRow(ref.BlockID, ref.RowID)
	if err != nil {
		return nil, nil
	}
	return rowField(&st.blocks[bi].Rows[ri], ref.Field), nil
}

// applyRefs points every ref at value. A fixed bill whose source base is
// cleared is deactivated, since it can no longer be populated.
func (st *State) applyRefs(refs []refChange, value string) {
	for _, ref := range refs {
		p, fb := st.refTarget(ref)
		if p == nil {
			continue
		}
		*p = value
		if fb != nil && value == "" && ref.Field == refFrom {
			fb.Active = false
		}
	}
}

// restoreRefs points refs back at value. A field is only touched while it
// still holds applied, what the delete wrote there; later edits are kept.
func (st *State) restoreRefs(refs []refChange, applied, value string) {
	for _, ref := range refs {
		p, fb := st.refTarget(ref)
		if p == nil || *p != applied {
			continue
		}
		*p = value
		if fb != nil && ref.Field == refFrom {
			fb.Active = ref.WasActive
		}
	}
}
