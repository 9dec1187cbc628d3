package ledger

import (
	"github.com/shopspring/decimal"

	"budgetblocks/internal/core"
)

// applyRow moves the row's amount between its bases. sign is +1 to execute
// and -1 to reverse. Bases that no longer exist are skipped.
func (st *State) applyRow(r core.Row, sign int64) []core.BaseDelta {
	amt := r.Amount.Mul(decimal.NewFromInt(sign))
	var deltas []core.BaseDelta
	if r.FromBaseID != "" {
		if d, ok := st.adjustBalance(r.FromBaseID, amt.Neg()); ok {
			deltas = append(deltas, d)
		}
	}
	if r.ToBaseID != "" {
		if d, ok := st.adjustBalance(r.ToBaseID, amt); ok {
			deltas = append(deltas, d)
		}
	}
	return deltas
}

func (st *State) adjustBalance(baseID string, delta decimal.Decimal) (core.BaseDelta, bool) {
	i := st.baseIndex(baseID)
	if i < 0 {
		return core.BaseDelta{}, false
	}
	st.bases[i].Balance = st.bases[i].Balance.Add(delta)
	st.bases[i].UpdatedAt = st.now()
	return core.BaseDelta{BaseID: baseID, Delta: delta}, true
}

func (st *State) locateRow(blockID, rowID string) (bi, ri int, err error) {
	bi = st.blockIndex(blockID)
	if bi < 0 {
		return -1, -1, ErrBlockNotFound
	}
	ri = st.blocks[bi].RowIndex(rowID)
	if ri < 0 {
		return bi, -1, ErrRowNotFound
	}
	return bi, ri, nil
}

// ExecuteRow marks a row executed and applies its balance deltas.
func (st *State) ExecuteRow(blockID, rowID string) ([]core.BaseDelta, error) {
	bi, ri, err := st.locateRow(blockID, rowID)
	if err != nil {
		return nil, err
	}
	blk := &st.blocks[bi]
	if blk.IsTemplate {
		return nil, ErrTemplateRow
	}
	row := &blk.Rows[ri]
	if row.Executed {
		return nil, ErrAlreadyExecuted
	}
	row.Executed = true
	blk.UpdatedAt = st.now()
	deltas := st.applyRow(*row, 1)
	st.emit(Event{Kind: EventRowExecuted, BlockID: blockID, RowID: rowID, Deltas: deltas})
	return deltas, nil
}

// UndoExecuteRow clears the executed flag and reverses the row's deltas.
func (st *State) UndoExecuteRow(blockID, rowID string) ([]core.BaseDelta, error) {
	bi, ri, err := st.locateRow(blockID, rowID)
	if err != nil {
		return nil, err
	}
	blk := &st.blocks[bi]
	row := &blk.Rows[ri]
	if !row.Executed {
		return nil, ErrNotExecuted
	}
	row.Executed = false
	blk.UpdatedAt = st.now()
	deltas := st.applyRow(*row, -1)
	st.emit(Event{Kind: EventRowUnexecuted, BlockID: blockID, RowID: rowID, Deltas: deltas})
	return deltas, nil
}

type blockSnapshot struct {
	Block core.Block `json:"block"`
}

// DeleteBlock removes a block, reversing the deltas of its executed rows.
// A block with executed rows is deleted only when confirm equals its title.
func (st *State) DeleteBlock(blockID, confirm string) (string, []core.BaseDelta, error) {
	i := st.blockIndex(blockID)
	if i < 0 {
		return "", nil, ErrBlockNotFound
	}
	blk := st.blocks[i]
	if blk.HasExecutedRows() && confirm != blk.Title {
		return "", nil, ErrConfirmationRequired
	}
	entry, err := record(st, KindBlock, "Block \""+blk.Title+"\"", blockSnapshot{Block: blk.Clone()})
	if err != nil {
		return "", nil, err
	}

	var deltas []core.BaseDelta
	for _, r := range blk.Rows {
		if r.Executed {
			deltas = append(deltas, st.applyRow(r, -1)...)
		}
	}
	st.blocks = append(st.blocks[:i], st.blocks[i+1:]...)
	st.history.push(entry)
	st.emit(Event{Kind: EventDeleted, EntityID: blockID, BlockID: blockID, Deltas: deltas, Label: entry.Label})
	return entry.ID, deltas, nil
}

func restoreBlock(st *State, s blockSnapshot) error {
	if st.blockIndex(s.Block.ID) >= 0 {
		return ErrDuplicateID
	}
	blk := s.Block
	if blk.BandID != "" && st.bandIndex(blk.BandID) < 0 {
		blk.BandID = ""
	}
	for _, r := range blk.Rows {
		if r.Executed {
			st.applyRow(r, 1)
		}
	}
	st.blocks = append(st.blocks, blk)
	return nil
}
