package ledger

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"budgetblocks/internal/bands"
	"budgetblocks/internal/core"
)

// ErrUnpriced is returned when a percent-mode row has nothing to be priced against.
var ErrUnpriced = errors.New("percent rows need an allocation basis with a positive amount")

// CreateBlock adds a block. Rows get ids, default to the block date and
// are saved unexecuted.
func (st *State) CreateBlock(b core.Block) (core.Block, error) {
	if b.ID == "" {
		b.ID = st.newID()
	} else if st.blockIndex(b.ID) >= 0 {
		return core.Block{}, ErrDuplicateID
	}
	now := st.now()
	b.CreatedAt = now
	return st.saveBlock(b, nil)
}

// UpdateBlock replaces a block. Executed rows must survive unchanged in the
// fields they lock.
func (st *State) UpdateBlock(b core.Block) (core.Block, error) {
	i := st.blockIndex(b.ID)
	if i < 0 {
		return core.Block{}, ErrBlockNotFound
	}
	prev := st.blocks[i].Clone()
	if b.Type != prev.Type && len(prev.Rows) > 0 {
		return core.Block{}, ErrTypeChange
	}
	b.CreatedAt = prev.CreatedAt
	return st.saveBlock(b, &prev)
}

// AddRow appends a row to a block.
func (st *State) AddRow(blockID string, r core.Row) (core.Block, error) {
	blk, err := st.Block(blockID)
	if err != nil {
		return core.Block{}, err
	}
	r.ID = ""
	blk.Rows = append(blk.Rows, r)
	return st.UpdateBlock(blk)
}

// UpdateRow replaces one row of a block.
func (st *State) UpdateRow(blockID string, r core.Row) (core.Block, error) {
	blk, err := st.Block(blockID)
	if err != nil {
		return core.Block{}, err
	}
	i := blk.RowIndex(r.ID)
	if i < 0 {
		return core.Block{}, ErrRowNotFound
	}
	blk.Rows[i] = r
	return st.UpdateBlock(blk)
}

// RemoveRow deletes an unexecuted row.
func (st *State) RemoveRow(blockID, rowID string) (core.Block, error) {
	blk, err := st.Block(blockID)
	if err != nil {
		return core.Block{}, err
	}
	i := blk.RowIndex(rowID)
	if i < 0 {
		return core.Block{}, ErrRowNotFound
	}
	blk.Rows = append(blk.Rows[:i], blk.Rows[i+1:]...)
	return st.UpdateBlock(blk)
}

// AssignBand moves a block into a band; an empty bandID unassigns it.
func (st *State) AssignBand(blockID, bandID string) (core.Block, error) {
	blk, err := st.Block(blockID)
	if err != nil {
		return core.Block{}, err
	}
	blk.BandID = bandID
	return st.UpdateBlock(blk)
}

func (st *State) saveBlock(b core.Block, prev *core.Block) (core.Block, error) {
	b.Title = strings.TrimSpace(b.Title)
	b.Tags = core.NormalizeTags(b.Tags)
	if !b.IsTemplate {
		b.Recurrence = ""
	}
	if b.BandID != "" && st.bandIndex(b.BandID) < 0 {
		return core.Block{}, ErrBandNotFound
	}
	if err := st.prepareRows(&b, prev); err != nil {
		return core.Block{}, err
	}
	if err := st.priceRows(&b, prev); err != nil {
		return core.Block{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Block{}, err
	}
	b.UpdatedAt = st.now()

	if prev == nil {
		st.blocks = append(st.blocks, b)
	} else {
		st.blocks[st.blockIndex(b.ID)] = b
	}
	return b.Clone(), nil
}

// prepareRows assigns ids and enforces the executed-row locks against prev.
func (st *State) prepareRows(b *core.Block, prev *core.Block) error {
	kept := make(map[string]struct{}, len(b.Rows))
	for i := range b.Rows {
		r := &b.Rows[i]
		r.Owner = strings.TrimSpace(r.Owner)
		r.Amount = r.Amount.Round(2)
		if r.Date.IsZero() {
			r.Date = b.Date
		}
		var old *core.Row
		if r.ID != "" && prev != nil {
			if j := prev.RowIndex(r.ID); j >= 0 {
				old = &prev.Rows[j]
			}
		}
		if old == nil {
			if r.Executed {
				return ErrExecutedOnSave
			}
			if r.ID == "" || rowIDTaken(b, r.ID, i) {
				r.ID = st.newID()
			}
			continue
		}
		kept[r.ID] = struct{}{}
		if r.Executed != old.Executed {
			return ErrExecutedOnSave
		}
		if old.Executed && old.LockedFieldsChanged(*r) {
			return ErrRowLocked
		}
	}
	if prev != nil {
		for _, r := range prev.Rows {
			if _, ok := kept[r.ID]; !ok && r.Executed {
				return ErrRowLocked
			}
		}
	}
	return nil
}

func rowIDTaken(b *core.Block, id string, self int) bool {
	for i, r := range b.Rows {
		if i != self && r.ID == id {
			return true
		}
	}
	return false
}

// bandIncome totals the income rows of every block in the band.
func (st *State) bandIncome(bandID string) decimal.Decimal {
	total := decimal.Zero
	for _, blk := range st.blocks {
		if blk.IsTemplate || blk.BandID != bandID || blk.Type != core.Income {
			continue
		}
		for _, r := range blk.Rows {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func (st *State) basisAmount(b core.Block) (decimal.Decimal, bool) {
	ab := b.AllocationBasis
	switch {
	case ab != nil && ab.Kind == core.BasisFixed:
		return ab.Amount, true
	case b.BandID != "" && (ab == nil || ab.Kind == core.BasisBandIncome):
		return st.bandIncome(b.BandID), true
	}
	return decimal.Zero, false
}

// priceRows freezes the amount of percent-mode flow rows that are new,
// unpriced or had their percent changed. Saved amounts are otherwise kept.
func (st *State) priceRows(b *core.Block, prev *core.Block) error {
	if b.Type != core.Flow {
		return nil
	}
	basis, ok := st.basisAmount(*b)
	for i := range b.Rows {
		r := &b.Rows[i]
		if r.FlowMode != core.FlowPercent || r.FlowValue == nil || r.Executed {
			continue
		}
		if !needsPricing(*r, prev) {
			continue
		}
		if ok {
			r.Amount = core.FlowRow{Value: *r.FlowValue}.PercentOf(basis)
		}
		if !b.IsTemplate && !r.Amount.IsPositive() {
			return &core.ValidationError{Field: "allocationBasis", Err: ErrUnpriced}
		}
	}
	return nil
}

func needsPricing(r core.Row, prev *core.Block) bool {
	if !r.Amount.IsPositive() || prev == nil {
		return true
	}
	j := prev.RowIndex(r.ID)
	if j < 0 {
		return true
	}
	old := prev.Rows[j]
	return old.FlowValue == nil || !old.FlowValue.Equal(*r.FlowValue)
}

// CloneTemplate instantiates a library template as a new block with fresh
// ids. A zero date defaults to the band start, or today without a band.
func (st *State) CloneTemplate(templateID, bandID string, date core.Date) (core.Block, error) {
	i := st.blockIndex(templateID)
	if i < 0 {
		return core.Block{}, ErrBlockNotFound
	}
	tmpl := st.blocks[i].Clone()
	if !tmpl.IsTemplate {
		return core.Block{}, ErrNotTemplate
	}
	if date.IsZero() {
		date = st.today()
		if bandID != "" {
			bi := st.bandIndex(bandID)
			if bi < 0 {
				return core.Block{}, ErrBandNotFound
			}
			date = st.bands[bi].Start
		}
	}
	blk := tmpl
	blk.ID = ""
	blk.IsTemplate = false
	blk.Recurrence = ""
	blk.BandID = bandID
	blk.Date = date
	for j := range blk.Rows {
		r := &blk.Rows[j]
		r.ID = ""
		r.Executed = false
		r.Date = date
		if r.FlowMode == core.FlowPercent {
			r.Amount = decimal.Zero
		}
	}
	return st.CreateBlock(blk)
}

// AvailableToAllocate is band income minus the fixed bill and flow rows
// assigned to the band. It is derived on every call.
func (st *State) AvailableToAllocate(bandID string) (decimal.Decimal, error) {
	if st.bandIndex(bandID) < 0 {
		return decimal.Zero, ErrBandNotFound
	}
	total := decimal.Zero
	for _, blk := range st.blocks {
		if blk.IsTemplate || blk.BandID != bandID {
			continue
		}
		for _, r := range blk.Rows {
			if blk.Type == core.Income {
				total = total.Add(r.Amount)
			} else {
				total = total.Sub(r.Amount)
			}
		}
	}
	return total, nil
}

// PopulateFixedBills creates one Fixed Bill block in the band with a row for
// every active bill whose due date resolves inside it.
func (st *State) PopulateFixedBills(bandID string) (core.Block, error) {
	bi := st.bandIndex(bandID)
	if bi < 0 {
		return core.Block{}, ErrBandNotFound
	}
	band := st.bands[bi]
	var rows []core.Row
	for _, fb := range st.fixedBills {
		if !fb.Active {
			continue
		}
		due, ok := bands.BillDateInBand(band.Start, band.End, fb.DueDay)
		if !ok {
			continue
		}
		r := core.Row{
			Date:       due,
			Owner:      fb.Owner,
			Source:     fb.Vendor,
			FromBaseID: fb.FromBaseID,
			Amount:     fb.Amount,
			Category:   fb.Category,
		}
		if fb.Autopay {
			r.Notes = "Autopay"
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return core.Block{}, ErrNothingToPopulate
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date.Time) })
	return st.CreateBlock(core.Block{
		Type:   core.FixedBillBlock,
		Title:  "Fixed Bills: " + band.Title,
		Date:   band.Start,
		BandID: band.ID,
		Rows:   rows,
	})
}
