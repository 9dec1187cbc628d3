package ledger

import (
	"errors"
	"testing"

	"budgetblocks/internal/core"
)

func TestUndoRestoresOriginal(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, st *State) (id string, get func() any)
		delete func(st *State, id string) (string, error)
	}{
		{
			name: "base",
			setup: func(t *testing.T, st *State) (string, func() any) {
				b := mustBase(t, st, "Checking", core.Checking, "12.34")
				return b.ID, func() any { v, _ := st.Base(b.ID); return v }
			},
			delete: func(st *State, id string) (string, error) { return st.DeleteBase(id, ReferenceAction{}) },
		},
		{
			name: "band",
			setup: func(t *testing.T, st *State) (string, func() any) {
				b, err := st.CreateBand(core.Band{Title: "Feb", Start: core.NewDate(2026, 2, 1), End: core.NewDate(2026, 2, 28)})
				if err != nil {
					t.Fatalf("CreateBand error: %v", err)
				}
				return b.ID, func() any { v, _ := st.Band(b.ID); return v }
			},
			delete: func(st *State, id string) (string, error) { return st.DeleteBand(id) },
		},
		{
			name: "fixed bill",
			setup: func(t *testing.T, st *State) (string, func() any) {
				f, err := st.CreateFixedBill(core.FixedBill{Owner: "Alex", Vendor: "Power Co", FromBaseID: "b", Amount: dec("80"), DueDay: core.LastDay, Active: true})
				if err != nil {
					t.Fatalf("CreateFixedBill error: %v", err)
				}
				return f.ID, func() any {
					for _, v := range st.FixedBills() {
						if v.ID == f.ID {
							return v
						}
					}
					return nil
				}
			},
			delete: func(st *State, id string) (string, error) { return st.DeleteFixedBill(id) },
		},
		{
			name: "block",
			setup: func(t *testing.T, st *State) (string, func() any) {
				a := mustBase(t, st, "Checking", core.Checking, "0")
				b := mustBlock(t, st, core.Block{Type: core.Income, Tags: []string{"pay"}, Rows: []core.Row{{Owner: "Alex", ToBaseID: a.ID, Amount: dec("10")}}})
				return b.ID, func() any { v, _ := st.Block(b.ID); return v }
			},
			delete: func(st *State, id string) (string, error) {
				h, _, err := st.DeleteBlock(id, "")
				return h, err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestState(t)
			id, get := tt.setup(t, st)
			before := mustJSON(t, get())

			histID, err := tt.delete(st, id)
			if err != nil {
				t.Fatalf("delete error: %v", err)
			}
			if st.history.Len() != 1 {
				t.Fatalf("expected one history entry")
			}
			if err := st.UndoDelete(histID); err != nil {
				t.Fatalf("UndoDelete error: %v", err)
			}
			if after := mustJSON(t, get()); after != before {
				t.Fatalf("restored entity differs:\n got %s\nwant %s", after, before)
			}
			if st.history.Len() != 0 {
				t.Fatalf("entry should leave the history after restore")
			}
			if err := st.UndoDelete(histID); !errors.Is(err, ErrUndoUnavailable) {
				t.Fatalf("second undo should fail, got %v", err)
			}
		})
	}
}

func TestUndoAfterClear(t *testing.T) {
	st := newTestState(t)
	b := mustBase(t, st, "Checking", core.Checking, "1")
	histID, err := st.DeleteBase(b.ID, ReferenceAction{})
	if err != nil {
		t.Fatalf("DeleteBase error: %v", err)
	}
	st.ClearUndoHistory()
	if err := st.UndoDelete(histID); !errors.Is(err, ErrUndoUnavailable) {
		t.Fatalf("expected ErrUndoUnavailable, got %v", err)
	}
}

func TestUndoIDCollisionKeepsEntry(t *testing.T) {
	st := newTestState(t)
	b := mustBase(t, st, "Checking", core.Checking, "1")
	histID, err := st.DeleteBase(b.ID, ReferenceAction{})
	if err != nil {
		t.Fatalf("DeleteBase error: %v", err)
	}
	if _, err := st.CreateBase(core.Base{ID: b.ID, Name: "Impostor", Type: core.Checking}); err != nil {
		t.Fatalf("CreateBase error: %v", err)
	}
	if err := st.UndoDelete(histID); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if st.history.Len() != 1 {
		t.Fatalf("failed restore must keep the entry")
	}
}

func TestHistoryLimit(t *testing.T) {
	st := newTestState(t, WithHistoryLimit(2))
	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		b := mustBase(t, st, name, core.Checking, "0")
		h, err := st.DeleteBase(b.ID, ReferenceAction{})
		if err != nil {
			t.Fatalf("DeleteBase error: %v", err)
		}
		ids = append(ids, h)
	}
	entries := st.UndoHistory()
	if len(entries) != 2 || entries[0].ID != ids[2] || entries[1].ID != ids[1] {
		t.Fatalf("expected the two newest entries, got %+v", entries)
	}
	if err := st.UndoDelete(ids[0]); !errors.Is(err, ErrUndoUnavailable) {
		t.Fatalf("oldest entry should be dropped, got %v", err)
	}
}

func TestDeleteBaseReferences(t *testing.T) {
	setup := func(t *testing.T) (*State, core.Base, core.Base, core.Block) {
		st := newTestState(t)
		a := mustBase(t, st, "Checking", core.Checking, "100")
		b := mustBase(t, st, "Savings", core.Savings, "0")
		blk := mustBlock(t, st, core.Block{Type: core.Flow, Rows: []core.Row{
			{Owner: "Alex", FromBaseID: a.ID, ToBaseID: b.ID, Type: core.Transfer, Amount: dec("10")},
			{Owner: "Alex", FromBaseID: a.ID, Type: core.Expense, Amount: dec("5")},
		}})
		return st, a, b, blk
	}

	t.Run("unreferenced base deletes", func(t *testing.T) {
		st, _, _, _ := setup(t)
		c := mustBase(t, st, "Spare", core.Checking, "0")
		if _, err := st.DeleteBase(c.ID, ReferenceAction{}); err != nil {
			t.Fatalf("DeleteBase error: %v", err)
		}
	})

	t.Run("referenced base is refused", func(t *testing.T) {
		st, a, _, _ := setup(t)
		_, err := st.DeleteBase(a.ID, ReferenceAction{})
		var re *ReferencedError
		if !errors.As(err, &re) || !errors.Is(err, ErrReferenced) {
			t.Fatalf("expected ReferencedError, got %v", err)
		}
		if re.Usages != 2 {
			t.Fatalf("usages = %d, want 2", re.Usages)
		}
		if _, err := st.Base(a.ID); err != nil {
			t.Fatalf("refused delete must keep the base")
		}
	})

	t.Run("reassign moves rows and undo restores them", func(t *testing.T) {
		st, a, b, blk := setup(t)
		c := mustBase(t, st, "New Checking", core.Checking, "0")
		histID, err := st.DeleteBase(a.ID, ReferenceAction{ReassignTo: c.ID})
		if err != nil {
			t.Fatalf("DeleteBase error: %v", err)
		}
		got, _ := st.Block(blk.ID)
		if got.Rows[0].FromBaseID != c.ID || got.Rows[1].FromBaseID != c.ID || got.Rows[0].ToBaseID != b.ID {
			t.Fatalf("rows not reassigned: %+v", got.Rows)
		}
		if err := st.UndoDelete(histID); err != nil {
			t.Fatalf("UndoDelete error: %v", err)
		}
		got, _ = st.Block(blk.ID)
		if got.Rows[0].FromBaseID != a.ID || got.Rows[1].FromBaseID != a.ID {
			t.Fatalf("undo should point rows back: %+v", got.Rows)
		}
	})

	t.Run("undo keeps rows edited after the delete", func(t *testing.T) {
		st, a, b, blk := setup(t)
		c := mustBase(t, st, "New Checking", core.Checking, "0")
		histID, err := st.DeleteBase(a.ID, ReferenceAction{ReassignTo: c.ID})
		if err != nil {
			t.Fatalf("DeleteBase error: %v", err)
		}
		row := blk.Rows[1]
		row.FromBaseID = b.ID
		if _, err := st.UpdateRow(blk.ID, row); err != nil {
			t.Fatalf("UpdateRow error: %v", err)
		}
		if err := st.UndoDelete(histID); err != nil {
			t.Fatalf("UndoDelete error: %v", err)
		}
		got, _ := st.Block(blk.ID)
		if got.Rows[0].FromBaseID != a.ID {
			t.Fatalf("untouched row should point back at the base: %+v", got.Rows[0])
		}
		if got.Rows[1].FromBaseID != b.ID {
			t.Fatalf("edited row lost its edit: %+v", got.Rows[1])
		}
	})

	t.Run("reassigning executed rows is refused", func(t *testing.T) {
		st, a, b, blk := setup(t)
		if _, err := st.ExecuteRow(blk.ID, blk.Rows[0].ID); err != nil {
			t.Fatalf("ExecuteRow error: %v", err)
		}
		if _, err := st.DeleteBase(a.ID, ReferenceAction{ReassignTo: b.ID}); !errors.Is(err, ErrExecutedReference) {
			t.Fatalf("expected ErrExecutedReference, got %v", err)
		}
		if _, err := st.DeleteBase(a.ID, ReferenceAction{ReassignTo: a.ID}); !errors.Is(err, ErrInvalidReassign) {
			t.Fatalf("expected ErrInvalidReassign, got %v", err)
		}
		if _, err := st.DeleteBase(a.ID, ReferenceAction{Clear: true}); err != nil {
			t.Fatalf("clear should be allowed, got %v", err)
		}
	})

	t.Run("clear deactivates fixed bills", func(t *testing.T) {
		st, a, _, _ := setup(t)
		f, err := st.CreateFixedBill(core.FixedBill{Owner: "Alex", Vendor: "Water", FromBaseID: a.ID, Amount: dec("20"), DueDay: core.DueDay{Day: 3}, Active: true})
		if err != nil {
			t.Fatalf("CreateFixedBill error: %v", err)
		}
		histID, err := st.DeleteBase(a.ID, ReferenceAction{Clear: true})
		if err != nil {
			t.Fatalf("DeleteBase error: %v", err)
		}
		bill := st.FixedBills()[0]
		if bill.FromBaseID != "" || bill.Active {
			t.Fatalf("bill should be cleared and inactive: %+v", bill)
		}
		if err := st.UndoDelete(histID); err != nil {
			t.Fatalf("UndoDelete error: %v", err)
		}
		bill = st.FixedBills()[0]
		if bill.FromBaseID != a.ID || !bill.Active || bill.ID != f.ID {
			t.Fatalf("bill not restored: %+v", bill)
		}
	})
}

func TestDeleteMasterItem(t *testing.T) {
	st := newTestState(t)
	alex, _ := st.AddMasterItem(Owners, "Alex")
	sam, _ := st.AddMasterItem(Owners, "Sam")
	if _, err := st.AddMasterItem(Owners, "alex"); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
	a := mustBase(t, st, "Checking", core.Checking, "0")
	blk := mustBlock(t, st, core.Block{Type: core.Income, Rows: []core.Row{{Owner: "Alex", ToBaseID: a.ID, Amount: dec("1")}}})

	if n, _ := st.MasterUsages(Owners, alex.ID); n != 1 {
		t.Fatalf("usages = %d, want 1", n)
	}
	if _, err := st.DeleteMasterItem(Owners, alex.ID, ReferenceAction{}); !errors.Is(err, ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	histID, err := st.DeleteMasterItem(Owners, alex.ID, ReferenceAction{ReassignTo: sam.ID})
	if err != nil {
		t.Fatalf("DeleteMasterItem error: %v", err)
	}
	got, _ := st.Block(blk.ID)
	if got.Rows[0].Owner != "Sam" {
		t.Fatalf("owner not reassigned: %q", got.Rows[0].Owner)
	}
	if err := st.UndoDelete(histID); err != nil {
		t.Fatalf("UndoDelete error: %v", err)
	}
	m := st.Masters()
	if len(m.Owners) != 2 || m.Owners[0].ID != alex.ID {
		t.Fatalf("owner not restored in place: %+v", m.Owners)
	}
	got, _ = st.Block(blk.ID)
	if got.Rows[0].Owner != "Alex" {
		t.Fatalf("owner reference not restored: %q", got.Rows[0].Owner)
	}
	if _, err := st.AddMasterItem("colors", "red"); !errors.Is(err, ErrUnknownMasterKind) {
		t.Fatalf("expected ErrUnknownMasterKind, got %v", err)
	}
}

func TestUndoMasterDeleteKeepsLaterEdits(t *testing.T) {
	tests := []struct {
		name   string
		action func(sam core.MasterItem) ReferenceAction
	}{
		{"reassign", func(sam core.MasterItem) ReferenceAction { return ReferenceAction{ReassignTo: sam.ID} }},
		{"clear", func(core.MasterItem) ReferenceAction { return ReferenceAction{Clear: true} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestState(t)
			alex, _ := st.AddMasterItem(Owners, "Alex")
			sam, _ := st.AddMasterItem(Owners, "Sam")
			if _, err := st.AddMasterItem(Owners, "Kim"); err != nil {
				t.Fatalf("AddMasterItem error: %v", err)
			}
			a := mustBase(t, st, "Checking", core.Checking, "0")
			blk := mustBlock(t, st, core.Block{Type: core.Income, Rows: []core.Row{
				{Owner: "Alex", ToBaseID: a.ID, Amount: dec("1")},
				{Owner: "Alex", ToBaseID: a.ID, Amount: dec("2")},
			}})

			histID, err := st.DeleteMasterItem(Owners, alex.ID, tt.action(sam))
			if err != nil {
				t.Fatalf("DeleteMasterItem error: %v", err)
			}
			// Set directly: with a cleared sibling row the block would not pass UpdateRow.
			st.blocks[st.blockIndex(blk.ID)].Rows[1].Owner = "Kim"

			if err := st.UndoDelete(histID); err != nil {
				t.Fatalf("UndoDelete error: %v", err)
			}
			got, _ := st.Block(blk.ID)
			if got.Rows[0].Owner != "Alex" || got.Rows[1].Owner != "Kim" {
				t.Fatalf("owners = %q, %q; want Alex, Kim", got.Rows[0].Owner, got.Rows[1].Owner)
			}
		})
	}
}

func TestDeleteBandUnassignsBlocks(t *testing.T) {
	st := newTestState(t)
	band, err := st.CreateBand(core.Band{Title: "Feb", Start: core.NewDate(2026, 2, 1), End: core.NewDate(2026, 2, 28)})
	if err != nil {
		t.Fatalf("CreateBand error: %v", err)
	}
	a := mustBase(t, st, "Checking", core.Checking, "0")
	blk := mustBlock(t, st, core.Block{Type: core.Income, BandID: band.ID, Rows: []core.Row{{Owner: "Alex", ToBaseID: a.ID, Amount: dec("1")}}})

	histID, err := st.DeleteBand(band.ID)
	if err != nil {
		t.Fatalf("DeleteBand error: %v", err)
	}
	if got, _ := st.Block(blk.ID); got.BandID != "" {
		t.Fatalf("block should be unassigned")
	}
	if err := st.UndoDelete(histID); err != nil {
		t.Fatalf("UndoDelete error: %v", err)
	}
	if got, _ := st.Block(blk.ID); got.BandID != band.ID {
		t.Fatalf("block should be reassigned on undo")
	}
}
