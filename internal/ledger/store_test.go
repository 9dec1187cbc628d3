package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"budgetblocks/internal/core"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func TestStoreUpdateCommitsAndNotifies(t *testing.T) {
	store := NewStore(newTestState(t), nil)
	sink := &recordingSink{err: errors.New("broker down")}
	store.AddSink(sink)
	var seen []uint64
	store.OnChange(func(v uint64) { seen = append(seen, v) })
	ctx := context.Background()

	var from, to core.Base
	var blk core.Block
	v, err := store.Update(ctx, "seed", func(st *State) error {
		from = mustBase(t, st, "Checking", core.Checking, "100")
		to = mustBase(t, st, "Savings", core.Savings, "0")
		blk = mustBlock(t, st, core.Block{Type: core.Flow, Rows: []core.Row{{
			Owner: "Alex", FromBaseID: from.ID, ToBaseID: to.ID, Amount: dec("40"), Type: core.Transfer,
		}}})
		return nil
	})
	if err != nil || v != 1 {
		t.Fatalf("Update() = %d, %v", v, err)
	}

	// A failing sink is logged, never surfaced.
	v, err = store.Update(ctx, "execute", func(st *State) error {
		_, err := st.ExecuteRow(blk.ID, blk.Rows[0].ID)
		return err
	})
	if err != nil || v != 2 {
		t.Fatalf("Update(execute) = %d, %v", v, err)
	}
	if len(seen) != 2 || seen[1] != 2 {
		t.Errorf("OnChange saw %v, want [1 2]", seen)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != EventRowExecuted || len(sink.events[0].Deltas) != 2 {
		t.Errorf("sink events = %+v", sink.events)
	}
	if !sink.events[0].At.Equal(testNow) {
		t.Errorf("event time = %v, want %v", sink.events[0].At, testNow)
	}
}

func TestStoreFailedUpdateCommitsNothing(t *testing.T) {
	store := NewStore(newTestState(t), nil)
	sink := &recordingSink{}
	store.AddSink(sink)
	changes := 0
	store.OnChange(func(uint64) { changes++ })

	wantErr := errors.New("boom")
	v, err := store.Update(context.Background(), "fail", func(st *State) error {
		st.emit(Event{Kind: EventDeleted})
		return wantErr
	})
	if !errors.Is(err, wantErr) || v != 0 {
		t.Fatalf("Update() = %d, %v", v, err)
	}
	if changes != 0 || len(sink.events) != 0 {
		t.Errorf("failed update notified: changes=%d events=%d", changes, len(sink.events))
	}

	// Events from the failed action must not leak into the next one.
	if _, err := store.Update(context.Background(), "noop", func(*State) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if len(sink.events) != 0 {
		t.Errorf("stale events published: %+v", sink.events)
	}
}

func TestStoreUndoDelete(t *testing.T) {
	store := NewStore(newTestState(t), nil)
	ctx := context.Background()

	var histID string
	if _, err := store.Update(ctx, "seed", func(st *State) error {
		b := mustBase(t, st, "Vault", core.Vault, "10")
		var err error
		histID, err = st.DeleteBase(b.ID, ReferenceAction{})
		return err
	}); err != nil {
		t.Fatal(err)
	}

	if !store.UndoDelete(ctx, histID) {
		t.Fatal("UndoDelete() = false, want true")
	}
	if store.UndoDelete(ctx, histID) {
		t.Error("second UndoDelete() = true, want false")
	}
	if store.Version() != 2 {
		t.Errorf("Version() = %d, want 2", store.Version())
	}
}

func TestSnapshotImportRoundTrip(t *testing.T) {
	src := newTestState(t)
	checking := mustBase(t, src, "Checking", core.Checking, "500.25")
	band, err := src.CreateBand(core.Band{Title: "Feb", Start: core.NewDate(2026, 2, 1), End: core.NewDate(2026, 2, 28)})
	if err != nil {
		t.Fatal(err)
	}
	blk := mustBlock(t, src, core.Block{Type: core.Income, BandID: band.ID, Rows: []core.Row{{
		Owner: "Alex", ToBaseID: checking.ID, Amount: dec("10.10"),
	}}})
	if _, err := src.AddMasterItem(Owners, "Alex"); err != nil {
		t.Fatal(err)
	}
	spare := mustBase(t, src, "Spare", core.Savings, "0")
	if _, err := src.DeleteBase(spare.ID, ReferenceAction{}); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(src.Export())
	if err != nil {
		t.Fatal(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatal(err)
	}

	dst := newTestState(t)
	dropped, err := dst.Import(snap)
	if err != nil || dropped != 0 {
		t.Fatalf("Import() = %d, %v", dropped, err)
	}
	if got := mustJSON(t, dst.Export()); got != string(data) {
		t.Errorf("re-export differs:\n got %s\nwant %s", got, data)
	}
	got, err := dst.Block(blk.ID)
	if err != nil || !got.Rows[0].Amount.Equal(dec("10.10")) {
		t.Errorf("Block() = %+v, %v", got, err)
	}
	if err := dst.UndoDelete(dst.UndoHistory()[0].ID); err != nil {
		t.Errorf("imported history not restorable: %v", err)
	}
}

func TestImportRejects(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want error
	}{
		{"unknown version", Snapshot{Version: 99}, ErrUnsupportedSnapshot},
		{"duplicate base", Snapshot{Version: SnapshotVersion, Bases: []core.Base{
			{ID: "b", Name: "A", Type: core.Checking, Currency: "USD"},
			{ID: "b", Name: "B", Type: core.Checking, Currency: "USD"},
		}}, ErrDuplicateID},
		{"dangling band", Snapshot{Version: SnapshotVersion, Blocks: []core.Block{
			{ID: "k", Type: core.Flow, Title: "x", Date: core.NewDate(2026, 1, 1), BandID: "gone"},
		}}, ErrBandNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestState(t)
			mustBase(t, st, "Keep", core.Checking, "1")
			if _, err := st.Import(tt.snap); !errors.Is(err, tt.want) {
				t.Fatalf("Import() error = %v, want %v", err, tt.want)
			}
			if len(st.Bases()) != 1 {
				t.Error("rejected import changed the state")
			}
		})
	}
}

func TestImportDropsUnknownHistory(t *testing.T) {
	st := newTestState(t)
	dropped, err := st.Import(Snapshot{Version: SnapshotVersion, History: []HistoryEntry{
		{ID: "h1", Kind: "widget", Version: 1, Data: json.RawMessage(`{}`)},
		{ID: "h2", Kind: KindBand, Version: 99, Data: json.RawMessage(`{}`)},
	}})
	if err != nil || dropped != 2 {
		t.Fatalf("Import() = %d, %v, want 2 dropped", dropped, err)
	}
}

func TestSeedMastersIsIdempotent(t *testing.T) {
	st := newTestState(t)
	seed := Masters{
		Owners:    []core.MasterItem{{Name: "Alex"}, {Name: " alex "}},
		FlowTypes: []core.MasterItem{{Name: core.Transfer}, {Name: ""}},
	}
	if n := st.SeedMasters(seed); n != 2 {
		t.Errorf("SeedMasters() = %d, want 2", n)
	}
	if n := st.SeedMasters(seed); n != 0 {
		t.Errorf("second SeedMasters() = %d, want 0", n)
	}
}

func TestReorderBases(t *testing.T) {
	st := newTestState(t)
	a := mustBase(t, st, "A", core.Checking, "0")
	b := mustBase(t, st, "B", core.Savings, "0")

	if err := st.ReorderBases([]string{b.ID, a.ID}); err != nil {
		t.Fatal(err)
	}
	got := SortedBases(st.Bases())
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("order = %s, %s", got[0].Name, got[1].Name)
	}
	if err := st.ReorderBases([]string{"missing"}); !errors.Is(err, ErrBaseNotFound) {
		t.Errorf("ReorderBases(missing) error = %v", err)
	}
}

func TestImportAcceptsClearedReferences(t *testing.T) {
	tests := []struct {
		name  string
		clear func(t *testing.T, st *State) string
	}{
		{"base on income row", func(t *testing.T, st *State) string {
			a := mustBase(t, st, "Checking", core.Checking, "0")
			mustBlock(t, st, core.Block{Type: core.Income, Rows: []core.Row{{Owner: "Alex", ToBaseID: a.ID, Amount: dec("5")}}})
			id, err := st.DeleteBase(a.ID, ReferenceAction{Clear: true})
			if err != nil {
				t.Fatal(err)
			}
			return id
		}},
		{"base on bill and flow rows", func(t *testing.T, st *State) string {
			a := mustBase(t, st, "Checking", core.Checking, "0")
			b := mustBase(t, st, "Savings", core.Savings, "0")
			mustBlock(t, st, core.Block{Type: core.FixedBillBlock, Rows: []core.Row{{Owner: "Alex", FromBaseID: a.ID, Amount: dec("5")}}})
			mustBlock(t, st, core.Block{Type: core.Flow, Rows: []core.Row{{Owner: "Alex", FromBaseID: a.ID, ToBaseID: b.ID, Amount: dec("5"), Type: core.Transfer}}})
			id, err := st.DeleteBase(a.ID, ReferenceAction{Clear: true})
			if err != nil {
				t.Fatal(err)
			}
			return id
		}},
		{"owner", func(t *testing.T, st *State) string {
			alex, err := st.AddMasterItem(Owners, "Alex")
			if err != nil {
				t.Fatal(err)
			}
			a := mustBase(t, st, "Checking", core.Checking, "0")
			mustBlock(t, st, core.Block{Type: core.Income, Rows: []core.Row{{Owner: "Alex", ToBaseID: a.ID, Amount: dec("5")}}})
			id, err := st.DeleteMasterItem(Owners, alex.ID, ReferenceAction{Clear: true})
			if err != nil {
				t.Fatal(err)
			}
			return id
		}},
		{"flow type", func(t *testing.T, st *State) string {
			transfer, err := st.AddMasterItem(FlowTypes, core.Transfer)
			if err != nil {
				t.Fatal(err)
			}
			a := mustBase(t, st, "Checking", core.Checking, "0")
			mustBlock(t, st, core.Block{Type: core.Flow, Rows: []core.Row{{Owner: "Alex", FromBaseID: a.ID, Amount: dec("5"), Type: core.Transfer}}})
			id, err := st.DeleteMasterItem(FlowTypes, transfer.ID, ReferenceAction{Clear: true})
			if err != nil {
				t.Fatal(err)
			}
			return id
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestState(t)
			histID := tt.clear(t, src)

			data := mustJSON(t, src.Export())
			var snap Snapshot
			if err := json.Unmarshal([]byte(data), &snap); err != nil {
				t.Fatal(err)
			}
			dst := newTestState(t)
			if _, err := dst.Import(snap); err != nil {
				t.Fatalf("Import() of a cleared state error = %v", err)
			}
			if got := mustJSON(t, dst.Export()); got != data {
				t.Errorf("re-export differs:\n got %s\nwant %s", got, data)
			}
			if err := dst.UndoDelete(histID); err != nil {
				t.Errorf("UndoDelete() after import error = %v", err)
			}
		})
	}
}

func TestImportStillRejectsBrokenRows(t *testing.T) {
	st := newTestState(t)
	_, err := st.Import(Snapshot{Version: SnapshotVersion, Blocks: []core.Block{{
		ID: "k", Type: core.Income, Title: "Pay", Date: core.NewDate(2026, 1, 1),
		Rows: []core.Row{{ID: "r", FromBaseID: "x", Amount: dec("1")}},
	}}})
	if !errors.Is(err, core.ErrUnexpectedFromBase) {
		t.Fatalf("Import() error = %v, want ErrUnexpectedFromBase", err)
	}
}
