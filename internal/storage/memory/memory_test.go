package memory

import (
	"context"
	"testing"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
)

func TestStore_SnapshotIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, found, _ := s.LoadSnapshot(ctx); found {
		t.Fatal("new store should be empty")
	}

	snap := ledger.Snapshot{Version: ledger.SnapshotVersion, Bases: []core.Base{{ID: "a", Name: "Checking", Type: core.Checking}}}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	snap.Bases[0].Name = "mutated"

	got, found, err := s.LoadSnapshot(ctx)
	if err != nil || !found {
		t.Fatalf("LoadSnapshot() = found %v, err %v", found, err)
	}
	if got.Bases[0].Name != "Checking" {
		t.Errorf("stored snapshot shares memory with caller: %q", got.Bases[0].Name)
	}
}

func TestStore_EventsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, k := range []ledger.EventKind{ledger.EventRowExecuted, ledger.EventDeleted, ledger.EventRestored} {
		s.RecordEvent(ctx, ledger.Event{Kind: k})
	}

	tests := []struct {
		limit int
		want  []ledger.EventKind
	}{
		{0, []ledger.EventKind{ledger.EventRestored, ledger.EventDeleted, ledger.EventRowExecuted}},
		{1, []ledger.EventKind{ledger.EventRestored}},
		{10, []ledger.EventKind{ledger.EventRestored, ledger.EventDeleted, ledger.EventRowExecuted}},
	}
	for _, tt := range tests {
		got, _ := s.ListEvents(ctx, tt.limit)
		if len(got) != len(tt.want) {
			t.Fatalf("ListEvents(%d) len = %d, want %d", tt.limit, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].Kind != tt.want[i] {
				t.Errorf("ListEvents(%d)[%d] = %s, want %s", tt.limit, i, got[i].Kind, tt.want[i])
			}
		}
	}
}

func TestStore_Preferences(t *testing.T) {
	s := New()
	ctx := context.Background()
	v := []byte("x")
	s.SetPreference(ctx, "k", v)
	v[0] = 'y'
	got, found, _ := s.GetPreference(ctx, "k")
	if !found || string(got) != "x" {
		t.Errorf("GetPreference() = %q, %v", got, found)
	}
}
