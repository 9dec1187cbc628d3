package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *ledger.Store {
	t.Helper()
	n := 0
	st := ledger.NewState(
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	return ledger.NewStore(st, nil)
}

func TestNewBandRollover_InvalidSpec(t *testing.T) {
	if _, err := NewBandRollover(newTestStore(t), "whenever", nil); err == nil {
		t.Fatal("NewBandRollover() should reject an invalid cron expression")
	}
}

func TestBandRollover_Next(t *testing.T) {
	r, err := NewBandRollover(newTestStore(t), "5 0 * * *", nil)
	if err != nil {
		t.Fatalf("NewBandRollover() error = %v", err)
	}
	want := time.Date(2026, 2, 11, 0, 5, 0, 0, time.UTC)
	if got := r.Next(testNow); !got.Equal(want) {
		t.Errorf("Next() = %v, want %v", got, want)
	}
}

func TestBandRollover_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r, err := NewBandRollover(store, "5 0 * * *", nil)
	if err != nil {
		t.Fatalf("NewBandRollover() error = %v", err)
	}

	t.Run("no schedules adds nothing", func(t *testing.T) {
		n, err := r.RunOnce(ctx)
		if err != nil || n != 0 {
			t.Fatalf("RunOnce() = %d, %v", n, err)
		}
		if store.Version() != 0 {
			t.Errorf("version = %d, want 0", store.Version())
		}
	})

	if _, err := store.Update(ctx, "schedule", func(st *ledger.State) error {
		_, err := st.SavePaySchedule(core.PaySchedule{Frequency: core.Monthly, Before: 1, After: 2})
		return err
	}); err != nil {
		t.Fatalf("SavePaySchedule() error = %v", err)
	}
	before := store.Version()

	t.Run("first pass adds the window", func(t *testing.T) {
		n, err := r.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		if n != 4 {
			t.Errorf("RunOnce() added %d bands, want 4", n)
		}
		if store.Version() != before+1 {
			t.Errorf("version = %d, want %d", store.Version(), before+1)
		}
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		n, err := r.RunOnce(ctx)
		if err != nil || n != 0 {
			t.Fatalf("RunOnce() = %d, %v", n, err)
		}
		if store.Version() != before+1 {
			t.Errorf("version moved to %d", store.Version())
		}
		var count int
		store.View(func(st *ledger.State) { count = len(st.Bands()) })
		if count != 4 {
			t.Errorf("bands = %d, want 4", count)
		}
	})
}

func TestBandRollover_RunStopsOnCancel(t *testing.T) {
	r, err := NewBandRollover(newTestStore(t), "@every 1h", nil)
	if err != nil {
		t.Fatalf("NewBandRollover() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
