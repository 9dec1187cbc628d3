package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/middleware/ratelimit"
	"budgetblocks/internal/query"
	"budgetblocks/internal/storage/memory"
)

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	store *ledger.Store
	mem   *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	n := 0
	st := ledger.NewState(
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)
	store := ledger.NewStore(st, nil)
	mem := memory.New()
	srv := NewServer(":0", Deps{
		Store:     store,
		Engine:    query.NewEngine(store, 16, time.Minute, nil),
		Prefs:     mem,
		Events:    mem,
		RateLimit: ratelimit.Config{RequestsPerMinute: 1000},
		Now:       func() time.Time { return testNow },
	})
	return &testEnv{srv: srv, store: store, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body %s)", v, err, rr.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedFlow creates two bases and a flow block moving 250.00 between them.
func (e *testEnv) seedFlow(t *testing.T) (from, to core.Base, blk core.Block) {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/bases", core.Base{Name: "Checking", Type: core.Checking, Balance: dec("1000")})
	expectStatus(t, rr, http.StatusCreated)
	from = decode[core.Base](t, rr)

	rr = e.do(t, http.MethodPost, "/api/bases", core.Base{Name: "Savings", Type: core.Savings, Balance: dec("0")})
	expectStatus(t, rr, http.StatusCreated)
	to = decode[core.Base](t, rr)

	rr = e.do(t, http.MethodPost, "/api/blocks", core.Block{
		Type:  core.Flow,
		Title: "Save",
		Date:  core.NewDate(2026, 2, 10),
		Rows: []core.Row{{
			Owner: "Alex", FromBaseID: from.ID, ToBaseID: to.ID,
			Amount: dec("250"), Type: core.Transfer, FlowMode: core.FlowFixed,
		}},
	})
	expectStatus(t, rr, http.StatusCreated)
	blk = decode[core.Block](t, rr)
	return from, to, blk
}

func (e *testEnv) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	var b core.Base
	e.store.View(func(st *ledger.State) { b, _ = st.Base(id) })
	return b.Balance
}

func TestHealthAndReady(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := e.do(t, http.MethodGet, path, nil)
		expectStatus(t, rr, http.StatusOK)
	}

	e.srv.ready = func(context.Context) error { return errors.New("db down") }
	rr := e.do(t, http.MethodGet, "/readyz", nil)
	expectStatus(t, rr, http.StatusServiceUnavailable)
}

func TestExecuteAndUndoExecute(t *testing.T) {
	e := newTestEnv(t)
	from, to, blk := e.seedFlow(t)
	rowPath := "/api/blocks/" + blk.ID + "/rows/" + blk.Rows[0].ID

	rr := e.do(t, http.MethodPost, rowPath+"/execute", nil)
	expectStatus(t, rr, http.StatusOK)
	res := decode[executionResult](t, rr)
	if len(res.Deltas) != 2 {
		t.Fatalf("deltas = %+v", res.Deltas)
	}
	if !res.KPIs.TotalCash.Equal(dec("1000")) {
		t.Errorf("totalCash = %s, want 1000", res.KPIs.TotalCash)
	}
	if got := e.balance(t, from.ID); !got.Equal(dec("750")) {
		t.Errorf("from balance = %s, want 750", got)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "ledger:changed") {
		t.Errorf("missing ledger:changed trigger")
	}

	rr = e.do(t, http.MethodPost, rowPath+"/execute", nil)
	expectStatus(t, rr, http.StatusConflict)

	rr = e.do(t, http.MethodPost, rowPath+"/undo-execute", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := e.balance(t, from.ID); !got.Equal(dec("1000")) {
		t.Errorf("from balance after undo = %s, want 1000", got)
	}
	if got := e.balance(t, to.ID); !got.IsZero() {
		t.Errorf("to balance after undo = %s, want 0", got)
	}

	rr = e.do(t, http.MethodPost, "/api/blocks/"+blk.ID+"/rows/missing/execute", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestDeleteBlockRequiresConfirmationAndUndo(t *testing.T) {
	e := newTestEnv(t)
	from, _, blk := e.seedFlow(t)
	e.do(t, http.MethodPost, "/api/blocks/"+blk.ID+"/rows/"+blk.Rows[0].ID+"/execute", nil)

	rr := e.do(t, http.MethodDelete, "/api/blocks/"+blk.ID, nil)
	expectStatus(t, rr, http.StatusPreconditionRequired)

	rr = e.do(t, http.MethodDelete, "/api/blocks/"+blk.ID+"?confirm=Save", nil)
	expectStatus(t, rr, http.StatusOK)
	res := decode[deleteResult](t, rr)
	if res.HistoryID == "" || len(res.Deltas) != 2 {
		t.Fatalf("delete result = %+v", res)
	}
	if got := e.balance(t, from.ID); !got.Equal(dec("1000")) {
		t.Errorf("balance after delete = %s, want 1000", got)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), res.HistoryID) {
		t.Errorf("undo trigger missing history id: %s", rr.Header().Get("HX-Trigger"))
	}

	rr = e.do(t, http.MethodGet, "/api/history", nil)
	expectStatus(t, rr, http.StatusOK)
	if entries := decode[[]ledger.HistoryEntry](t, rr); len(entries) != 1 {
		t.Fatalf("history = %d entries, want 1", len(entries))
	}

	rr = e.do(t, http.MethodPost, "/api/history/"+res.HistoryID+"/restore", nil)
	expectStatus(t, rr, http.StatusNoContent)
	rr = e.do(t, http.MethodGet, "/api/blocks/"+blk.ID, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = e.do(t, http.MethodPost, "/api/history/"+res.HistoryID+"/restore", nil)
	expectStatus(t, rr, http.StatusGone)
}

func TestDeleteReferencedBase(t *testing.T) {
	e := newTestEnv(t)
	from, to, _ := e.seedFlow(t)

	rr := e.do(t, http.MethodDelete, "/api/bases/"+from.ID, nil)
	expectStatus(t, rr, http.StatusConflict)
	if body := decode[ErrorBody](t, rr); body.Usages != 1 {
		t.Errorf("usages = %d, want 1", body.Usages)
	}

	rr = e.do(t, http.MethodDelete, "/api/bases/"+from.ID, ledger.ReferenceAction{ReassignTo: to.ID})
	expectStatus(t, rr, http.StatusOK)
}

func TestValidationErrors(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"base without name", http.MethodPost, "/api/bases", core.Base{Type: core.Checking}, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/bases", `{"name":"x","type":"Checking","bogus":1}`, http.StatusUnprocessableEntity},
		{"unknown master list", http.MethodPost, "/api/masters/colors", map[string]string{"name": "red"}, http.StatusNotFound},
		{"missing band", http.MethodGet, "/api/bands/nope/available", nil, http.StatusNotFound},
		{"bad schedule", http.MethodPost, "/api/schedules/generate", core.PaySchedule{Frequency: "hourly"}, http.StatusUnprocessableEntity},
		{"no route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/bases", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, rr, tt.want)
		})
	}
	if v := e.store.Version(); v != 0 {
		t.Errorf("rejected requests committed: version = %d", v)
	}
}

func TestGenerateBandsAndAvailable(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/schedules/preview", core.PaySchedule{Frequency: core.Monthly})
	expectStatus(t, rr, http.StatusOK)
	preview := decode[[]core.Band](t, rr)
	if len(preview) != core.DefaultPeriodsBefore+core.DefaultPeriodsAfter+1 {
		t.Fatalf("preview = %d bands", len(preview))
	}
	if e.store.Version() != 0 {
		t.Fatal("preview must not commit")
	}

	rr = e.do(t, http.MethodPost, "/api/schedules/generate", core.PaySchedule{Frequency: core.Monthly})
	expectStatus(t, rr, http.StatusOK)
	res := decode[generateResult](t, rr)
	if len(res.Added) != len(preview) || res.Schedule.ID == "" {
		t.Fatalf("generate = %d added, schedule %q", len(res.Added), res.Schedule.ID)
	}

	rr = e.do(t, http.MethodPost, "/api/schedules/generate", res.Schedule)
	expectStatus(t, rr, http.StatusOK)
	if again := decode[generateResult](t, rr); len(again.Added) != 0 {
		t.Errorf("second generate added %d bands, want 0", len(again.Added))
	}

	var feb core.Band
	for _, b := range res.Added {
		if b.Contains(core.NewDate(2026, 2, 10)) {
			feb = b
		}
	}
	if feb.ID == "" {
		t.Fatal("no band contains today")
	}

	from, _, blk := e.seedFlow(t)
	e.do(t, http.MethodPut, "/api/blocks/"+blk.ID+"/band", map[string]string{"bandId": feb.ID})
	e.do(t, http.MethodPost, "/api/blocks", core.Block{
		Type: core.Income, Title: "Pay", Date: core.NewDate(2026, 2, 1), BandID: feb.ID,
		Rows: []core.Row{{Owner: "Alex", ToBaseID: from.ID, Amount: dec("3000")}},
	})

	rr = e.do(t, http.MethodGet, "/api/bands/"+feb.ID+"/available", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[availableResult](t, rr); !got.Available.Equal(dec("2750")) {
		t.Errorf("available = %s, want 2750", got.Available)
	}
}

func TestViewUsesSavedFilter(t *testing.T) {
	e := newTestEnv(t)
	e.seedFlow(t)

	rr := e.do(t, http.MethodPut, "/api/filters", query.Filter{Status: query.StatusExecuted})
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), TriggerFilterChanged) {
		t.Errorf("missing filter trigger")
	}

	rr = e.do(t, http.MethodGet, "/api/view", nil)
	expectStatus(t, rr, http.StatusOK)
	if res := decode[query.Result](t, rr); len(res.Blocks) != 0 {
		t.Errorf("saved executed-only filter returned %d blocks", len(res.Blocks))
	}

	rr = e.do(t, http.MethodGet, "/api/view?from=2026-02-01&to=2026-02-28", nil)
	expectStatus(t, rr, http.StatusOK)
	if res := decode[query.Result](t, rr); len(res.Blocks) != 1 {
		t.Errorf("explicit range returned %d blocks, want 1", len(res.Blocks))
	}

	rr = e.do(t, http.MethodPost, "/api/filters/reset", nil)
	expectStatus(t, rr, http.StatusOK)
	if f := decode[query.Filter](t, rr); f.Status != query.StatusAll || f.DateRange.Preset != query.PresetThisMonth {
		t.Errorf("reset filter = %+v", f)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	src.seedFlow(t)

	rr := src.do(t, http.MethodGet, "/api/export", nil)
	expectStatus(t, rr, http.StatusOK)
	exported := rr.Body.String()

	dst := newTestEnv(t)
	rr = dst.do(t, http.MethodPost, "/api/import", exported)
	expectStatus(t, rr, http.StatusOK)

	rr = dst.do(t, http.MethodGet, "/api/blocks", nil)
	if blocks := decode[[]core.Block](t, rr); len(blocks) != 1 {
		t.Fatalf("imported %d blocks, want 1", len(blocks))
	}

	rr = dst.do(t, http.MethodPost, "/api/import", `{"version":99}`)
	expectStatus(t, rr, http.StatusUnprocessableEntity)
}

func TestEventsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for _, k := range []ledger.EventKind{ledger.EventRowExecuted, ledger.EventDeleted} {
		if err := e.mem.RecordEvent(ctx, ledger.Event{Kind: k, At: testNow}); err != nil {
			t.Fatal(err)
		}
	}

	rr := e.do(t, http.MethodGet, "/api/events?limit=1", nil)
	expectStatus(t, rr, http.StatusOK)
	if events := decode[[]ledger.Event](t, rr); len(events) != 1 || events[0].Kind != ledger.EventDeleted {
		t.Errorf("events = %+v", events)
	}

	rr = e.do(t, http.MethodGet, "/api/events?limit=zero", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/api/kpis", nil)
	expectStatus(t, rr, http.StatusOK)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("request id = %q", rr.Header().Get("X-Request-ID"))
	}

	rr = e.do(t, http.MethodGet, "/api/kpis?file=../etc/passwd", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestViewSearchTextIsNotFlagged(t *testing.T) {
	e := newTestEnv(t)
	for _, target := range []string{
		"/api/view?q=.env",
		"/api/view?q=javascript%3A",
		"/api/view?q=union+select",
	} {
		rr := e.do(t, http.MethodGet, target, nil)
		expectStatus(t, rr, http.StatusOK)
	}

	rr := e.do(t, http.MethodGet, "/api/view?q=rent&owner=1+union+select+1", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}
