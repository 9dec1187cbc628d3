package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
)

func TestResponseBuilder_JSONBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		JSON(map[string]string{"id": "b1"}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"id":"b1"}` {
		t.Errorf("Body = %q", got)
	}
}

func TestResponseBuilder_EmptyBodyIsNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Write(w)
	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		TriggerLedgerChanged(7).
		TriggerSuccessNotification("Row executed").
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if trigger == "" {
		t.Fatal("HX-Trigger header not set")
	}
	for _, part := range []string{
		`"ledger:changed"`,
		`"version":7`,
		`"show-notification"`,
		`"type":"success"`,
		`"message":"Row executed"`,
	} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %q: %s", part, trigger)
		}
	}
	if got := w.Header().Get(VersionHeader); got != "7" {
		t.Errorf("%s = %q, want 7", VersionHeader, got)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
		wantUsages int
	}{
		{"validation", &core.ValidationError{Field: "title", Err: core.ErrEmptyTitle}, http.StatusUnprocessableEntity, "title", 0},
		{"not found", ledger.ErrBlockNotFound, http.StatusNotFound, "", 0},
		{"wrapped not found", fmt.Errorf("block x: %w", ledger.ErrBandNotFound), http.StatusNotFound, "", 0},
		{"referenced", &ledger.ReferencedError{Kind: ledger.KindBase, ID: "b1", Usages: 3}, http.StatusConflict, "", 3},
		{"confirmation", ledger.ErrConfirmationRequired, http.StatusPreconditionRequired, "", 0},
		{"undo unavailable", ledger.ErrUndoUnavailable, http.StatusGone, "", 0},
		{"already executed", ledger.ErrAlreadyExecuted, http.StatusConflict, "", 0},
		{"malformed body", errBadRequest, http.StatusUnprocessableEntity, "", 0},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			errorResponse(tt.err).Write(w)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Field != tt.wantField || body.Usages != tt.wantUsages {
				t.Errorf("body = %+v", body)
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(body.Error, "disk") {
				t.Errorf("internal error leaked to client: %q", body.Error)
			}
			if !strings.Contains(w.Header().Get("HX-Trigger"), `"type":"error"`) {
				t.Errorf("missing error notification: %s", w.Header().Get("HX-Trigger"))
			}
		})
	}
}
