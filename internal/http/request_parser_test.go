package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"budgetblocks/internal/core"
	"budgetblocks/internal/query"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"valid", `{"name":"Checking"}`, nil},
		{"empty", ``, errEmptyBody},
		{"unknown field", `{"name":"x","extra":1}`, errBadRequest},
		{"trailing data", `{"name":"x"} {"name":"y"}`, errBadRequest},
		{"not json", `name=x`, errBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(r, MaxBodyBytes, &p)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				if p.Name != "Checking" {
					t.Errorf("Name = %q", p.Name)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("decodeJSON() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON_BodyLimit(t *testing.T) {
	body := `{"name":"` + strings.Repeat("x", 64) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var p struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, 16, &p); !errors.Is(err, errBadRequest) {
		t.Errorf("decodeJSON() over limit error = %v", err)
	}
}

func TestDecodeOptionalJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/", nil)
	var v struct{ Clear bool }
	if err := decodeOptionalJSON(r, &v); err != nil {
		t.Errorf("decodeOptionalJSON() on empty body error = %v", err)
	}
}

func TestParseFilterQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    query.Filter
		wantErr bool
	}{
		{
			name:  "custom range and lists",
			query: "from=2026-02-01&to=2026-02-28&owner=Alex,Sam&owner=Jo&type=Flow&status=planned&q=rent",
			want: query.Filter{
				DateRange: query.DateRange{
					From:   core.NewDate(2026, 2, 1),
					To:     core.NewDate(2026, 2, 28),
					Preset: query.PresetCustom,
				},
				Owners: []string{"Alex", "Sam", "Jo"},
				Types:  []string{"Flow"},
				Status: query.StatusPlanned,
				Search: "rent",
			},
		},
		{
			name:  "preset only",
			query: "preset=last-month&account=b1",
			want: query.Filter{
				DateRange: query.DateRange{Preset: query.PresetLastMonth},
				Accounts:  []string{"b1"},
			},
		},
		{
			name:    "bad date",
			query:   "from=2026-13-01",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := parseFilterQuery(q)
			if tt.wantErr {
				if !core.IsValidation(err) {
					t.Fatalf("parseFilterQuery() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFilterQuery() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseFilterQuery() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHasFilterParams(t *testing.T) {
	if hasFilterParams(url.Values{"limit": {"3"}}) {
		t.Error("unrelated params are not filter params")
	}
	if !hasFilterParams(url.Values{"status": {"executed"}}) {
		t.Error("status is a filter param")
	}
}
