// Package http exposes the ledger over a JSON API.
//
// This file implements utilities for parsing and validating HTTP request data:
// bounded JSON bodies, path variables and filter query strings.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"budgetblocks/internal/core"
	"budgetblocks/internal/query"
)

// MaxBodyBytes bounds request bodies. Imports carry a whole snapshot and
// get MaxImportBytes instead.
const (
	MaxBodyBytes   = 1 << 20
	MaxImportBytes = 32 << 20
)

var (
	errBadRequest = errors.New("malformed request")
	errEmptyBody  = fmt.Errorf("%w: empty body", errBadRequest)
)

// decodeJSON reads a single JSON value into v, rejecting unknown fields and
// trailing data.
func decodeJSON(r *http.Request, limit int64, v interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, limit+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", errBadRequest)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for bodies that may be omitted.
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := decodeJSON(r, MaxBodyBytes, v); err != nil && !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// listParam collects a repeatable parameter, also splitting comma lists.
func listParam(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseFilterQuery builds a filter from query parameters: from, to, preset,
// owner, account, type, status and q. It is not normalized.
func parseFilterQuery(q url.Values) (query.Filter, error) {
	var f query.Filter
	for _, p := range []struct {
		name string
		dst  *core.Date
	}{{"from", &f.DateRange.From}, {"to", &f.DateRange.To}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return query.Filter{}, &core.ValidationError{Field: p.name, Err: err}
		}
		*p.dst = d
	}
	f.DateRange.Preset = strings.TrimSpace(q.Get("preset"))
	if f.DateRange.Preset == "" && !f.DateRange.From.IsZero() && !f.DateRange.To.IsZero() {
		f.DateRange.Preset = query.PresetCustom
	}
	f.Owners = listParam(q, "owner")
	f.Accounts = listParam(q, "account")
	f.Types = listParam(q, "type")
	f.Status = query.Status(strings.TrimSpace(q.Get("status")))
	f.Search = q.Get("q")
	return f, nil
}

// hasFilterParams reports whether the query string carries any filter criterion.
func hasFilterParams(q url.Values) bool {
	for _, name := range []string{"from", "to", "preset", "owner", "account", "type", "status", "q"} {
		if _, ok := q[name]; ok {
			return true
		}
	}
	return false
}
