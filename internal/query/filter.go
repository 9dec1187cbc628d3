// Package query derives the visible blocks and rows from the ledger state
// and the user's filter.
package query

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"budgetblocks/internal/core"
)

// Status selects rows by execution state.
type Status string

const (
	StatusAll      Status = "all"
	StatusExecuted Status = "executed"
	StatusPlanned  Status = "planned"
)

// Date range presets.
const (
	PresetThisMonth = "this-month"
	PresetLastMonth = "last-month"
	PresetNextMonth = "next-month"
	PresetThisYear  = "this-year"
	PresetBand      = "band"
	PresetCustom    = "custom"
)

// DateRange bounds block dates, both ends inclusive.
type DateRange struct {
	From   core.Date `json:"from"`
	To     core.Date `json:"to"`
	Preset string    `json:"preset,omitempty"`
}

// Filter is the user's query over blocks and rows.
type Filter struct {
	DateRange DateRange `json:"dateRange"`
	Owners    []string  `json:"owners,omitempty"`
	Accounts  []string  `json:"accounts,omitempty"`
	Types     []string  `json:"types,omitempty"`
	Status    Status    `json:"status"`
	Search    string    `json:"search,omitempty"`
}

// Default is the current calendar month with no other constraint.
func Default(now time.Time) Filter {
	r, _ := PresetRange(PresetThisMonth, now)
	return Filter{DateRange: r, Status: StatusAll}
}

// Reset returns the default filter; it exists so callers read as intent.
func Reset(now time.Time) Filter {
	return Default(now)
}

// PresetRange resolves a named preset relative to now.
func PresetRange(preset string, now time.Time) (DateRange, bool) {
	today := core.DateOf(now)
	first := today.FirstOfMonth()
	switch preset {
	case PresetThisMonth:
		return DateRange{From: first, To: first.LastOfMonth(), Preset: preset}, true
	case PresetLastMonth:
		prev := core.NewDate(first.Year(), first.Month()-1, 1)
		return DateRange{From: prev, To: prev.LastOfMonth(), Preset: preset}, true
	case PresetNextMonth:
		next := core.NewDate(first.Year(), first.Month()+1, 1)
		return DateRange{From: next, To: next.LastOfMonth(), Preset: preset}, true
	case PresetThisYear:
		return DateRange{
			From:   core.NewDate(today.Year(), time.January, 1),
			To:     core.NewDate(today.Year(), time.December, 31),
			Preset: preset,
		}, true
	}
	return DateRange{}, false
}

// BandRange is the date range of a band.
func BandRange(b core.Band) DateRange {
	return DateRange{From: b.Start, To: b.End, Preset: PresetBand}
}

// Normalize trims and sorts the list criteria, drops empties and fills in
// the status and date defaults.
func (f Filter) Normalize(now time.Time) Filter {
	f.Owners = cleanList(f.Owners)
	f.Accounts = cleanList(f.Accounts)
	f.Types = cleanList(f.Types)
	f.Search = strings.TrimSpace(f.Search)
	switch f.Status {
	case StatusExecuted, StatusPlanned:
	default:
		f.Status = StatusAll
	}
	if f.DateRange.From.IsZero() || f.DateRange.To.IsZero() {
		if r, ok := PresetRange(f.DateRange.Preset, now); ok {
			f.DateRange = r
		} else {
			f.DateRange = Default(now).DateRange
		}
	}
	if f.DateRange.To.Before(f.DateRange.From.Time) {
		f.DateRange.From, f.DateRange.To = f.DateRange.To, f.DateRange.From
	}
	return f
}

func cleanList(in []string) []string {
	out := core.NormalizeTags(in)
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// HasRowCriteria reports whether any non-date criterion is active.
func (f Filter) HasRowCriteria() bool {
	return len(f.Owners) > 0 || len(f.Accounts) > 0 || len(f.Types) > 0 ||
		(f.Status != "" && f.Status != StatusAll) || f.Search != ""
}

// MatchRow reports whether a row of blk satisfies every non-date criterion.
func (f Filter) MatchRow(blk core.Block, r core.Row) bool {
	if len(f.Owners) > 0 && !contains(f.Owners, r.Owner) {
		return false
	}
	if len(f.Accounts) > 0 && !contains(f.Accounts, r.FromBaseID) && !contains(f.Accounts, r.ToBaseID) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, string(blk.Type)) && !contains(f.Types, r.Type) {
		return false
	}
	switch f.Status {
	case StatusExecuted:
		if !r.Executed {
			return false
		}
	case StatusPlanned:
		if r.Executed {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(blk.Title), q) &&
			!strings.Contains(strings.ToLower(r.Source), q) &&
			!strings.Contains(strings.ToLower(r.Notes), q) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Visible returns the non-template blocks inside the date range that have at
// least one matching row, each carrying only its matching rows. Without row
// criteria every block in range is visible with all its rows. Blocks are
// ordered by date, then title.
func Visible(blocks []core.Block, f Filter) []core.Block {
	rowCriteria := f.HasRowCriteria()
	out := make([]core.Block, 0, len(blocks))
	for _, blk := range blocks {
		if blk.IsTemplate || !blk.Date.Within(f.DateRange.From, f.DateRange.To) {
			continue
		}
		if !rowCriteria {
			out = append(out, blk.Clone())
			continue
		}
		var rows []core.Row
		for _, r := range blk.Rows {
			if f.MatchRow(blk, r) {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			continue
		}
		vis := blk.Clone()
		vis.Rows = rows
		out = append(out, vis)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// Fingerprint identifies a normalized filter for memoization.
func (f Filter) Fingerprint() string {
	data, _ := json.Marshal(f)
	return string(data)
}
