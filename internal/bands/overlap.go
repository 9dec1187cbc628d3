package bands

import (
	"sort"

	"budgetblocks/internal/core"
)

type span struct{ start, end int64 }

func key(b core.Band) span {
	return span{start: b.Start.Unix(), end: b.End.Unix()}
}

// Merge returns the generated bands whose exact (start, end) pair is not
// already present, in generation order. Orders continue after the highest
// existing order. IDs are left for the caller to assign.
func Merge(existing, generated []core.Band) []core.Band {
	seen := make(map[span]struct{}, len(existing)+len(generated))
	next := 0
	for _, b := range existing {
		seen[key(b)] = struct{}{}
		if b.Order >= next {
			next = b.Order + 1
		}
	}
	var added []core.Band
	for _, b := range generated {
		k := key(b)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		b.Order = next
		next++
		added = append(added, b)
	}
	return added
}

// Overlap names two bands that share at least one day.
type Overlap struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// Overlaps lists every overlapping pair among non-archived bands, ordered
// by start date. Overlap is reported, never prevented.
func Overlaps(all []core.Band) []Overlap {
	active := make([]core.Band, 0, len(all))
	for _, b := range all {
		if !b.Archived {
			active = append(active, b)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Start.Before(active[j].Start.Time)
	})
	var out []Overlap
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[j].Start.After(active[i].End.Time) {
				break
			}
			out = append(out, Overlap{First: active[i].ID, Second: active[j].ID})
		}
	}
	return out
}

// ForDate returns the first non-archived band containing d, by order.
func ForDate(all []core.Band, d core.Date) (core.Band, bool) {
	var (
		found core.Band
		ok    bool
	)
	for _, b := range all {
		if b.Archived || !b.Contains(d) {
			continue
		}
		if !ok || b.Order < found.Order {
			found, ok = b, true
		}
	}
	return found, ok
}

// BillDateInBand resolves a due day against the band's start month and
// then its end month, returning the first resolved date inside the band.
func BillDateInBand(start, end core.Date, due core.DueDay) (core.Date, bool) {
	for _, m := range []core.Date{start, end} {
		d := due.In(m.Year(), m.Month())
		if d.Within(start, end) {
			return d, true
		}
	}
	return core.Date{}, false
}
