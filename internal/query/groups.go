package query

import (
	"sort"

	"budgetblocks/internal/core"
)

// Group is the pay period view of one band: its visible blocks, or the
// unassigned blocks when Band is nil.
type Group struct {
	Band   *core.Band   `json:"band,omitempty"`
	Blocks []core.Block `json:"blocks"`
}

// GroupByBand buckets visible blocks under their bands, in band order.
// Bands without visible blocks are omitted unless they overlap the range.
// Unassigned blocks, and blocks whose band no longer exists, come last.
func GroupByBand(allBands []core.Band, visible []core.Block, r DateRange) []Group {
	ordered := append([]core.Band(nil), allBands...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].Start.Before(ordered[j].Start.Time)
	})
	byBand := make(map[string][]core.Block)
	known := make(map[string]bool, len(ordered))
	for _, b := range ordered {
		known[b.ID] = true
	}
	var loose []core.Block
	for _, blk := range visible {
		if blk.BandID == "" || !known[blk.BandID] {
			loose = append(loose, blk)
			continue
		}
		byBand[blk.BandID] = append(byBand[blk.BandID], blk)
	}

	var out []Group
	for i := range ordered {
		b := ordered[i]
		blocks := byBand[b.ID]
		inRange := !b.End.Before(r.From.Time) && !b.Start.After(r.To.Time)
		if len(blocks) == 0 && (b.Archived || !inRange) {
			continue
		}
		out = append(out, Group{Band: &b, Blocks: nonNil(blocks)})
	}
	if len(loose) > 0 {
		out = append(out, Group{Blocks: loose})
	}
	return out
}

func nonNil(b []core.Block) []core.Block {
	if b == nil {
		return []core.Block{}
	}
	return b
}
