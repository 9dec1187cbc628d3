// Package seed loads the initial owner, category, vendor and flow type lists
// from a YAML file.
package seed

import (
	"bytes"
	"fmt"
	"os"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a seed file.
//
//	owners: [Alex, Sam]
//	categories: [Housing, Groceries]
//	vendors: [Landlord]
//	flow_types: [Transfer, Payment, Expense, Reimbursement]
type File struct {
	Owners     []string `yaml:"owners"`
	Categories []string `yaml:"categories"`
	Vendors    []string `yaml:"vendors"`
	FlowTypes  []string `yaml:"flow_types"`
}

// Load reads and parses a seed file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML seed data. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	if len(data) == 0 {
		return f, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f, nil
}

// Masters converts the file into master lists ready for State.SeedMasters.
func (f File) Masters() ledger.Masters {
	items := func(names []string) []core.MasterItem {
		out := make([]core.MasterItem, 0, len(names))
		for _, n := range names {
			out = append(out, core.MasterItem{Name: n})
		}
		return out
	}
	return ledger.Masters{
		Owners:     items(f.Owners),
		Categories: items(f.Categories),
		Vendors:    items(f.Vendors),
		FlowTypes:  items(f.FlowTypes),
	}
}

// Default is used when no seed file is configured: the four flow types.
func Default() File {
	return File{FlowTypes: []string{core.Transfer, core.Payment, core.Expense, core.Reimbursement}}
}
