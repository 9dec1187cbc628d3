package query

import (
	"encoding/json"
	"time"
)

// PrefsKey is the preference key the active filter persists under.
const PrefsKey = "budget-blocks-filters"

// Encode serializes a filter for persistence. Dates are written as
// YYYY-MM-DD.
func Encode(f Filter) ([]byte, error) {
	return json.Marshal(f)
}

// Decode restores a persisted filter, parsing its dates back to calendar
// days. Empty or unreadable data yields the default filter.
func Decode(data []byte, now time.Time) Filter {
	if len(data) == 0 {
		return Default(now)
	}
	var f Filter
	if err := json.Unmarshal(data, &f); err != nil {
		return Default(now)
	}
	return f.Normalize(now)
}
