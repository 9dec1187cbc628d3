// Package bands generates pay period bands from a pay schedule.
//
// Each frequency has its own strategy that tiles a window of periods around
// the current date. The registry mirrors the per-frequency dueness checkers
// used by recurring jobs.
package bands

import (
	"fmt"
	"time"

	"budgetblocks/internal/core"
)

// Generator produces the bands of one frequency for the schedule's window
// around now, ordered by start date.
type Generator interface {
	Generate(s core.PaySchedule, now core.Date) []core.Band
}

// MonthlyGenerator emits one band per calendar month.
type MonthlyGenerator struct{}

func (MonthlyGenerator) Generate(s core.PaySchedule, now core.Date) []core.Band {
	before, after := s.Window()
	first := now.FirstOfMonth()
	var out []core.Band
	for i := -before; i <= after; i++ {
		m := core.NewDate(first.Year(), first.Month()+time.Month(i), 1)
		out = append(out, core.Band{
			Title:      m.Format("January 2006"),
			Start:      m,
			End:        m.LastOfMonth(),
			ScheduleID: s.ID,
		})
	}
	return out
}

// SemiMonthlyGenerator emits [day1, day2-1] and [day2, end of month] for
// every month. Day2 == 0 pins the second band to the last day only.
type SemiMonthlyGenerator struct{}

func (SemiMonthlyGenerator) Generate(s core.PaySchedule, now core.Date) []core.Band {
	before, after := s.Window()
	first := now.FirstOfMonth()
	var out []core.Band
	for i := -before; i <= after; i++ {
		m := core.NewDate(first.Year(), first.Month()+time.Month(i), 1)
		y, mon := m.Year(), m.Month()
		last := m.LastOfMonth()
		start1 := core.ClampDay(y, mon, s.Day1)
		start2 := last
		if s.Day2 != 0 {
			start2 = core.ClampDay(y, mon, s.Day2)
		}
		end1 := start2.AddDays(-1)
		if !end1.Before(start1.Time) {
			out = append(out, band(s, start1, end1))
		}
		out = append(out, band(s, start2, last))
	}
	return out
}

// FixedLengthGenerator tiles windows of Days days from the anchor date,
// backward and forward.
type FixedLengthGenerator struct {
	Days int
}

func (g FixedLengthGenerator) Generate(s core.PaySchedule, now core.Date) []core.Band {
	before, after := s.Window()
	diff := int(now.Sub(s.Anchor.Time).Hours() / 24)
	k := diff / g.Days
	if diff%g.Days != 0 && diff < 0 {
		k--
	}
	var out []core.Band
	for i := k - before; i <= k+after; i++ {
		start := s.Anchor.AddDays(i * g.Days)
		end := start.AddDays(g.Days - 1)
		b := band(s, start, end)
		if g.Days == 7 {
			b.Title = "Week of " + start.Format("Jan 2, 2006")
		}
		out = append(out, b)
	}
	return out
}

func band(s core.PaySchedule, start, end core.Date) core.Band {
	return core.Band{
		Title:      rangeTitle(start, end),
		Start:      start,
		End:        end,
		ScheduleID: s.ID,
	}
}

func rangeTitle(start, end core.Date) string {
	if start.Year() != end.Year() {
		return start.Format("Jan 2, 2006") + " - " + end.Format("Jan 2, 2006")
	}
	return start.Format("Jan 2") + " - " + end.Format("Jan 2, 2006")
}

// generators maps frequencies to their strategies.
var generators = map[core.Frequency]Generator{
	core.Monthly:     MonthlyGenerator{},
	core.SemiMonthly: SemiMonthlyGenerator{},
	core.BiWeekly:    FixedLengthGenerator{Days: 14},
	core.Weekly:      FixedLengthGenerator{Days: 7},
}

// GetGenerator returns the strategy for a frequency.
func GetGenerator(f core.Frequency) (Generator, error) {
	g, ok := generators[f]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", f)
	}
	return g, nil
}

// Generate validates the schedule and produces its bands for the window
// around now.
func Generate(s core.PaySchedule, now time.Time) ([]core.Band, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g, err := GetGenerator(s.Frequency)
	if err != nil {
		return nil, err
	}
	return g.Generate(s, core.DateOf(now)), nil
}
