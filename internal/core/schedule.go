package core

import (
	"errors"
	"time"
)

const (
	Monthly     Frequency = "monthly"
	SemiMonthly Frequency = "semi-monthly"
	BiWeekly    Frequency = "bi-weekly"
	Weekly      Frequency = "weekly"
)

// Default generation window, in periods around the one containing "now".
const (
	DefaultPeriodsBefore = 3
	DefaultPeriodsAfter  = 2
)

var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrMissingAnchor    = errors.New("anchor date is required")
	ErrInvalidDays      = errors.New("invalid semi-monthly days")
	ErrInvalidWindow    = errors.New("window periods cannot be negative")
)

type Frequency string

// PaySchedule is a recurrence used only to bulk-generate bands.
//
// Day2 == 0 means "last day of month" for semi-monthly schedules.
type PaySchedule struct {
	ID        string    `json:"id"`
	Frequency Frequency `json:"frequency"`
	Anchor    Date      `json:"anchor,omitempty"`
	Day1      int       `json:"day1,omitempty"`
	Day2      int       `json:"day2,omitempty"`
	Before    int       `json:"before,omitempty"`
	After     int       `json:"after,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (f Frequency) IsValid() bool {
	switch f {
	case Monthly, SemiMonthly, BiWeekly, Weekly:
		return true
	default:
		return false
	}
}

// Window returns the periods before and after the current one. Both zero
// selects the default window.
func (s PaySchedule) Window() (before, after int) {
	if s.Before == 0 && s.After == 0 {
		return DefaultPeriodsBefore, DefaultPeriodsAfter
	}
	return s.Before, s.After
}

func (s PaySchedule) Validate() error {
	if !s.Frequency.IsValid() {
		return invalid("frequency", ErrInvalidFrequency)
	}
	if s.Before < 0 || s.After < 0 {
		return invalid("window", ErrInvalidWindow)
	}
	switch s.Frequency {
	case Weekly, BiWeekly:
		if s.Anchor.IsZero() {
			return invalid("anchor", ErrMissingAnchor)
		}
	case SemiMonthly:
		if s.Day1 < 1 || s.Day1 > 31 || s.Day2 < 0 || s.Day2 > 31 {
			return invalid("day1", ErrInvalidDays)
		}
		if s.Day2 != 0 && s.Day1 >= s.Day2 {
			return invalid("day2", ErrInvalidDays)
		}
	}
	return nil
}
