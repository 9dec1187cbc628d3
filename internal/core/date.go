package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

var (
	ErrZeroDate   = errors.New("date cannot be zero")
	ErrInvalidDay = errors.New("invalid day")
)

// Date is a calendar day at midnight UTC.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day. Out of range days
// normalize the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// Within reports whether d lies in [from, to], both inclusive.
func (d Date) Within(from, to Date) bool {
	return !d.Time.Before(from.Time) && !d.Time.After(to.Time)
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

// LastOfMonth returns the last day of d's month.
func (d Date) LastOfMonth() Date {
	return NewDate(d.Year(), d.Month()+1, 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay returns day limited to the length of the month. Day 0 or
// less means the last day.
func ClampDay(year int, month time.Month, day int) Date {
	last := DaysIn(year, month)
	if day <= 0 || day > last {
		day = last
	}
	return NewDate(year, month, day)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

// UnmarshalJSON accepts "YYYY-MM-DD", full RFC 3339 timestamps or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(DateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		*d = DateOf(t.UTC())
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DueDay is a day of month, or the last day of whatever month it resolves in.
type DueDay struct {
	Day  int
	Last bool
}

// LastDay is the "Last" due day sentinel.
var LastDay = DueDay{Last: true}

func (d DueDay) Validate() error {
	if d.Last {
		return nil
	}
	if d.Day < 1 || d.Day > 31 {
		return invalid("dueDay", ErrInvalidDay)
	}
	return nil
}

// In resolves the due day against a month, clamping to its length.
func (d DueDay) In(year int, month time.Month) Date {
	if d.Last {
		return ClampDay(year, month, 0)
	}
	return ClampDay(year, month, d.Day)
}

func (d DueDay) String() string {
	if d.Last {
		return "Last"
	}
	return strconv.Itoa(d.Day)
}

// ParseDueDay accepts a day number or "Last" (case-insensitive).
func ParseDueDay(s string) (DueDay, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "last") {
		return LastDay, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return DueDay{}, invalid("dueDay", ErrInvalidDay)
	}
	dd := DueDay{Day: n}
	return dd, dd.Validate()
}

func (d DueDay) MarshalJSON() ([]byte, error) {
	if d.Last {
		return []byte(`"Last"`), nil
	}
	return []byte(strconv.Itoa(d.Day)), nil
}

func (d *DueDay) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*d = DueDay{Day: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDueDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
