// Package duedate holds the calendar arithmetic behind session due dates.
// Everything works on plain year-month-day values: due dates are calendar
// dates, not instants, so comparisons never depend on time of day.
package duedate

import (
	"fmt"
	"time"
)

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// FromTime takes the calendar date of t in t's own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today resolves the current calendar date as seen in loc. A nil loc
// falls back to UTC.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now.In(loc))
}

func Parse(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return FromTime(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC of the date, for storing in a SQL date column.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) Equal(o Date) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

func DaysIn(year int, month time.Month) int {
	// Day zero of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay bounds a configured day-of-month to the days the month actually
// has, so day 31 in February resolves to the 28th (or 29th).
func ClampDay(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if last := DaysIn(year, month); day > last {
		return last
	}
	return day
}

// NextDue computes the next concrete due date for a day-of-month. The
// clamped candidate in today's month is used unless it is strictly before
// today; a candidate equal to today is due today, not rolled forward.
func NextDue(today Date, dueDay int) Date {
	candidate := Date{
		Year:  today.Year,
		Month: today.Month,
		Day:   ClampDay(today.Year, today.Month, dueDay),
	}
	if !candidate.Before(today) {
		return candidate
	}

	year, month := today.Year, today.Month+1
	if month > time.December {
		year, month = year+1, time.January
	}
	return Date{
		Year:  year,
		Month: month,
		Day:   ClampDay(year, month, dueDay),
	}
}
