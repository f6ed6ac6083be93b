package duedate

import (
	"testing"
	"time"
)

func TestClampDayShortMonths(t *testing.T) {
	if got := ClampDay(2024, time.April, 31); got != 30 {
		t.Fatalf("april 31 should clamp to 30, got %d", got)
	}
	if got := ClampDay(2023, time.February, 29); got != 28 {
		t.Fatalf("non-leap feb 29 should clamp to 28, got %d", got)
	}
	if got := ClampDay(2024, time.February, 29); got != 29 {
		t.Fatalf("leap feb 29 should stay 29, got %d", got)
	}
	if got := ClampDay(2024, time.January, 0); got != 1 {
		t.Fatalf("day 0 should clamp to 1, got %d", got)
	}
}

func TestNextDueCurrentMonth(t *testing.T) {
	today := New(2024, time.March, 1)
	due := NextDue(today, 25)
	if !due.Equal(New(2024, time.March, 25)) {
		t.Fatalf("expected 2024-03-25, got %s", due)
	}
}

func TestNextDueTodayIsDueToday(t *testing.T) {
	today := New(2024, time.March, 25)
	due := NextDue(today, 25)
	if !due.Equal(today) {
		t.Fatalf("candidate equal to today must not roll forward, got %s", due)
	}
}

func TestNextDueRollsToNextMonth(t *testing.T) {
	today := New(2024, time.March, 26)
	due := NextDue(today, 25)
	if !due.Equal(New(2024, time.April, 25)) {
		t.Fatalf("expected 2024-04-25, got %s", due)
	}
}

func TestNextDueYearRollover(t *testing.T) {
	today := New(2024, time.December, 20)
	due := NextDue(today, 10)
	if !due.Equal(New(2025, time.January, 10)) {
		t.Fatalf("expected 2025-01-10, got %s", due)
	}
}

func TestNextDueClampsInNextMonth(t *testing.T) {
	// Jan 31 has passed; the February candidate for day 31 clamps.
	today := New(2023, time.February, 1)
	due := NextDue(today, 31)
	if !due.Equal(New(2023, time.February, 28)) {
		t.Fatalf("expected 2023-02-28, got %s", due)
	}
}

func TestNextDueNeverInPastAndWithinTwoMonths(t *testing.T) {
	for year := 2023; year <= 2025; year++ {
		for month := time.January; month <= time.December; month++ {
			for day := 1; day <= DaysIn(year, month); day++ {
				today := New(year, month, day)
				for dueDay := 1; dueDay <= 31; dueDay++ {
					due := NextDue(today, dueDay)
					if due.Before(today) {
						t.Fatalf("due %s before today %s (dueDay=%d)", due, today, dueDay)
					}
					if due.Day != ClampDay(due.Year, due.Month, dueDay) {
						t.Fatalf("due %s not clamped for dueDay=%d", due, dueDay)
					}
					sameMonth := due.Year == year && due.Month == month
					nextY, nextM := year, month+1
					if nextM > time.December {
						nextY, nextM = nextY+1, time.January
					}
					nextMonth := due.Year == nextY && due.Month == nextM
					if !sameMonth && !nextMonth {
						t.Fatalf("due %s not in current or next month of %s", due, today)
					}
				}
			}
		}
	}
}

func TestTodayUsesLocation(t *testing.T) {
	// 2024-03-01T02:00Z is still 2024-02-29 in a UTC-5 zone.
	now := time.Date(2024, time.March, 1, 2, 0, 0, 0, time.UTC)
	loc := time.FixedZone("UTC-5", -5*3600)
	if got := Today(now, loc); !got.Equal(New(2024, time.February, 29)) {
		t.Fatalf("expected 2024-02-29 in UTC-5, got %s", got)
	}
	if got := Today(now, nil); !got.Equal(New(2024, time.March, 1)) {
		t.Fatalf("nil location should use UTC, got %s", got)
	}
}

func TestAddDaysAcrossBoundaries(t *testing.T) {
	if got := New(2024, time.February, 16).AddDays(14); !got.Equal(New(2024, time.March, 1)) {
		t.Fatalf("leap february rollover: got %s", got)
	}
	if got := New(2024, time.December, 20).AddDays(14); !got.Equal(New(2025, time.January, 3)) {
		t.Fatalf("year rollover: got %s", got)
	}
}

func TestParseAndString(t *testing.T) {
	d, err := Parse("2024-03-25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-03-25" {
		t.Fatalf("round trip failed: %s", d)
	}
	if _, err := Parse("03/25/2024"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
}
