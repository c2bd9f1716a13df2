// Package datemath provides pure calendar arithmetic on plain year/month/day
// dates. All functions are total: out-of-range input falls back to returning
// the receiver unchanged instead of failing.
package datemath

import (
	"fmt"
	"time"
)

// Date is a calendar date without a time-of-day component.
// Month is 1-12, Day is 1-based.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Today returns the current date in the local time zone.
func Today() Date {
	now := time.Now()
	return Date{Year: now.Year(), Month: int(now.Month()), Day: now.Day()}
}

// Parse parses an ISO-8601 YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// String formats the date as ISO-8601 YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or 1 depending on whether d is before, equal to or
// after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool { return d == other }

// AddDays returns the date n days after d, wrapping across month and year
// boundaries. If d carries a month outside 1-12 the input is returned
// unchanged.
func (d Date) AddDays(n int) Date {
	if n < 0 {
		return d.SubDays(-n)
	}
	if d.Month < 1 || d.Month > 12 {
		return d
	}
	out := d
	for n > 0 {
		remaining := DaysInMonth(out.Year, out.Month) - out.Day
		if n <= remaining {
			out.Day += n
			return out
		}
		n -= remaining + 1
		out.Day = 1
		out.Month++
		if out.Month > 12 {
			out.Month = 1
			out.Year++
		}
	}
	return out
}

// SubDays returns the date n days before d, wrapping across month and year
// boundaries. If d carries a month outside 1-12 the input is returned
// unchanged.
func (d Date) SubDays(n int) Date {
	if n < 0 {
		return d.AddDays(-n)
	}
	if d.Month < 1 || d.Month > 12 {
		return d
	}
	out := d
	for n > 0 {
		if n < out.Day {
			out.Day -= n
			return out
		}
		n -= out.Day
		out.Month--
		if out.Month < 1 {
			out.Month = 12
			out.Year--
		}
		out.Day = DaysInMonth(out.Year, out.Month)
	}
	return out
}

// DaysInMonth returns the number of days in the given month of the given
// year per the proleptic Gregorian calendar. Unknown months report 28.
func DaysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	default:
		return 28
	}
}

// IsLeapYear reports whether year is a leap year: divisible by 4 and either
// not divisible by 100 or divisible by 400.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
