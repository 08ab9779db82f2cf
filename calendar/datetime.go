// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package calendar

import "fmt"

// DateTime is a broken-down wall-clock time. DOW is derived from the
// date fields and recomputed whenever they change.
type DateTime struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
	DOW    int
}

// Offset is a per-component signed delta applied to a DateTime. The
// year delta is carried as an absolute hundreds/ones pair the way the
// time-sync wire payload encodes it.
type Offset struct {
	YearHundreds int
	YearOnes     int
	Month        int
	Day          int
	Hour         int
	Minute       int
	Second       int
}

// IsZero reports whether the offset leaves a datetime unchanged.
func (o Offset) IsZero() bool {
	return o == Offset{}
}

func (dt DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d (dow %d)",
		dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, dt.DOW)
}

// SecondsOfDay returns the seconds elapsed since midnight.
func (dt DateTime) SecondsOfDay() int {
	return dt.Hour*3600 + dt.Minute*60 + dt.Second
}

// ApplyOffset adds the per-component deltas to dt and normalizes the
// result. Normalization runs least-significant-first: a component below
// its minimum borrows one unit from the next-coarser component, one at
// or past the rollover modulus carries one unit forward. The day
// modulus is evaluated against the month in effect at that point of
// the pass, so borrowing out of March lands on the length of February
// (leap-year-aware). Year borrows and carries adjust the year field
// directly. The day of week is recomputed last.
func ApplyOffset(dt DateTime, off Offset) DateTime {
	dt.Year += off.YearHundreds*100 + off.YearOnes
	dt.Month += off.Month
	dt.Day += off.Day
	dt.Hour += off.Hour
	dt.Minute += off.Minute
	dt.Second += off.Second
	return normalize(dt)
}

func normalize(dt DateTime) DateTime {
	comps := [5]*int{&dt.Second, &dt.Minute, &dt.Hour, &dt.Day, &dt.Month}
	for i := Second; i <= Month; i++ {
		min := componentMins[i]
		switch {
		case *comps[i] < min:
			// Borrow first, then wrap with the modulus of the
			// now-current coarser value: day below 1 in March must
			// land on the last day of February.
			if i < Month {
				*comps[i+1]--
			} else {
				dt.Year--
			}
			*comps[i] += Modulus(i, dt.Month, dt.Year)
		case *comps[i] >= min+Modulus(i, dt.Month, dt.Year):
			mod := Modulus(i, dt.Month, dt.Year)
			if i < Month {
				*comps[i+1]++
			} else {
				dt.Year++
			}
			*comps[i] -= mod
		}
	}
	dt.DOW = DayOfWeek(dt.Day, dt.Month, dt.Year)
	return dt
}

// AddSeconds advances dt by n whole seconds (n may be negative) and
// returns the normalized result. Unlike ApplyOffset, which performs a
// single borrow/carry step per component to mirror the one-byte deltas
// of the sync protocol, AddSeconds handles arbitrarily large spans.
func AddSeconds(dt DateTime, n int) DateTime {
	total := dt.SecondsOfDay() + n
	days := total / 86400
	rem := total % 86400
	if rem < 0 {
		rem += 86400
		days--
	}
	dt.Hour = rem / 3600
	dt.Minute = (rem / 60) % 60
	dt.Second = rem % 60

	dt.Day += days
	for dt.Day < 1 {
		dt.Month--
		if dt.Month < 1 {
			dt.Month += 12
			dt.Year--
		}
		dt.Day += DaysIn(dt.Month, dt.Year)
	}
	for dt.Day > DaysIn(dt.Month, dt.Year) {
		dt.Day -= DaysIn(dt.Month, dt.Year)
		dt.Month++
		if dt.Month > 12 {
			dt.Month -= 12
			dt.Year++
		}
	}
	dt.DOW = DayOfWeek(dt.Day, dt.Month, dt.Year)
	return dt
}
