// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func dt(year, month, day, hour, minute, second int) DateTime {
	d := DateTime{Year: year, Month: month, Day: day, Hour: hour, Minute: minute, Second: second}
	d.DOW = DayOfWeek(day, month, year)
	return d
}

func TestApplyOffsetZeroIsIdempotent(t *testing.T) {
	cases := []struct {
		desc string
		in   DateTime
	}{
		{desc: "ordinary afternoon", in: dt(2023, 6, 15, 14, 30, 45)},
		{desc: "midnight", in: dt(2023, 1, 1, 0, 0, 0)},
		{desc: "leap day", in: dt(2024, 2, 29, 23, 59, 59)},
		{desc: "end of year", in: dt(2023, 12, 31, 23, 59, 59)},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got := ApplyOffset(tc.in, Offset{})
			assert.Equal(t, tc.in, got)
		})
	}
}

func TestApplyOffsetCarryAndBorrow(t *testing.T) {
	cases := []struct {
		desc string
		in   DateTime
		off  Offset
		want DateTime
	}{
		{
			desc: "second delta to exactly 60 carries a minute",
			in:   dt(2023, 6, 15, 10, 0, 59),
			off:  Offset{Second: 1},
			want: dt(2023, 6, 15, 10, 1, 0),
		},
		{
			desc: "second borrow wraps to 59",
			in:   dt(2023, 6, 15, 10, 1, 0),
			off:  Offset{Second: -1},
			want: dt(2023, 6, 15, 10, 0, 59),
		},
		{
			desc: "minute carry rolls the hour",
			in:   dt(2023, 6, 15, 10, 59, 0),
			off:  Offset{Minute: 1},
			want: dt(2023, 6, 15, 11, 0, 0),
		},
		{
			desc: "hour carry rolls the day",
			in:   dt(2023, 6, 15, 23, 0, 0),
			off:  Offset{Hour: 1},
			want: dt(2023, 6, 16, 0, 0, 0),
		},
		{
			desc: "hour carry across February end",
			in:   dt(2023, 2, 28, 23, 0, 0),
			off:  Offset{Hour: 1},
			want: dt(2023, 3, 1, 0, 0, 0),
		},
		{
			desc: "day borrow lands on leap February 29",
			in:   dt(2024, 3, 1, 12, 0, 0),
			off:  Offset{Day: -1},
			want: dt(2024, 2, 29, 12, 0, 0),
		},
		{
			desc: "day borrow lands on common February 28",
			in:   dt(2023, 3, 1, 12, 0, 0),
			off:  Offset{Day: -1},
			want: dt(2023, 2, 28, 12, 0, 0),
		},
		{
			desc: "day carry out of January",
			in:   dt(2023, 1, 31, 12, 0, 0),
			off:  Offset{Day: 1},
			want: dt(2023, 2, 1, 12, 0, 0),
		},
		{
			desc: "day borrow out of January crosses the year",
			in:   dt(2023, 1, 1, 12, 0, 0),
			off:  Offset{Day: -1},
			want: dt(2022, 12, 31, 12, 0, 0),
		},
		{
			desc: "month carry rolls the year",
			in:   dt(2023, 12, 15, 0, 0, 0),
			off:  Offset{Month: 1},
			want: dt(2024, 1, 15, 0, 0, 0),
		},
		{
			desc: "month borrow rolls the year back",
			in:   dt(2023, 1, 15, 0, 0, 0),
			off:  Offset{Month: -1},
			want: dt(2022, 12, 15, 0, 0, 0),
		},
		{
			desc: "year ones delta",
			in:   dt(2023, 5, 1, 0, 0, 0),
			off:  Offset{YearOnes: 1},
			want: dt(2024, 5, 1, 0, 0, 0),
		},
		{
			desc: "year hundreds delta",
			in:   dt(2023, 5, 1, 0, 0, 0),
			off:  Offset{YearHundreds: -1, YearOnes: 2},
			want: dt(1925, 5, 1, 0, 0, 0),
		},
		{
			desc: "combined deltas ripple in component order",
			in:   dt(2024, 3, 1, 0, 0, 0),
			off:  Offset{Day: -1, Hour: -1, Minute: -1, Second: -1},
			want: dt(2024, 2, 28, 22, 58, 59),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, ApplyOffset(tc.in, tc.off))
		})
	}
}

func TestAddSeconds(t *testing.T) {
	cases := []struct {
		desc string
		in   DateTime
		n    int
		want DateTime
	}{
		{
			desc: "zero",
			in:   dt(2023, 6, 15, 10, 20, 30),
			n:    0,
			want: dt(2023, 6, 15, 10, 20, 30),
		},
		{
			desc: "across midnight",
			in:   dt(2023, 6, 15, 23, 59, 59),
			n:    1,
			want: dt(2023, 6, 16, 0, 0, 0),
		},
		{
			desc: "across new year",
			in:   dt(2023, 12, 31, 23, 59, 59),
			n:    1,
			want: dt(2024, 1, 1, 0, 0, 0),
		},
		{
			desc: "a full day",
			in:   dt(2024, 2, 28, 6, 0, 0),
			n:    86400,
			want: dt(2024, 2, 29, 6, 0, 0),
		},
		{
			desc: "many days",
			in:   dt(2023, 1, 1, 0, 0, 0),
			n:    40 * 86400,
			want: dt(2023, 2, 10, 0, 0, 0),
		},
		{
			desc: "negative across midnight",
			in:   dt(2023, 6, 16, 0, 0, 0),
			n:    -1,
			want: dt(2023, 6, 15, 23, 59, 59),
		},
		{
			desc: "negative across new year",
			in:   dt(2024, 1, 1, 0, 0, 0),
			n:    -1,
			want: dt(2023, 12, 31, 23, 59, 59),
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, AddSeconds(tc.in, tc.n))
		})
	}
}
