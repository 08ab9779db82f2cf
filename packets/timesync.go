// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"errors"

	"github.com/absmach/uplink/calendar"
)

// ErrShortTimeSync is returned when a system-port time-sync payload is
// shorter than the seven offset bytes.
var ErrShortTimeSync = errors.New("time-sync payload too short")

const timeSyncLen = 7

// DecodeTimeSync interprets a downlink time-sync payload. Each of the
// seven bytes carries a signed delta biased by +128:
//
//	[year_hundreds, year_ones, month, day, hour, minute, second]
func DecodeTimeSync(content []byte) (calendar.Offset, error) {
	if len(content) < timeSyncLen {
		return calendar.Offset{}, ErrShortTimeSync
	}
	return calendar.Offset{
		YearHundreds: int(content[0]) - 128,
		YearOnes:     int(content[1]) - 128,
		Month:        int(content[2]) - 128,
		Day:          int(content[3]) - 128,
		Hour:         int(content[4]) - 128,
		Minute:       int(content[5]) - 128,
		Second:       int(content[6]) - 128,
	}, nil
}

// EncodeTimeReport fills the uplink time-report content with the
// device's current absolute time: the far end compares it against its
// own clock and answers with a biased delta payload.
func EncodeTimeReport(dt calendar.DateTime) [timeSyncLen]byte {
	return [timeSyncLen]byte{
		byte(dt.Year / 100),
		byte(dt.Year % 100),
		byte(dt.Month),
		byte(dt.Day),
		byte(dt.Hour),
		byte(dt.Minute),
		byte(dt.Second),
	}
}
