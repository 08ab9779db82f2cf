// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/uplink/calendar"
)

func TestDatagramRoundTrip(t *testing.T) {
	h := Header{
		Timestamp:     NewTimestamp(2, 7200),
		Guaranteed:    true,
		Type:          1,
		ContentLength: 3,
	}
	data := MarshalDatagram(h.Encode(), []byte{0xAA, 0xBB, 0xCC})
	require.Len(t, data, 7)

	got, content, err := UnmarshalDatagram(data)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, content)
}

func TestDatagramHeaderIsLittleEndian(t *testing.T) {
	data := MarshalDatagram(0x01020304, nil)
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, data)
}

func TestMarshalDatagramTruncatesContent(t *testing.T) {
	long := make([]byte, 12)
	data := MarshalDatagram(0, long)
	assert.Len(t, data, 4+MaxContentLength)
}

func TestUnmarshalDatagramShort(t *testing.T) {
	_, _, err := UnmarshalDatagram([]byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrShortDatagram)
}

func TestDecodeTimeSync(t *testing.T) {
	cases := []struct {
		desc    string
		content []byte
		want    calendar.Offset
		err     error
	}{
		{
			desc:    "zero offset",
			content: []byte{128, 128, 128, 128, 128, 128, 128},
			want:    calendar.Offset{},
		},
		{
			desc:    "mixed signs",
			content: []byte{128, 129, 127, 128, 130, 128, 68},
			want:    calendar.Offset{YearOnes: 1, Month: -1, Hour: 2, Second: -60},
		},
		{
			desc:    "short payload",
			content: []byte{128, 128, 128},
			err:     ErrShortTimeSync,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := DecodeTimeSync(tc.content)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeTimeReport(t *testing.T) {
	dt := calendar.DateTime{Year: 2023, Month: 2, Day: 26, Hour: 13, Minute: 45, Second: 59}
	got := EncodeTimeReport(dt)
	assert.Equal(t, [7]byte{20, 23, 2, 26, 13, 45, 59}, got)
}
