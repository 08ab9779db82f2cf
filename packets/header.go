// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package packets implements the compact binary encoding of uplink
// messages: the packed 32-bit header, the wire datagram layout, and the
// time-sync payload exchanged on the system port.
package packets

import "fmt"

const (
	// SystemPort is the logical channel reserved for system traffic
	// such as time synchronization.
	SystemPort uint8 = 222

	// TypeTimeSync is the system-port message type carrying a clock
	// offset in the downlink direction and a clock report in the
	// uplink direction.
	TypeTimeSync uint8 = 0

	// MaxContentLength is the maximum content size a message carries.
	// Longer content is silently truncated.
	MaxContentLength = 7

	// MaxSecondsOfDay is the exclusive upper bound for the
	// seconds-since-midnight field.
	MaxSecondsOfDay = 86400

	headerLen = 4
)

// Timestamp is the packed 20-bit message timestamp: a 3-bit day of week
// (0 = Sunday) followed by 17 bits of seconds since midnight.
type Timestamp uint32

// NewTimestamp packs a day of week and seconds-of-day pair. Values are
// masked to their field widths, not validated.
func NewTimestamp(dow, secondsOfDay int) Timestamp {
	return Timestamp((uint32(dow)&0x07)<<17 | uint32(secondsOfDay)&0x1FFFF)
}

// DOW returns the day-of-week field.
func (t Timestamp) DOW() int { return int(t>>17) & 0x07 }

// SecondsOfDay returns the seconds-since-midnight field.
func (t Timestamp) SecondsOfDay() int { return int(t) & 0x1FFFF }

func (t Timestamp) String() string {
	return fmt.Sprintf("dow=%d time=%d", t.DOW(), t.SecondsOfDay())
}

// Header is the unpacked 32-bit message header.
//
// Packed layout, most significant bits first:
//
//	version(3) | timestamp(20) | guaranteed(1) | type(4) | content_length(4)
//
// The (timestamp, guaranteed, type) triple together with the logical
// port is also the correlation key used to match responses to pending
// requests; there is no sequence number on the wire.
type Header struct {
	Version       uint8
	Timestamp     Timestamp
	Guaranteed    bool
	Type          uint8
	ContentLength uint8
}

// Encode packs the header into a 32-bit word. Fields are masked to
// their bit widths; callers pre-validate ranges.
func (h Header) Encode() uint32 {
	var g uint32
	if h.Guaranteed {
		g = 1
	}
	return uint32(h.Version&0x07)<<29 |
		(uint32(h.Timestamp)&0xFFFFF)<<9 |
		g<<8 |
		uint32(h.Type&0x0F)<<4 |
		uint32(h.ContentLength&0x0F)
}

// DecodeHeader unpacks a 32-bit header word. It is pure and total.
func DecodeHeader(word uint32) Header {
	return Header{
		Version:       uint8(word>>29) & 0x07,
		Timestamp:     Timestamp(word>>9) & 0xFFFFF,
		Guaranteed:    word>>8&0x01 == 1,
		Type:          uint8(word>>4) & 0x0F,
		ContentLength: uint8(word) & 0x0F,
	}
}
