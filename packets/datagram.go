// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packets

import (
	"encoding/binary"
	"errors"
)

// ErrShortDatagram is returned when an inbound datagram is too small to
// carry a header.
var ErrShortDatagram = errors.New("datagram shorter than header")

// MarshalDatagram lays out the wire form of a message: the header word
// little-endian in bytes 0..3 followed by the content bytes. Content
// beyond MaxContentLength is truncated.
func MarshalDatagram(header uint32, content []byte) []byte {
	if len(content) > MaxContentLength {
		content = content[:MaxContentLength]
	}
	data := make([]byte, headerLen+len(content))
	binary.LittleEndian.PutUint32(data[:headerLen], header)
	copy(data[headerLen:], content)
	return data
}

// UnmarshalDatagram splits a wire datagram into its decoded header and
// content bytes. The content slice aliases data.
func UnmarshalDatagram(data []byte) (Header, []byte, error) {
	if len(data) < headerLen {
		return Header{}, nil, ErrShortDatagram
	}
	h := DecodeHeader(binary.LittleEndian.Uint32(data[:headerLen]))
	return h, data[headerLen:], nil
}
