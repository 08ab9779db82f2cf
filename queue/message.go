// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"time"

	"github.com/absmach/uplink/packets"
)

// slot membership states, kept so list transitions are mechanically
// checkable.
const (
	slotFree uint8 = iota
	slotDetached
	slotPending
)

// Message is one fixed-size slot of the arena. A slot is a member of
// exactly one list (free or pending) at any instant; in between it is
// detached and owned by the caller that removed it.
//
// Correlation of a response to a pending message is by equality of
// (Port, header timestamp, Guaranteed, Type), not by a sequence number.
// Two messages created within the same device-second with the same
// port, type and guarantee flag are indistinguishable to the matcher;
// the most recently created one wins. This is a known limitation of the
// wire format, which has no spare header bits for a sequence number.
type Message struct {
	Header        uint32
	Content       [packets.MaxContentLength]byte
	ContentLength uint8
	Port          uint8
	Type          uint8
	Guaranteed    bool
	DOW           uint8

	// SendTime is the instant of the last transmit attempt; zero means
	// the message has never been sent.
	SendTime time.Time

	index int32
	next  int32
	state uint8
}

// Payload returns the valid content bytes.
func (m *Message) Payload() []byte {
	return m.Content[:m.ContentLength]
}

// Timestamp returns the creation timestamp packed in the header.
func (m *Message) Timestamp() packets.Timestamp {
	return packets.DecodeHeader(m.Header).Timestamp
}

// reset clears message state when the slot returns to the free list.
func (m *Message) reset() {
	m.Header = 0
	m.Content = [packets.MaxContentLength]byte{}
	m.ContentLength = 0
	m.Port = 0
	m.Type = 0
	m.Guaranteed = false
	m.DOW = 0
	m.SendTime = time.Time{}
}
