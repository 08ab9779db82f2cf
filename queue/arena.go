// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package queue implements the bounded message store shared between the
// producer contexts and the delivery loop: a fixed arena of message
// slots threaded onto two intrusive index chains, a free list and a
// pending list. The arena never allocates after construction.
package queue

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/absmach/uplink/packets"
)

// ErrPoolExhausted is returned by Acquire when the free list is empty.
// The caller treats this as fatal: bounded memory is a harder
// requirement than availability, so the system restarts rather than
// queueing without bound.
var ErrPoolExhausted = errors.New("message pool exhausted")

const nilIndex = int32(-1)

// DefaultCapacity is used when an arena is constructed with a
// non-positive capacity.
const DefaultCapacity = 16

// Arena is the slot pool plus the pending list. The two chains are
// guarded by independent locks; a slot moving from pending to free
// takes them in pending-then-free order. Neither lock is ever held
// across a blocking operation.
type Arena struct {
	slots []Message

	freeMu   sync.Mutex
	freeHead int32

	pendMu   sync.Mutex
	pendHead int32

	logger *slog.Logger
}

// New creates an arena with the given fixed capacity.
func New(capacity int, logger *slog.Logger) *Arena {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Arena{
		slots:    make([]Message, capacity),
		freeHead: 0,
		pendHead: nilIndex,
		logger:   logger,
	}
	for i := range a.slots {
		a.slots[i].index = int32(i)
		a.slots[i].next = int32(i + 1)
		a.slots[i].state = slotFree
	}
	a.slots[capacity-1].next = nilIndex
	return a
}

// Capacity returns the fixed slot count.
func (a *Arena) Capacity() int { return len(a.slots) }

// Acquire pops a slot off the free list. The returned slot is detached:
// it belongs to the caller until inserted into the pending list or
// released back.
func (a *Arena) Acquire() (*Message, error) {
	a.freeMu.Lock()
	defer a.freeMu.Unlock()
	if a.freeHead == nilIndex {
		return nil, ErrPoolExhausted
	}
	m := &a.slots[a.freeHead]
	a.freeHead = m.next
	m.next = nilIndex
	m.state = slotDetached
	return m, nil
}

// Release pushes a detached slot back onto the free list. Releasing a
// slot that is not detached is a caller bug; it is logged as an
// integrity violation and the slot is left untouched so the free list
// cannot be corrupted.
func (a *Arena) Release(m *Message) {
	a.freeMu.Lock()
	defer a.freeMu.Unlock()
	if m.state != slotDetached {
		a.logger.Warn("release of slot not owned by caller",
			slog.Int("slot", int(m.index)),
			slog.Int("state", int(m.state)))
		return
	}
	m.reset()
	m.next = a.freeHead
	m.state = slotFree
	a.freeHead = m.index
}

// InsertPending pushes a detached slot onto the head of the pending
// list, making it the first candidate for the next correlation scan.
func (a *Arena) InsertPending(m *Message) {
	a.pendMu.Lock()
	defer a.pendMu.Unlock()
	if m.state != slotDetached {
		a.logger.Warn("pending insert of slot not owned by caller",
			slog.Int("slot", int(m.index)),
			slog.Int("state", int(m.state)))
		return
	}
	m.next = a.pendHead
	m.state = slotPending
	a.pendHead = m.index
}

// RemovePending unlinks a slot from the pending list, leaving it
// detached for the caller to release. Removing a slot that is not on
// the list is logged as an integrity warning and reports false.
func (a *Arena) RemovePending(m *Message) bool {
	a.pendMu.Lock()
	defer a.pendMu.Unlock()
	if a.unlink(m) {
		return true
	}
	a.logger.Warn("pending remove of absent slot", slog.Int("slot", int(m.index)))
	return false
}

// unlink removes m from the pending chain. Caller holds pendMu.
func (a *Arena) unlink(m *Message) bool {
	prev := nilIndex
	for cur := a.pendHead; cur != nilIndex; cur = a.slots[cur].next {
		if cur != m.index {
			prev = cur
			continue
		}
		if prev == nilIndex {
			a.pendHead = m.next
		} else {
			a.slots[prev].next = m.next
		}
		m.next = nilIndex
		m.state = slotDetached
		return true
	}
	return false
}

// TakeByCorrelation finds the first pending message matching the
// correlation key in head-to-tail order (most recently created first),
// unlinks it and returns it detached. It returns nil when nothing
// matches.
func (a *Arena) TakeByCorrelation(port uint8, ts packets.Timestamp, guaranteed bool, typ uint8) *Message {
	a.pendMu.Lock()
	defer a.pendMu.Unlock()
	for cur := a.pendHead; cur != nilIndex; cur = a.slots[cur].next {
		m := &a.slots[cur]
		if m.Port == port && m.Timestamp() == ts && m.Guaranteed == guaranteed && m.Type == typ {
			a.unlink(m)
			return m
		}
	}
	return nil
}

// ExpireWhere sweeps the pending list once, removing and releasing
// every slot the predicate selects, regardless of the guaranteed flag.
// It returns the number of slots released.
func (a *Arena) ExpireWhere(pred func(*Message) bool) int {
	a.pendMu.Lock()
	var expired []*Message
	prev := nilIndex
	for cur := a.pendHead; cur != nilIndex; {
		m := &a.slots[cur]
		next := m.next
		if pred(m) {
			if prev == nilIndex {
				a.pendHead = next
			} else {
				a.slots[prev].next = next
			}
			m.next = nilIndex
			m.state = slotDetached
			expired = append(expired, m)
		} else {
			prev = cur
		}
		cur = next
	}
	a.pendMu.Unlock()

	for _, m := range expired {
		a.Release(m)
	}
	return len(expired)
}

// Walk visits pending messages head to tail without holding the
// pending lock across the callback, so the callback may transmit and
// may remove the current message. The successor is captured before the
// callback runs, since removal invalidates the current node's link.
// A captured index is re-checked against the slot state before the
// visit: the callback (or a concurrent ack) may have removed and freed
// that slot, in which case its link threads the free chain and the
// walk must not follow it. Returning false stops the walk.
func (a *Arena) Walk(fn func(*Message) bool) {
	a.pendMu.Lock()
	cur := a.pendHead
	a.pendMu.Unlock()
	for cur != nilIndex {
		m := &a.slots[cur]
		a.pendMu.Lock()
		if m.state != slotPending {
			a.pendMu.Unlock()
			return
		}
		next := m.next
		a.pendMu.Unlock()
		if !fn(m) {
			return
		}
		cur = next
	}
}

// PendingCount counts pending slots. Linear scan, diagnostic only.
func (a *Arena) PendingCount() int {
	a.pendMu.Lock()
	defer a.pendMu.Unlock()
	n := 0
	for cur := a.pendHead; cur != nilIndex; cur = a.slots[cur].next {
		n++
	}
	return n
}

// FreeCount counts free slots. Linear scan, diagnostic only.
func (a *Arena) FreeCount() int {
	a.freeMu.Lock()
	defer a.freeMu.Unlock()
	n := 0
	for cur := a.freeHead; cur != nilIndex; cur = a.slots[cur].next {
		n++
	}
	return n
}
