// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package calendar

import (
	"sync"
	"time"
)

// Clock is the device wall clock. It keeps a base DateTime plus the
// monotonic instant it was set at, and derives the current time from
// the elapsed span. The delivery loop sets it when a time-sync response
// arrives; producer contexts read it when stamping new messages.
type Clock struct {
	mu    sync.RWMutex
	base  DateTime
	setAt time.Time
}

// NewClock creates a clock set to the given datetime. The DOW field is
// recomputed from the date, so callers do not need to fill it in.
func NewClock(dt DateTime) *Clock {
	c := &Clock{}
	c.Set(dt)
	return c
}

// Now returns the current wall-clock time.
func (c *Clock) Now() DateTime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return AddSeconds(c.base, int(time.Since(c.setAt)/time.Second))
}

// Set replaces the clock state.
func (c *Clock) Set(dt DateTime) {
	dt.DOW = DayOfWeek(dt.Day, dt.Month, dt.Year)
	c.mu.Lock()
	c.base = dt
	c.setAt = time.Now()
	c.mu.Unlock()
}

// Adjust applies a signed offset to the current time and makes the
// normalized result the new clock state. It returns the new time.
func (c *Clock) Adjust(off Offset) DateTime {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := AddSeconds(c.base, int(time.Since(c.setAt)/time.Second))
	c.base = ApplyOffset(now, off)
	c.setAt = time.Now()
	return c.base
}
