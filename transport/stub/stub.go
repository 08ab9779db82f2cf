// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package stub provides a scripted in-memory transport driver used by
// tests and by the uplinksim loopback harness.
package stub

import (
	"sync"
	"time"

	"github.com/absmach/uplink/transport"
)

// Datagram is one unit of scripted traffic.
type Datagram struct {
	Data []byte
	Port uint8
}

// Driver is a transport.Driver backed by in-memory queues. Transmits
// are recorded; inbound datagrams are delivered in the order queued.
type Driver struct {
	mu        sync.Mutex
	inbound   []Datagram
	transmits []Datagram
	failNext  int

	// OnTransmit, when set, is invoked after every successful transmit
	// with a copy of the datagram. The loopback harness uses it to
	// schedule echoed acknowledgements.
	OnTransmit func(Datagram)

	// RealListen makes Listen sleep for the full window when no data
	// is queued instead of returning immediately. Tests leave it off.
	RealListen bool
}

var _ transport.Driver = (*Driver)(nil)

// New creates an empty stub driver.
func New() *Driver {
	return &Driver{}
}

// Transmit records the datagram, or fails if a failure was scripted.
func (d *Driver) Transmit(data []byte, port uint8) error {
	d.mu.Lock()
	if d.failNext > 0 {
		d.failNext--
		d.mu.Unlock()
		return transport.ErrTimeout
	}
	dg := Datagram{Data: append([]byte(nil), data...), Port: port}
	d.transmits = append(d.transmits, dg)
	hook := d.OnTransmit
	d.mu.Unlock()

	if hook != nil {
		hook(dg)
	}
	return nil
}

// Listen reports whether inbound data is queued.
func (d *Driver) Listen(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		n := len(d.inbound)
		d.mu.Unlock()
		if n > 0 {
			return nil
		}
		if !d.RealListen || !time.Now().Before(deadline) {
			return transport.ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// Receive pops the oldest queued inbound datagram into buf.
func (d *Driver) Receive(buf []byte) (int, uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.inbound) == 0 {
		return 0, 0, transport.ErrNoData
	}
	dg := d.inbound[0]
	d.inbound = d.inbound[1:]
	n := copy(buf, dg.Data)
	return n, dg.Port, nil
}

// QueueInbound schedules a datagram for delivery to the engine.
func (d *Driver) QueueInbound(data []byte, port uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = append(d.inbound, Datagram{Data: append([]byte(nil), data...), Port: port})
}

// FailTransmits scripts the next n transmit attempts to fail.
func (d *Driver) FailTransmits(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

// Transmits returns a snapshot of everything transmitted so far.
func (d *Driver) Transmits() []Datagram {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Datagram, len(d.transmits))
	copy(out, d.transmits)
	return out
}
