// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the contract the delivery engine consumes
// from the radio stack. Network join, duty-cycle enforcement,
// encryption and the bit-level transmission all live behind this
// interface.
package transport

import (
	"errors"
	"time"
)

// ErrTimeout is returned by Listen when the window elapses with no
// inbound event.
var ErrTimeout = errors.New("transport: listen window timed out")

// ErrNoData is returned by Receive when no datagram is buffered.
var ErrNoData = errors.New("transport: no datagram available")

// MaxDatagramSize is the largest downlink payload a driver may hand
// back in one Receive call.
const MaxDatagramSize = 242

// Driver is the abstract radio. Implementations are expected to be
// used from a single goroutine; the delivery loop is the only caller.
type Driver interface {
	// Transmit attempts to send one datagram on a logical port. It
	// returns an error when the attempt fails or times out at the MAC
	// layer; the engine decides retry policy.
	Transmit(data []byte, port uint8) error

	// Listen blocks for at most timeout waiting for an inbound event,
	// returning nil when one is available and ErrTimeout otherwise. It
	// always returns within the window.
	Listen(timeout time.Duration) error

	// Receive is a non-blocking poll copying a buffered datagram into
	// buf. It returns the datagram length and port, or ErrNoData.
	Receive(buf []byte) (int, uint8, error)
}
