// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OpenTelemetry instruments for the delivery engine.
// A nil *Metrics is valid and records nothing, so the engine runs fine
// on builds without an exporter wired up.
type Metrics struct {
	meter metric.Meter

	uplinksSent   metric.Int64Counter
	uplinksFailed metric.Int64Counter
	acksMatched   metric.Int64Counter
	expired       metric.Int64Counter
	discarded     metric.Int64Counter

	poolInUse metric.Int64UpDownCounter

	ackRTT metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with all instruments
// initialized against the global meter provider.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("uplink-delivery"),
	}

	var err error
	m.uplinksSent, err = m.meter.Int64Counter(
		"uplink.messages.sent.total",
		metric.WithDescription("Total successful uplink transmit attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create uplinksSent counter: %w", err)
	}

	m.uplinksFailed, err = m.meter.Int64Counter(
		"uplink.messages.failed.total",
		metric.WithDescription("Total failed uplink transmit attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create uplinksFailed counter: %w", err)
	}

	m.acksMatched, err = m.meter.Int64Counter(
		"uplink.acks.matched.total",
		metric.WithDescription("Total downlinks correlated to a pending message"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create acksMatched counter: %w", err)
	}

	m.expired, err = m.meter.Int64Counter(
		"uplink.messages.expired.total",
		metric.WithDescription("Total messages removed by the expiry sweep"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expired counter: %w", err)
	}

	m.discarded, err = m.meter.Int64Counter(
		"uplink.messages.discarded.total",
		metric.WithDescription("Total downlinks discarded as stale, malformed or unknown"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discarded counter: %w", err)
	}

	m.poolInUse, err = m.meter.Int64UpDownCounter(
		"uplink.pool.inuse",
		metric.WithDescription("Message slots currently outside the free list"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poolInUse gauge: %w", err)
	}

	m.ackRTT, err = m.meter.Float64Histogram(
		"uplink.ack.rtt.seconds",
		metric.WithDescription("Round-trip time between transmit and matched acknowledgement"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ackRTT histogram: %w", err)
	}

	return m, nil
}

// UplinkSent records a successful transmit attempt.
func (m *Metrics) UplinkSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.uplinksSent.Add(ctx, 1)
}

// UplinkFailed records a failed transmit attempt.
func (m *Metrics) UplinkFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.uplinksFailed.Add(ctx, 1)
}

// AckMatched records a downlink correlated to a pending message.
func (m *Metrics) AckMatched(ctx context.Context) {
	if m == nil {
		return
	}
	m.acksMatched.Add(ctx, 1)
}

// Expired records messages removed by the expiry sweep.
func (m *Metrics) Expired(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.expired.Add(ctx, n)
}

// Discarded records a dropped downlink.
func (m *Metrics) Discarded(ctx context.Context) {
	if m == nil {
		return
	}
	m.discarded.Add(ctx, 1)
}

// PoolInUse adjusts the in-use slot gauge.
func (m *Metrics) PoolInUse(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.poolInUse.Add(ctx, delta)
}

// AckRTT records an acknowledgement round-trip time.
func (m *Metrics) AckRTT(ctx context.Context, rtt time.Duration) {
	if m == nil {
		return
	}
	m.ackRTT.Record(ctx, rtt.Seconds())
}
