// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package delivery implements the consumer side of the uplink queue:
// it drains the pending list, transmits due messages through the radio
// driver, listens for downlink responses, correlates them to pending
// messages and feeds system-port time-sync responses into the device
// clock.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/absmach/uplink/calendar"
	"github.com/absmach/uplink/packets"
	"github.com/absmach/uplink/queue"
	"github.com/absmach/uplink/transport"
)

// ErrLinkDown is returned by Cycle when at least one transmit attempt
// failed. The caller is expected to consider rejoining the network.
var ErrLinkDown = errors.New("uplink transmit failed")

// Config holds delivery engine settings. Zero values are replaced with
// defaults by New.
type Config struct {
	// Version is the protocol version stamped into every header.
	Version uint8

	// MessageTimeout is how long a guaranteed message waits for an
	// acknowledgement before it is due for retransmission.
	MessageTimeout time.Duration

	// ListenWindow bounds the wait for a downlink after each uplink.
	ListenWindow time.Duration

	// CycleInterval is the pause between delivery cycles in Run.
	CycleInterval time.Duration

	// SweepInterval is the period of the expiry sweep and time resync.
	SweepInterval time.Duration

	// ExpiryOffsetDays selects the day-of-week bucket swept on each
	// maintenance pass: messages stamped (today + offset) mod 7 are
	// discarded. The default of 2 bounds queue growth from
	// permanently lost acknowledgements to roughly two days. Zero
	// selects the default; an offset of 0 days is not expressible,
	// since fresh messages carry today's stamp.
	ExpiryOffsetDays int

	// FailureThreshold is the number of consecutive transmit failures,
	// across all messages, that trips the breaker and restarts the
	// device.
	FailureThreshold uint32

	Logger  *slog.Logger
	Metrics *Metrics

	// Restart is the abstract fatal-restart effect (watchdog reset on
	// the device). Invoked at most once per engine.
	Restart func(reason string)

	// Indicator receives the first content byte of non-system
	// downlinks (the LED control byte on the reference device).
	Indicator func(value byte)

	// OnAck, when set, is called with each acknowledged message and
	// its round-trip time before the slot is released.
	OnAck func(m *queue.Message, rtt time.Duration)

	// Rejoin is invoked by Run when a cycle reports ErrLinkDown.
	Rejoin func(ctx context.Context) error
}

func (c *Config) setDefaults() {
	if c.MessageTimeout == 0 {
		c.MessageTimeout = 60 * time.Second
	}
	if c.ListenWindow == 0 {
		c.ListenWindow = 10 * time.Second
	}
	if c.CycleInterval == 0 {
		c.CycleInterval = 5 * time.Minute
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 24 * time.Hour
	}
	if c.ExpiryOffsetDays == 0 {
		c.ExpiryOffsetDays = 2
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine is the delivery loop state. All radio interaction happens on
// the goroutine calling Cycle or Run; producer contexts only touch the
// arena through Publish.
type Engine struct {
	cfg       Config
	arena     *queue.Arena
	clock     *calendar.Clock
	driver    transport.Driver
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
	sessionID uuid.UUID

	// draining is true until the first listen window that times out
	// with nothing received; inbound datagrams are discarded while it
	// holds, to flush stale downlinks buffered from a previous
	// session. Touched only by the delivery goroutine.
	draining bool

	restartOnce sync.Once
	rxBuf       [transport.MaxDatagramSize]byte
}

// New creates a delivery engine over an arena, clock and radio driver.
func New(arena *queue.Arena, clock *calendar.Clock, driver transport.Driver, cfg Config) *Engine {
	cfg.setDefaults()
	e := &Engine{
		cfg:       cfg,
		arena:     arena,
		clock:     clock,
		driver:    driver,
		sessionID: uuid.New(),
		draining:  true,
	}
	e.logger = cfg.Logger.With(slog.String("session_id", e.sessionID.String()))
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "uplink-transmit",
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("transmit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if to == gobreaker.StateOpen {
				e.fatal("persistent transmit failure")
			}
		},
	})
	return e
}

// SessionID returns the per-boot session identifier.
func (e *Engine) SessionID() uuid.UUID { return e.sessionID }

// Publish creates a message stamped with the current device time and
// queues it for delivery. It is safe to call from producer contexts
// concurrently with the delivery loop. Content longer than the wire
// limit is silently truncated. Pool exhaustion is fatal: the restart
// hook fires and the error is returned.
func (e *Engine) Publish(port, typ uint8, guaranteed bool, content []byte) error {
	m, err := e.arena.Acquire()
	if err != nil {
		e.fatal("message pool exhausted")
		return fmt.Errorf("publish on port %d: %w", port, err)
	}
	if len(content) > packets.MaxContentLength {
		content = content[:packets.MaxContentLength]
	}
	now := e.clock.Now()
	h := packets.Header{
		Version:       e.cfg.Version,
		Timestamp:     packets.NewTimestamp(now.DOW, now.SecondsOfDay()),
		Guaranteed:    guaranteed,
		Type:          typ & 0x0F,
		ContentLength: uint8(len(content)),
	}
	m.Header = h.Encode()
	copy(m.Content[:], content)
	m.ContentLength = uint8(len(content))
	m.Port = port
	m.Type = typ & 0x0F
	m.Guaranteed = guaranteed
	m.DOW = uint8(now.DOW)
	e.arena.InsertPending(m)
	e.cfg.Metrics.PoolInUse(context.Background(), 1)
	return nil
}

// SendTimeReport queues a system-port message carrying the device's
// current clock reading; the network answers with a signed offset.
func (e *Engine) SendTimeReport(guaranteed bool) error {
	content := packets.EncodeTimeReport(e.clock.Now())
	return e.Publish(packets.SystemPort, packets.TypeTimeSync, guaranteed, content[:])
}

// SendTimeProbe queues an all-zero time report. The reference device
// sends one right after the timed report at session start, so the far
// end can acknowledge without adjusting anything.
func (e *Engine) SendTimeProbe() error {
	var zero [packets.MaxContentLength]byte
	return e.Publish(packets.SystemPort, packets.TypeTimeSync, false, zero[:])
}

// Cycle walks the pending list once, transmitting every message that
// is due and listening for responses after each successful transmit.
// It returns ErrLinkDown when any transmit attempt failed.
func (e *Engine) Cycle(ctx context.Context) error {
	var linkErr error
	e.arena.Walk(func(m *queue.Message) bool {
		if ctx.Err() != nil {
			return false
		}
		if !m.SendTime.IsZero() && time.Since(m.SendTime) <= e.cfg.MessageTimeout {
			// Not yet due; move on so later messages still advance.
			return true
		}
		data := packets.MarshalDatagram(m.Header, m.Payload())
		_, err := e.breaker.Execute(func() (any, error) {
			return nil, e.driver.Transmit(data, m.Port)
		})
		if err != nil {
			linkErr = err
			e.cfg.Metrics.UplinkFailed(ctx)
			e.logger.Warn("uplink transmit failed",
				slog.Int("port", int(m.Port)),
				slog.Int("type", int(m.Type)),
				slog.Any("error", err))
			if !m.Guaranteed {
				e.evict(ctx, m)
			}
			return true
		}
		e.cfg.Metrics.UplinkSent(ctx)
		if m.Guaranteed {
			m.SendTime = time.Now()
		} else {
			e.evict(ctx, m)
		}
		e.listen(ctx)
		return true
	})
	if linkErr != nil {
		return fmt.Errorf("%w: %v", ErrLinkDown, linkErr)
	}
	return ctx.Err()
}

// listen waits for downlinks, draining everything available after each
// event. Each received event re-arms the window; the phase ends on the
// first window that elapses empty, which is also what ends the
// startup drain.
func (e *Engine) listen(ctx context.Context) {
	for ctx.Err() == nil {
		if err := e.driver.Listen(e.cfg.ListenWindow); err != nil {
			if e.draining {
				e.draining = false
				e.logger.Info("startup drain complete")
			}
			return
		}
		for {
			n, port, err := e.driver.Receive(e.rxBuf[:])
			if err != nil {
				break
			}
			e.handleInbound(ctx, e.rxBuf[:n], port)
		}
	}
}

func (e *Engine) handleInbound(ctx context.Context, data []byte, port uint8) {
	if e.draining {
		e.cfg.Metrics.Discarded(ctx)
		e.logger.Debug("discarding stale downlink",
			slog.Int("port", int(port)), slog.Int("len", len(data)))
		return
	}
	h, content, err := packets.UnmarshalDatagram(data)
	if err != nil {
		e.cfg.Metrics.Discarded(ctx)
		e.logger.Warn("malformed downlink",
			slog.Int("port", int(port)), slog.Int("len", len(data)), slog.Any("error", err))
		return
	}

	if m := e.arena.TakeByCorrelation(port, h.Timestamp, h.Guaranteed, h.Type); m != nil {
		e.cfg.Metrics.AckMatched(ctx)
		if !m.SendTime.IsZero() {
			rtt := time.Since(m.SendTime)
			e.cfg.Metrics.AckRTT(ctx, rtt)
			if e.cfg.OnAck != nil {
				e.cfg.OnAck(m, rtt)
			}
		}
		e.arena.Release(m)
		e.cfg.Metrics.PoolInUse(ctx, -1)
	}

	switch {
	case port == packets.SystemPort && h.Type == packets.TypeTimeSync:
		off, err := packets.DecodeTimeSync(content)
		if err != nil {
			e.logger.Warn("bad time-sync payload", slog.Any("error", err))
			return
		}
		now := e.clock.Adjust(off)
		e.logger.Info("clock synchronized", slog.String("time", now.String()))
	case port != packets.SystemPort:
		if len(content) > 0 && e.cfg.Indicator != nil {
			e.cfg.Indicator(content[0])
		}
	default:
		e.cfg.Metrics.Discarded(ctx)
		e.logger.Warn("unknown downlink message",
			slog.Int("port", int(port)), slog.Int("type", int(h.Type)))
	}
}

// Sweep discards every pending message, guaranteed or not, whose
// day-of-week stamp equals today's day of week plus the configured
// offset. Day of week repeats every seven days, so this is a coarse
// age bound rather than an exact one; it caps worst-case queue growth
// from acknowledgements that never arrive.
func (e *Engine) Sweep(ctx context.Context) int {
	target := uint8((e.clock.Now().DOW + e.cfg.ExpiryOffsetDays) % 7)
	n := e.arena.ExpireWhere(func(m *queue.Message) bool {
		return m.DOW == target
	})
	if n > 0 {
		e.cfg.Metrics.Expired(ctx, int64(n))
		e.cfg.Metrics.PoolInUse(ctx, int64(-n))
		e.logger.Info("expired stale messages",
			slog.Int("count", n), slog.Int("dow", int(target)))
	}
	return n
}

// Run drives delivery cycles and periodic maintenance until the
// context is cancelled. On ErrLinkDown it invokes the Rejoin hook when
// one is configured.
func (e *Engine) Run(ctx context.Context) error {
	cycle := time.NewTicker(e.cfg.CycleInterval)
	defer cycle.Stop()
	sweep := time.NewTicker(e.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		if err := e.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrLinkDown) && e.cfg.Rejoin != nil {
				e.logger.Warn("link down, attempting rejoin")
				if rerr := e.cfg.Rejoin(ctx); rerr != nil {
					e.logger.Error("rejoin failed", slog.Any("error", rerr))
				}
				continue
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			e.Sweep(ctx)
			if err := e.SendTimeReport(false); err != nil {
				e.logger.Error("time resync enqueue failed", slog.Any("error", err))
			}
		case <-cycle.C:
		}
	}
}

// evict removes a message from the pending list and returns its slot
// to the pool.
func (e *Engine) evict(ctx context.Context, m *queue.Message) {
	if e.arena.RemovePending(m) {
		e.arena.Release(m)
		e.cfg.Metrics.PoolInUse(ctx, -1)
	}
}

// fatal fires the abstract restart effect at most once.
func (e *Engine) fatal(reason string) {
	e.restartOnce.Do(func() {
		e.logger.Error("fatal condition, restarting", slog.String("reason", reason))
		if e.cfg.Restart != nil {
			e.cfg.Restart(reason)
		}
	})
}
