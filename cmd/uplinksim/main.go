// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// uplinksim drives a delivery engine against an in-memory loopback
// link with configurable latency and loss, and reports acknowledgement
// round-trip times.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/absmach/uplink/calendar"
	"github.com/absmach/uplink/delivery"
	"github.com/absmach/uplink/packets"
	"github.com/absmach/uplink/queue"
	"github.com/absmach/uplink/transport/stub"
)

func main() {
	var (
		numMessages = flag.Int("n", 100, "Messages to deliver")
		poolSize    = flag.Int("pool", 64, "Message pool size")
		latency     = flag.Duration("latency", 50*time.Millisecond, "Simulated ack latency")
		loss        = flag.Float64("loss", 0.1, "Ack loss probability (0..1)")
		timeout     = flag.Duration("timeout", 2*time.Minute, "Run deadline")
		port        = flag.Uint("port", 2, "Uplink port")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rngMu sync.Mutex

	driver := stub.New()
	driver.RealListen = true
	driver.OnTransmit = func(dg stub.Datagram) {
		rngMu.Lock()
		dropped := rng.Float64() < *loss
		rngMu.Unlock()
		if dropped {
			return
		}
		go func() {
			time.Sleep(*latency)
			driver.QueueInbound(ackFor(dg), dg.Port)
		}()
	}

	hist := hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)
	var histMu sync.Mutex
	var acked atomic.Int64

	arena := queue.New(*poolSize, logger)
	clock := calendar.NewClock(calendar.DateTime{Year: 2023, Month: 2, Day: 26})

	engine := delivery.New(arena, clock, driver, delivery.Config{
		MessageTimeout: 500 * time.Millisecond,
		ListenWindow:   100 * time.Millisecond,
		CycleInterval:  20 * time.Millisecond,
		Logger:         logger,
		OnAck: func(m *queue.Message, rtt time.Duration) {
			histMu.Lock()
			_ = hist.RecordValue(int64(rtt / time.Microsecond))
			histMu.Unlock()
			acked.Add(1)
		},
		Restart: func(reason string) {
			fmt.Fprintf(os.Stderr, "fatal: %s\n", reason)
			os.Exit(1)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	published := 0
	for published < *numMessages && ctx.Err() == nil {
		// Stay below pool capacity so loss-induced retries never
		// exhaust the arena.
		for arena.PendingCount() < *poolSize/2 && published < *numMessages {
			if err := engine.Publish(uint8(*port), 1, true, []byte{byte(published)}); err != nil {
				fmt.Fprintf(os.Stderr, "publish: %v\n", err)
				os.Exit(1)
			}
			published++
		}
		if err := engine.Cycle(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "cycle: %v\n", err)
		}
	}
	for acked.Load() < int64(*numMessages) && ctx.Err() == nil {
		if err := engine.Cycle(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "cycle: %v\n", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	elapsed := time.Since(start)

	histMu.Lock()
	defer histMu.Unlock()
	fmt.Printf("delivered %d/%d messages in %v (%.1f msg/s)\n",
		acked.Load(), *numMessages, elapsed.Round(time.Millisecond),
		float64(acked.Load())/elapsed.Seconds())
	fmt.Printf("ack rtt (us): p50=%d p90=%d p99=%d max=%d\n",
		hist.ValueAtQuantile(50), hist.ValueAtQuantile(90),
		hist.ValueAtQuantile(99), hist.Max())
}

// ackFor builds the downlink acknowledging an uplink datagram: the
// same header word for correlation, with a time-sync body answering
// system-port traffic with a zero offset.
func ackFor(dg stub.Datagram) []byte {
	h, content, err := packets.UnmarshalDatagram(dg.Data)
	if err != nil {
		return nil
	}
	if dg.Port == packets.SystemPort && h.Type == packets.TypeTimeSync {
		body := make([]byte, 7)
		for i := range body {
			body[i] = 128 // biased zero delta
		}
		return packets.MarshalDatagram(h.Encode(), body)
	}
	return packets.MarshalDatagram(h.Encode(), content)
}
