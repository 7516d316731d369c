// Copyright 2025 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clock

import (
	"math"
	"time"

	"github.com/frostbyte73/core"
	"github.com/linkdata/deadlock"

	"github.com/livekit/protocol/logger"
)

const DefaultTickInterval = 31 * time.Millisecond

// Clock is the logical playback clock. Time only moves on ticks while running,
// scaled by the current rate, and never goes below zero.
type Clock struct {
	// held by Tick and Do, so actions from other goroutines never interleave
	// with a dispatch in progress
	actionMu deadlock.Mutex

	mu       deadlock.Mutex
	interval time.Duration
	now      func() time.Time

	timeMs  float64
	rate    float64
	stopped bool
	last    time.Time

	listeners   []Listener
	pending     []event
	dispatching bool

	closed core.Fuse
}

type Option func(*Clock)

// WithTimeSource replaces the wall clock used to measure elapsed time between ticks.
func WithTimeSource(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

func WithTickInterval(interval time.Duration) Option {
	return func(c *Clock) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

func New(opts ...Option) *Clock {
	c := &Clock{
		interval: DefaultTickInterval,
		now:      time.Now,
		rate:     1,
		stopped:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.last = c.now()
	return c
}

// RegisterListener adds l to the end of the notification order.
func (c *Clock) RegisterListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	listeners := make([]Listener, len(c.listeners), len(c.listeners)+1)
	copy(listeners, c.listeners)
	c.listeners = append(listeners, l)
}

func (c *Clock) Time() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timeLocked()
}

func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rate
}

func (c *Clock) IsStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopped
}

// SetTime moves the clock to ms and emits a step. A running clock keeps running
// from the new position.
func (c *Clock) SetTime(ms int64) {
	c.mu.Lock()
	c.setTimeLocked(ms)
	c.enqueue(event{typ: EventStep, time: c.timeLocked()})
	c.mu.Unlock()

	c.flush()
}

// SetTimeSilently moves the clock without notifying anyone. It is meant for
// listeners correcting the clock from inside a callback.
func (c *Clock) SetTimeSilently(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setTimeLocked(ms)
}

func (c *Clock) StepTime(delta int64) {
	c.mu.Lock()
	c.setTimeLocked(c.timeLocked() + delta)
	c.enqueue(event{typ: EventStep, time: c.timeLocked()})
	c.mu.Unlock()

	c.flush()
}

func (c *Clock) SetRate(rate float64) {
	c.mu.Lock()
	c.rate = rate
	c.enqueue(event{typ: EventRate, rate: rate})
	c.mu.Unlock()

	c.flush()
}

func (c *Clock) Start() {
	c.mu.Lock()
	if !c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = false
	c.last = c.now()
	c.enqueue(event{typ: EventStart, time: c.timeLocked()})
	c.mu.Unlock()

	c.flush()
}

// Stop freezes the clock and resets its rate to zero. Stopping a stopped clock
// does nothing.
func (c *Clock) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.rate = 0
	c.enqueue(event{typ: EventRate, rate: 0})
	c.enqueue(event{typ: EventStop, time: c.timeLocked()})
	c.mu.Unlock()

	c.flush()
}

// Do runs fn exclusively with ticks and other calls to Do. Every event caused
// by fn has been delivered to all listeners when Do returns. fn and listener
// callbacks must not call Do.
func (c *Clock) Do(fn func()) {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	fn()
	c.flush()
}

// Tick advances a running clock by the elapsed wall time multiplied by the rate.
func (c *Clock) Tick() {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	now := c.now()
	if elapsed := now.Sub(c.last); elapsed > 0 {
		c.timeMs += c.rate * float64(elapsed) / float64(time.Millisecond)
		if c.timeMs < 0 {
			c.timeMs = 0
		}
	}
	c.last = now
	c.enqueue(event{typ: EventTick, time: c.timeLocked()})
	c.mu.Unlock()

	c.flush()
}

// Run ticks the clock until Close is called.
func (c *Clock) Run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logger.Debugw("clock running", "interval", c.interval)
	for {
		select {
		case <-c.closed.Watch():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

func (c *Clock) Close() {
	c.closed.Break()
}

func (c *Clock) timeLocked() int64 {
	return int64(math.Floor(c.timeMs))
}

func (c *Clock) setTimeLocked(ms int64) {
	if ms < 0 {
		ms = 0
	}
	c.timeMs = float64(ms)
	c.last = c.now()
}
