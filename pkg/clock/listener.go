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
	"fmt"
)

// Listener receives clock transitions. Callbacks never overlap, and a callback
// that changes the clock sees the resulting events after it returns.
type Listener interface {
	ClockStart(time int64)
	ClockTick(time int64)
	ClockStop(time int64)
	ClockRate(rate float64)
	ClockStep(time int64)
}

type EventType int

const (
	EventStart EventType = iota
	EventTick
	EventStop
	EventRate
	EventStep
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventTick:
		return "tick"
	case EventStop:
		return "stop"
	case EventRate:
		return "rate"
	case EventStep:
		return "step"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

type event struct {
	typ  EventType
	time int64
	rate float64
}

func (e event) deliver(l Listener) {
	switch e.typ {
	case EventStart:
		l.ClockStart(e.time)
	case EventTick:
		l.ClockTick(e.time)
	case EventStop:
		l.ClockStop(e.time)
	case EventRate:
		l.ClockRate(e.rate)
	case EventStep:
		l.ClockStep(e.time)
	}
}

// must hold c.mu
func (c *Clock) enqueue(e event) {
	c.pending = append(c.pending, e)
}

// flush delivers queued events unless another caller is already doing so, in
// which case that caller picks them up.
func (c *Clock) flush() {
	c.mu.Lock()
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	defer func() {
		c.dispatching = false
		c.mu.Unlock()
	}()

	for len(c.pending) > 0 {
		e := c.pending[0]
		c.pending = c.pending[1:]
		c.deliverLocked(e, c.listeners)
	}
}

// deliverLocked releases c.mu while listeners run and holds it again on return,
// including when a listener panics.
func (c *Clock) deliverLocked(e event, listeners []Listener) {
	c.mu.Unlock()
	defer c.mu.Lock()

	for _, l := range listeners {
		e.deliver(l)
	}
}

// Recorder is a Listener that keeps every event it receives.
type Recorder struct {
	Events []Event
}

type Event struct {
	Type EventType
	Time int64
	Rate float64
}

func (r *Recorder) ClockStart(time int64) {
	r.Events = append(r.Events, Event{Type: EventStart, Time: time})
}

func (r *Recorder) ClockTick(time int64) {
	r.Events = append(r.Events, Event{Type: EventTick, Time: time})
}

func (r *Recorder) ClockStop(time int64) {
	r.Events = append(r.Events, Event{Type: EventStop, Time: time})
}

func (r *Recorder) ClockRate(rate float64) {
	r.Events = append(r.Events, Event{Type: EventRate, Rate: rate})
}

func (r *Recorder) ClockStep(time int64) {
	r.Events = append(r.Events, Event{Type: EventStep, Time: time})
}

func (r *Recorder) Count(t EventType) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *Recorder) Types() []EventType {
	types := make([]EventType, 0, len(r.Events))
	for _, e := range r.Events {
		types = append(types, e.Type)
	}
	return types
}
