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

package viewer

import (
	"time"

	"go.uber.org/atomic"

	"github.com/frostbyte73/core"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/protocol/logger"
)

const (
	DefaultQueueSize   = 64
	DefaultCallTimeout = 250 * time.Millisecond
)

// OpType represents calls that can be sent to a guarded viewer.
type OpType int

const (
	OpPlay        OpType = iota // start native playback
	OpStop                      // stop native playback
	OpSeek                      // seek to a media position
	OpSetSpeed                  // change native playback speed
	OpSetOffset                 // move the viewer on the session timeline
	OpCurrentTime               // query the media position
	OpClose                     // release the viewer and exit the worker
)

func (o OpType) String() string {
	switch o {
	case OpPlay:
		return "Play"
	case OpStop:
		return "Stop"
	case OpSeek:
		return "SeekTo"
	case OpSetSpeed:
		return "SetPlaybackSpeed"
	case OpSetOffset:
		return "SetOffset"
	case OpCurrentTime:
		return "CurrentTime"
	case OpClose:
		return "Close"
	default:
		return "Unknown"
	}
}

// Operation is a message sent to a guard's worker.
type Operation struct {
	Type   OpType
	Time   int64
	Rate   float64
	Result chan<- timeResult // CurrentTime only
}

type timeResult struct {
	time int64
	err  error
}

// ErrorHandler receives failures of calls that already returned to the caller.
type ErrorHandler func(viewerID string, op OpType, err error)

// Guard owns a viewer and calls it from a single worker goroutine, so a stalled
// plugin cannot block the clock. Commands return once queued. Queries wait at
// most the configured timeout and fall back to the last known answer.
type Guard struct {
	v       Viewer
	id      string
	timeout time.Duration
	onError ErrorHandler

	opChan  chan Operation
	closing core.Fuse // broken when Close gives up on the queue
	done    core.Fuse // broken when worker exits

	duration int64
	fps      float64
	assumed  bool

	offset   atomic.Int64
	lastTime atomic.Int64
	playing  atomic.Bool
}

var _ Viewer = (*Guard)(nil)

func NewGuard(v Viewer, timeout time.Duration, queueSize int, onError ErrorHandler) *Guard {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	g := &Guard{
		v:        v,
		id:       v.ID(),
		timeout:  timeout,
		onError:  onError,
		opChan:   make(chan Operation, queueSize),
		duration: v.Duration(),
		fps:      v.FrameRate(),
		assumed:  v.UsingAssumedFPS(),
	}
	g.offset.Store(v.Offset())
	g.playing.Store(v.IsPlaying())

	go g.run()
	return g
}

// Unwrap returns the guarded viewer.
func (g *Guard) Unwrap() Viewer {
	return g.v
}

func (g *Guard) ID() string {
	return g.id
}

func (g *Guard) Play() error {
	g.playing.Store(true)
	return g.submit(Operation{Type: OpPlay})
}

func (g *Guard) Stop() error {
	g.playing.Store(false)
	return g.submit(Operation{Type: OpStop})
}

func (g *Guard) SeekTo(ms int64) error {
	g.lastTime.Store(ms)
	return g.submit(Operation{Type: OpSeek, Time: ms})
}

func (g *Guard) SetPlaybackSpeed(rate float64) error {
	return g.submit(Operation{Type: OpSetSpeed, Rate: rate})
}

func (g *Guard) CurrentTime() (int64, error) {
	result := make(chan timeResult, 1)
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.opChan <- Operation{Type: OpCurrentTime, Result: result}:
	case <-g.done.Watch():
		return g.lastTime.Load(), errors.ErrViewerClosed
	case <-timer.C:
		return g.lastTime.Load(), errors.ErrViewerTimeout(g.id, OpCurrentTime.String())
	}

	select {
	case res := <-result:
		return res.time, res.err
	case <-g.done.Watch():
		return g.lastTime.Load(), errors.ErrViewerClosed
	case <-timer.C:
		return g.lastTime.Load(), errors.ErrViewerTimeout(g.id, OpCurrentTime.String())
	}
}

func (g *Guard) Duration() int64 {
	return g.duration
}

func (g *Guard) Offset() int64 {
	return g.offset.Load()
}

func (g *Guard) SetOffset(ms int64) {
	g.offset.Store(ms)
	if err := g.submit(Operation{Type: OpSetOffset, Time: ms}); err != nil {
		g.report(OpSetOffset, err)
	}
}

func (g *Guard) IsPlaying() bool {
	return g.playing.Load()
}

func (g *Guard) FrameRate() float64 {
	return g.fps
}

func (g *Guard) UsingAssumedFPS() bool {
	return g.assumed
}

// Close drains queued calls, releases the viewer and waits up to the timeout
// for the worker to exit. On timeout the worker drops whatever is still queued
// and releases the viewer as soon as its current call returns.
func (g *Guard) Close() error {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case g.opChan <- Operation{Type: OpClose}:
	case <-g.done.Watch():
		return nil
	case <-timer.C:
		g.closing.Break()
		return errors.ErrViewerTimeout(g.id, OpClose.String())
	}

	select {
	case <-g.done.Watch():
		return nil
	case <-timer.C:
		g.closing.Break()
		return errors.ErrViewerTimeout(g.id, OpClose.String())
	}
}

func (g *Guard) submit(op Operation) error {
	if g.done.IsBroken() || g.closing.IsBroken() {
		return errors.ErrViewerClosed
	}

	select {
	case g.opChan <- op:
		return nil
	case <-g.done.Watch():
		return errors.ErrViewerClosed
	default:
		logger.Warnw("viewer queue full", nil, "viewerID", g.id, "op", op.Type.String())
		return errors.ErrViewerBusy
	}
}

func (g *Guard) run() {
	defer g.done.Break()

	for {
		select {
		case <-g.closing.Watch():
			g.process(Operation{Type: OpClose})
			return
		case op := <-g.opChan:
			if g.closing.IsBroken() {
				g.process(Operation{Type: OpClose})
				return
			}
			if exit := g.process(op); exit {
				return
			}
		}
	}
}

func (g *Guard) process(op Operation) (exit bool) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.ErrViewerPanic(g.id, r)
			g.report(op.Type, err)
			if op.Result != nil {
				op.Result <- timeResult{time: g.lastTime.Load(), err: err}
			}
			exit = op.Type == OpClose
		}
	}()

	var err error
	switch op.Type {
	case OpPlay:
		err = g.v.Play()
	case OpStop:
		err = g.v.Stop()
	case OpSeek:
		err = g.v.SeekTo(op.Time)
	case OpSetSpeed:
		err = g.v.SetPlaybackSpeed(op.Rate)
	case OpSetOffset:
		g.v.SetOffset(op.Time)
	case OpCurrentTime:
		var t int64
		t, err = g.v.CurrentTime()
		if err == nil {
			g.lastTime.Store(t)
		}
		op.Result <- timeResult{time: t, err: err}
		return false
	case OpClose:
		if c, ok := g.v.(Closer); ok {
			err = c.Close()
		}
		if err != nil {
			g.report(op.Type, err)
		}
		return true
	}

	if err != nil {
		g.report(op.Type, err)
	}
	g.playing.Store(g.v.IsPlaying())
	return false
}

func (g *Guard) report(op OpType, err error) {
	if g.onError != nil {
		g.onError(g.id, op, err)
		return
	}
	logger.Warnw("viewer call failed", err, "viewerID", g.id, "op", op.String())
}
