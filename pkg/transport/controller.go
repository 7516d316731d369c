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

package transport

import (
	"github.com/livekit/playsync/pkg/config"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/logging"
	"github.com/livekit/playsync/pkg/playback"
	"github.com/livekit/playsync/pkg/stats"
	"github.com/livekit/playsync/pkg/timestamp"
	"github.com/livekit/protocol/logger"
)

type Clock interface {
	Time() int64
	Rate() float64
	IsStopped() bool
	SetRate(rate float64)
	Start()
	Stop()
	SetTime(ms int64)
	StepTime(delta int64)
	Do(fn func())
}

// ViewerCounter reports how many viewers take part in the session.
type ViewerCounter interface {
	Len() int
}

// JogModifier scales a jog by a number of frames.
type JogModifier int

const (
	JogNone  JogModifier = iota // one frame
	JogShift                    // transport.shift_jog frames
	JogCtrl                     // transport.ctrl_jog frames
)

// Modifier resolves held keys into a jog modifier. Ctrl wins over shift.
func Modifier(shift, ctrl bool) JogModifier {
	switch {
	case ctrl:
		return JogCtrl
	case shift:
		return JogShift
	default:
		return JogNone
	}
}

type State struct {
	Playing bool
	Rate    float64
}

// Controller maps user transport actions onto the clock. Actions may be called
// from any goroutine; each runs between clock ticks.
type Controller struct {
	conf    config.TransportConfig
	clock   Clock
	model   *playback.Model
	viewers ViewerCounter
	userLog logging.UserLog
	monitor *stats.SyncMonitor
}

func NewController(
	conf config.TransportConfig,
	clock Clock,
	model *playback.Model,
	viewers ViewerCounter,
	userLog logging.UserLog,
	monitor *stats.SyncMonitor,
) *Controller {
	return &Controller{
		conf:    conf,
		clock:   clock,
		model:   model,
		viewers: viewers,
		userLog: userLog,
		monitor: monitor,
	}
}

func (c *Controller) State() State {
	return State{
		Playing: !c.clock.IsStopped(),
		Rate:    c.clock.Rate(),
	}
}

// Play plays at normal speed, starting over when stopped at the end of the window.
func (c *Controller) Play() {
	c.clock.Do(func() {
		if c.clock.IsStopped() && c.clock.Time() >= c.model.WindowEnd() {
			c.jumpTo(c.model.WindowStart())
		}
		c.playAt(c.conf.PlayRate)
	})
	c.record("play", nil)
}

func (c *Controller) Forward() {
	c.clock.Do(func() {
		c.playAt(c.conf.ForwardRate)
	})
	c.record("forward", nil)
}

func (c *Controller) Rewind() {
	c.clock.Do(func() {
		c.playAt(c.conf.RewindRate)
	})
	c.record("rewind", nil)
}

// Pause stops the clock and remembers its rate, or resumes at the remembered rate.
func (c *Controller) Pause() {
	c.clock.Do(c.pause)
	c.record("pause", nil)
}

func (c *Controller) Stop() {
	c.clock.Do(c.stop)
	c.record("stop", nil)
}

func (c *Controller) ShuttleForward() error {
	return c.do(func() error {
		return c.shuttle(1, "shuttle_forward")
	})
}

func (c *Controller) ShuttleBack() error {
	return c.do(func() error {
		return c.shuttle(-1, "shuttle_back")
	})
}

// JogForward moves one or more frames ahead. A running clock is only stopped.
func (c *Controller) JogForward(mod JogModifier) error {
	return c.do(func() error {
		return c.jog(1, mod, "jog_forward")
	})
}

func (c *Controller) JogBack(mod JogModifier) error {
	return c.do(func() error {
		return c.jog(-1, mod, "jog_back")
	})
}

// Find moves the needle to ms, limited to the window.
func (c *Controller) Find(ms int64) {
	c.clock.Do(func() {
		c.jumpTo(ms)
	})
	c.record("find", nil)
}

func (c *Controller) FindTimestamp(value string) error {
	ms, err := timestamp.Parse(value)
	if err != nil {
		c.reject("find", "unable to find within video", err)
		return err
	}
	c.Find(ms)
	return nil
}

// GoBack moves the needle ms earlier, limited to the window.
func (c *Controller) GoBack(ms int64) {
	c.clock.Do(func() {
		c.jump(-ms)
	})
	c.record("go_back", nil)
}

func (c *Controller) GoBackTimestamp(value string) error {
	ms, err := timestamp.Parse(value)
	if err != nil {
		c.reject("go_back", "unable to go back within video", err)
		return err
	}
	c.GoBack(ms)
	return nil
}

// SetRegionOfInterest limits playback to [start, end] and moves the needle to start.
func (c *Controller) SetRegionOfInterest(start, end int64) error {
	if c.viewers.Len() == 0 {
		c.reject("set_region", "unable to set playback region", errors.ErrNoViewers)
		return errors.ErrNoViewers
	}
	if end < start {
		end = start
	}
	c.clock.Do(func() {
		start, end = c.model.SetWindow(start, end)
		c.jumpTo(start)
	})

	logger.Debugw("region of interest set", "start", start, "end", end)
	c.record("set_region", nil)
	return nil
}

func (c *Controller) SetRegionOfInterestTimestamps(startValue, endValue string) error {
	start, err := timestamp.Parse(startValue)
	if err != nil {
		c.reject("set_region", "unable to set playback region", err)
		return err
	}
	end, err := timestamp.Parse(endValue)
	if err != nil {
		c.reject("set_region", "unable to set playback region", err)
		return err
	}
	return c.SetRegionOfInterest(start, end)
}

func (c *Controller) ClearRegionOfInterest() {
	c.clock.Do(func() {
		c.model.ClearWindow()
		c.jumpTo(c.model.WindowStart())
	})
	c.record("clear_region", nil)
}

func (c *Controller) shuttle(jump int, action string) error {
	rate := c.clock.Rate()
	if rate == 0 {
		rate = c.model.PauseRate()
	}

	next, err := NextShuttleRate(rate, jump)
	if err != nil {
		logger.Warnw("cannot shuttle", err, "rate", rate, "jump", jump)
		c.record(action, err)
		return err
	}

	c.model.SetPauseRate(0)
	c.shuttleAt(next)
	c.record(action, nil)
	return nil
}

func (c *Controller) pause() {
	if !c.clock.IsStopped() {
		c.model.SetPauseRate(c.clock.Rate())
		c.clock.Stop()
		return
	}
	if rate := c.model.PauseRate(); rate != 0 {
		c.shuttleAt(rate)
	}
}

func (c *Controller) jog(direction int64, mod JogModifier, action string) error {
	if !c.clock.IsStopped() {
		c.stop()
		c.record(action, nil)
		return nil
	}

	fps := c.model.CurrentFPS()
	if fps <= 0 {
		c.reject(action, "unable to jog", errors.ErrNoFrameRate)
		return errors.ErrNoFrameRate
	}

	// frames shorter than a millisecond jog by one millisecond
	step := max(int64(1000/fps), 1)
	frames := c.frames(mod)
	now := c.clock.Time()
	offGrid := now % step

	var target int64
	switch {
	case direction > 0:
		target = now - offGrid + frames*step
	case offGrid == 0:
		target = now - frames*step
	default:
		target = now - offGrid - (frames-1)*step
	}

	if start, end := c.model.Window(); target >= start && target <= end {
		c.stop()
		c.clock.StepTime(target - now)
	} else {
		c.jumpTo(target)
	}
	c.record(action, nil)
	return nil
}

func (c *Controller) frames(mod JogModifier) int64 {
	switch mod {
	case JogCtrl:
		return c.conf.CtrlJog
	case JogShift:
		return c.conf.ShiftJog
	default:
		return 1
	}
}

func (c *Controller) jump(delta int64) {
	now := c.clock.Time()
	target := now + delta
	if start, end := c.model.Window(); target > start && target <= end {
		c.stop()
		c.clock.StepTime(delta)
		return
	}
	c.jumpTo(target)
}

func (c *Controller) jumpTo(ms int64) {
	target := c.model.ClampToWindow(ms)
	c.stop()
	c.clock.SetTime(target)
}

func (c *Controller) playAt(rate float64) {
	c.model.SetPauseRate(0)
	c.shuttleAt(rate)
}

func (c *Controller) shuttleAt(rate float64) {
	c.clock.SetRate(rate)
	c.clock.Start()
}

func (c *Controller) stop() {
	c.clock.Stop()
	c.model.SetPauseRate(0)
}

func (c *Controller) do(fn func() error) error {
	var err error
	c.clock.Do(func() {
		err = fn()
	})
	return err
}

func (c *Controller) reject(action, msg string, err error) {
	logger.Warnw(msg, err, "action", action)
	if c.userLog != nil {
		c.userLog.Report(msg, err)
	}
	c.record(action, err)
}

func (c *Controller) record(action string, err error) {
	if c.monitor != nil {
		c.monitor.IncTransportAction(action, err)
	}
}
