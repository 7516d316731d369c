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

package syncer

import (
	"math"

	"github.com/livekit/playsync/pkg/clock"
	"github.com/livekit/playsync/pkg/config"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/playback"
	"github.com/livekit/playsync/pkg/stats"
	"github.com/livekit/playsync/pkg/viewer"
	"github.com/livekit/protocol/logger"
)

// Clock is the part of the session clock the engine drives.
type Clock interface {
	Time() int64
	Rate() float64
	IsStopped() bool
	Stop()
	SetTime(ms int64)
	SetTimeSilently(ms int64)
}

// Engine keeps every registered viewer aligned with the clock. It must be
// registered as a listener of the clock it is given.
type Engine struct {
	conf    config.SyncConfig
	clock   Clock
	model   *playback.Model
	viewers *viewer.Registry
	monitor *stats.SyncMonitor
}

var _ clock.Listener = (*Engine)(nil)

func NewEngine(
	conf config.SyncConfig,
	clock Clock,
	model *playback.Model,
	viewers *viewer.Registry,
	monitor *stats.SyncMonitor,
) *Engine {
	return &Engine{
		conf:    conf,
		clock:   clock,
		model:   model,
		viewers: viewers,
		monitor: monitor,
	}
}

// AddViewer places v on the timeline at offset and brings it to the needle.
func (e *Engine) AddViewer(v viewer.Viewer, offset int64) error {
	v.SetOffset(offset)
	if err := e.viewers.Add(v); err != nil {
		return err
	}
	e.updateModel()

	time := e.clock.Time()
	e.forViewer(v, "add", func() {
		if viewer.InRange(v, time) {
			e.seek(v, time-offset)
		}
	})
	e.model.ResetSync()

	logger.Infow("viewer added",
		"viewerID", v.ID(),
		"offset", offset,
		"duration", v.Duration(),
		"fps", v.FrameRate(),
		"assumedFPS", v.UsingAssumedFPS(),
	)
	return nil
}

// RemoveViewer stops and releases a viewer. Unknown ids are ignored.
func (e *Engine) RemoveViewer(id string) bool {
	v, ok := e.viewers.Remove(id)
	if !ok {
		logger.Debugw("viewer already removed", "viewerID", id)
		return false
	}

	e.forViewer(v, "remove", func() {
		if v.IsPlaying() {
			e.stop(v)
		}
	})
	if c, ok := v.(viewer.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warnw("failed to close viewer", err, "viewerID", id)
		}
	}
	e.updateModel()

	if e.viewers.Len() == 0 {
		e.clock.Stop()
		e.clock.SetTime(0)
	}

	logger.Infow("viewer removed", "viewerID", id)
	return true
}

// AdjustClock moves the clock onto the frame a lone viewer is showing.
func (e *Engine) AdjustClock() {
	list := e.viewers.List()
	if len(list) != 1 {
		return
	}

	time := e.clock.Time()
	start, end := e.model.Window()
	if time <= start || time >= end {
		return
	}

	v := list[0]
	e.forViewer(v, "adjust", func() {
		pos, err := v.CurrentTime()
		if err != nil {
			e.fault(v, "adjust", err)
			return
		}
		if !e.clock.IsStopped() {
			pos = snapToFrame(pos, e.model.CurrentFPS())
		}
		e.clock.SetTimeSilently(pos + v.Offset())
	})
	e.model.ResetSync()
}

// UsingAssumedFPS reports whether any viewer is guessing its frame rate.
func (e *Engine) UsingAssumedFPS() bool {
	for _, v := range e.viewers.List() {
		if v.UsingAssumedFPS() {
			return true
		}
	}
	return false
}

func (e *Engine) ClockStart(time int64) {
	e.model.ResetSync()

	if start := e.model.WindowStart(); time < start {
		e.clock.SetTimeSilently(start)
		e.seekInRange(start)
	}
}

func (e *Engine) ClockTick(time int64) {
	e.monitor.IncTick()

	if e.enforceWindow(time) {
		return
	}

	if e.model.FakePlayback() {
		e.seekInRange(time)
		return
	}

	scale := rateScale(e.clock.Rate())
	if last := e.model.LastSync(); last != 0 && math.Abs(float64(time-last)) <= float64(e.conf.PulseMs())*scale {
		return
	}
	e.model.SetLastSync(time)

	for _, v := range e.viewers.List() {
		e.forViewer(v, "tick", func() {
			e.syncViewer(v, time, scale)
		})
	}
}

func (e *Engine) ClockStop(time int64) {
	e.clock.Stop()
	e.model.ResetSync()

	list := e.viewers.List()
	start, end := e.model.Window()
	fps := e.model.CurrentFPS()

	if len(list) == 1 && fps > 0 && time > start && time < end {
		v := list[0]
		snapped := false
		e.forViewer(v, "stop", func() {
			if !v.IsPlaying() {
				return
			}
			e.stop(v)

			pos, err := v.CurrentTime()
			if err != nil {
				e.fault(v, "stop", err)
				pos = time - v.Offset()
			}
			pos = snapToFrame(pos, fps)
			e.seek(v, pos)
			e.clock.SetTimeSilently(min(pos+v.Offset(), end))
			snapped = true
		})
		if snapped {
			return
		}
	}

	for _, v := range list {
		e.forViewer(v, "stop", func() {
			if v.IsPlaying() {
				e.stop(v)
			}
			if viewer.InRange(v, time) {
				e.seek(v, time-v.Offset())
			}
		})
	}
}

func (e *Engine) ClockRate(rate float64) {
	e.model.ResetSync()
	e.monitor.SetRate(rate)

	fake := math.Abs(rate) > e.conf.FakePlaybackRate || rate < 0
	if fake != e.model.FakePlayback() {
		logger.Debugw("switching playback mode", "rate", rate, "fake", fake)
	}
	e.model.SetFakePlayback(fake)
	e.monitor.SetFakePlayback(fake)

	time := e.clock.Time()
	running := !e.clock.IsStopped()
	for _, v := range e.viewers.List() {
		e.forViewer(v, "rate", func() {
			inRange := viewer.InRange(v, time)
			if fake {
				if v.IsPlaying() {
					e.stop(v)
				}
				if inRange {
					e.speed(v, rate)
				}
				return
			}

			e.speed(v, rate)
			if running && inRange && !v.IsPlaying() {
				e.seek(v, time-v.Offset())
				e.play(v)
			}
		})
	}
}

func (e *Engine) ClockStep(time int64) {
	e.model.ResetSync()

	for _, v := range e.viewers.List() {
		e.forViewer(v, "step", func() {
			if !viewer.InRange(v, time) {
				return
			}
			target := time - v.Offset()
			if pos, err := v.CurrentTime(); err != nil || pos != target {
				e.seek(v, target)
			}
		})
	}
}

// enforceWindow stops the clock on the window edge it ran past.
func (e *Engine) enforceWindow(time int64) bool {
	start, end := e.model.Window()
	switch {
	case time < start:
		e.clock.SetTimeSilently(start)
	case time >= end && e.clock.Rate() >= 0:
		e.clock.SetTimeSilently(end)
	default:
		return false
	}

	e.clock.Stop()
	return true
}

func (e *Engine) syncViewer(v viewer.Viewer, time int64, scale float64) {
	inRange := viewer.InRange(v, time)
	playing := v.IsPlaying()
	target := time - v.Offset()

	switch {
	case inRange && !playing:
		e.seek(v, target)
		e.play(v)

	case !inRange && playing:
		e.stop(v)

	case inRange && playing:
		pos, err := v.CurrentTime()
		if err != nil {
			e.fault(v, "tick", err)
			return
		}

		drift := pos - target
		if drift < 0 {
			drift = -drift
		}
		if float64(drift) <= e.threshold(v, scale) {
			e.monitor.ObserveDrift(drift, false)
			return
		}

		correct := e.conf.DriftCorrection()
		e.monitor.ObserveDrift(drift, correct)
		logger.Debugw("viewer drifted", "viewerID", v.ID(), "drift", drift, "corrected", correct)
		if correct {
			e.seek(v, target)
		}
	}
}

// threshold is the drift tolerated before a viewer is corrected. Low frame
// rate media tolerates a full frame.
func (e *Engine) threshold(v viewer.Viewer, scale float64) float64 {
	if fps := v.FrameRate(); fps > 0 && fps <= e.conf.LowRateFPS {
		return 1000 / fps / scale
	}
	return float64(e.conf.ThresholdMs()) * scale
}

func (e *Engine) seekInRange(time int64) {
	for _, v := range e.viewers.List() {
		e.forViewer(v, "seek", func() {
			if viewer.InRange(v, time) {
				e.seek(v, time-v.Offset())
			}
		})
	}
}

func (e *Engine) updateModel() {
	list := e.viewers.List()
	extents := make([]playback.Extent, 0, len(list))
	for _, v := range list {
		extents = append(extents, playback.Extent{
			Offset:    v.Offset(),
			Duration:  v.Duration(),
			FrameRate: v.FrameRate(),
		})
	}
	e.model.UpdateViewers(extents)
	e.monitor.SetViewers(len(list))
}

func (e *Engine) play(v viewer.Viewer) {
	e.command(v, viewer.CallPlay, v.Play)
}

func (e *Engine) stop(v viewer.Viewer) {
	e.command(v, viewer.CallStop, v.Stop)
}

func (e *Engine) seek(v viewer.Viewer, ms int64) {
	e.command(v, viewer.CallSeek, func() error { return v.SeekTo(ms) })
}

func (e *Engine) speed(v viewer.Viewer, rate float64) {
	e.command(v, viewer.CallSpeed, func() error { return v.SetPlaybackSpeed(rate) })
}

func (e *Engine) command(v viewer.Viewer, name string, fn func() error) {
	e.monitor.IncViewerCommand(name)
	if err := fn(); err != nil {
		e.fault(v, name, err)
	}
}

// forViewer runs fn for one viewer, containing any panic to that viewer.
func (e *Engine) forViewer(v viewer.Viewer, phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.fault(v, phase, errors.ErrViewerPanic(v.ID(), r))
		}
	}()
	fn()
}

func (e *Engine) fault(v viewer.Viewer, op string, err error) {
	e.monitor.IncViewerFault(op)
	logger.Warnw("viewer call failed", err, "viewerID", v.ID(), "op", op)
}

func rateScale(rate float64) float64 {
	if rate == 0 {
		return 1
	}
	return math.Abs(rate)
}

// snapToFrame rounds ms up to the next frame boundary.
func snapToFrame(ms int64, fps float64) int64 {
	if fps <= 0 {
		return ms
	}
	step := int64(1000 / fps)
	if step <= 0 {
		return ms
	}
	if mod := ms % step; mod != 0 {
		return ms - mod + step
	}
	return ms
}
