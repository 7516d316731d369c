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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/playsync/pkg/clock"
	"github.com/livekit/playsync/pkg/config"
	"github.com/livekit/playsync/pkg/playback"
	"github.com/livekit/playsync/pkg/stats"
	"github.com/livekit/playsync/pkg/viewer"
)

type testEnv struct {
	now      time.Time
	clock    *clock.Clock
	model    *playback.Model
	viewers  *viewer.Registry
	engine   *Engine
	recorder *clock.Recorder
}

func newTestEnv(t *testing.T, confBody string) *testEnv {
	t.Helper()

	conf, err := config.NewConfig(confBody)
	require.NoError(t, err)

	env := &testEnv{now: time.Unix(1000, 0)}
	env.clock = clock.New(clock.WithTimeSource(func() time.Time { return env.now }))
	env.model = playback.New()
	env.viewers = viewer.NewRegistry()
	env.engine = NewEngine(conf.Sync, env.clock, env.model, env.viewers, stats.NewSyncMonitor(nil, "PS_test"))
	env.recorder = &clock.Recorder{}
	env.clock.RegisterListener(env.engine)
	env.clock.RegisterListener(env.recorder)
	return env
}

func (env *testEnv) addViewer(t *testing.T, id string, duration, offset int64, fps float64) *viewer.MockViewer {
	t.Helper()

	v := viewer.NewMockViewer(id, duration, fps)
	require.NoError(t, env.engine.AddViewer(v, offset))
	v.ResetCalls()
	return v
}

// advance moves wall time forward and ticks the clock once.
func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
	env.clock.Tick()
}

func (env *testEnv) playFrom(ms int64, rate float64) {
	env.clock.SetTime(ms)
	env.clock.SetRate(rate)
	env.clock.Start()
	env.clock.Tick()
}

func TestSingleViewerRoundTrip(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "a", 5000, 0, 25)

	env.playFrom(3000, 1)
	require.Equal(t, 1, v.Count(viewer.CallPlay))
	require.Equal(t, 0, v.Count(viewer.CallStop))

	env.clock.SetTime(6000)
	env.clock.Tick()
	require.Equal(t, 1, v.Count(viewer.CallPlay))
	require.Equal(t, 1, v.Count(viewer.CallStop))
	require.True(t, env.clock.IsStopped())
	require.Equal(t, 1, env.recorder.Count(clock.EventStop))
}

func TestOutOfRangeViewerStops(t *testing.T) {
	env := newTestEnv(t, "")
	short := env.addViewer(t, "short", 5000, 0, 25)
	long := env.addViewer(t, "long", 20000, 0, 25)

	env.playFrom(4000, 1)
	require.Equal(t, 1, short.Count(viewer.CallPlay))
	require.Equal(t, 1, long.Count(viewer.CallPlay))

	long.SetPosition(5600)
	env.advance(1600 * time.Millisecond)
	require.Equal(t, int64(5600), env.clock.Time())
	require.Equal(t, 1, short.Count(viewer.CallStop))
	require.Equal(t, 0, long.Count(viewer.CallStop))
	require.False(t, env.clock.IsStopped())
}

func TestDriftTriggersCorrectiveSeek(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "a", 60000, 0, 30)

	env.playFrom(4400, 1)
	v.ResetCalls()

	v.SetPosition(4700)
	env.advance(600 * time.Millisecond)
	require.Equal(t, []viewer.Call{{Op: viewer.CallSeek, Time: 5000}}, v.Calls())

	// within threshold
	v.ResetCalls()
	v.SetPosition(5500)
	env.advance(600 * time.Millisecond)
	require.Empty(t, v.Calls())

	// not yet time to sync
	v.SetPosition(0)
	env.advance(100 * time.Millisecond)
	require.Empty(t, v.Calls())
}

func TestDriftCorrectionDisabled(t *testing.T) {
	env := newTestEnv(t, "sync:\n  correct_drift: false\n")
	v := env.addViewer(t, "a", 60000, 0, 30)

	env.playFrom(4400, 1)
	v.ResetCalls()

	v.SetPosition(4000)
	env.advance(600 * time.Millisecond)
	require.Empty(t, v.Calls())
}

func TestLowFrameRateThreshold(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "slides", 60000, 0, 4)

	env.playFrom(1000, 1)
	v.ResetCalls()

	// one frame at 4 fps is 250ms
	v.SetPosition(1360)
	env.advance(600 * time.Millisecond)
	require.Empty(t, v.Calls())

	v.SetPosition(1900)
	env.advance(600 * time.Millisecond)
	require.Equal(t, []viewer.Call{{Op: viewer.CallSeek, Time: 2200}}, v.Calls())
}

func TestFakePlaybackNeverPlays(t *testing.T) {
	for _, rate := range []float64{4, 32, -1, -32} {
		env := newTestEnv(t, "")
		a := env.addViewer(t, "a", 60000, 0, 30)
		b := env.addViewer(t, "b", 60000, 1000, 30)

		env.playFrom(30000, 1)
		require.True(t, a.IsPlaying())

		env.clock.SetRate(rate)
		require.True(t, env.model.FakePlayback(), rate)
		require.False(t, a.IsPlaying(), rate)
		require.False(t, b.IsPlaying(), rate)
		require.Equal(t, rate, a.Speed())

		a.ResetCalls()
		b.ResetCalls()
		for range 5 {
			env.advance(31 * time.Millisecond)
		}
		require.Zero(t, a.Count(viewer.CallPlay), rate)
		require.Zero(t, b.Count(viewer.CallPlay), rate)
		require.Equal(t, 5, a.Count(viewer.CallSeek), rate)

		last := a.CallsOf(viewer.CallSeek)[4]
		require.Equal(t, env.clock.Time(), last.Time)
		require.Equal(t, env.clock.Time()-1000, b.CallsOf(viewer.CallSeek)[4].Time)
	}
}

func TestLeavingFakePlaybackResumesNative(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "a", 60000, 0, 30)

	env.playFrom(30000, 8)
	require.True(t, env.model.FakePlayback())
	require.Zero(t, v.Count(viewer.CallPlay))

	env.clock.SetRate(1)
	require.False(t, env.model.FakePlayback())
	require.Equal(t, 1, v.Count(viewer.CallPlay))
	require.Equal(t, 1.0, v.Speed())
}

func TestRegionStopOnOverrun(t *testing.T) {
	env := newTestEnv(t, "")
	env.addViewer(t, "a", 60000, 0, 30)
	env.model.SetWindow(0, 10000)

	env.clock.SetTime(9950)
	env.clock.SetRate(1)
	env.clock.Start()
	env.advance(100 * time.Millisecond)

	require.Equal(t, int64(10000), env.clock.Time())
	require.True(t, env.clock.IsStopped())
	require.Equal(t, 1, env.recorder.Count(clock.EventStop))
	require.Equal(t, int64(10000), env.recorder.Events[len(env.recorder.Events)-1].Time)
}

func TestRewindStopsAtRegionStart(t *testing.T) {
	env := newTestEnv(t, "")
	env.addViewer(t, "a", 60000, 0, 30)
	env.model.SetWindow(2000, 10000)

	env.clock.SetTime(2100)
	env.clock.SetRate(-32)
	env.clock.Start()
	env.advance(10 * time.Millisecond)

	require.Equal(t, int64(2000), env.clock.Time())
	require.True(t, env.clock.IsStopped())
	require.Equal(t, 1, env.recorder.Count(clock.EventStop))
}

func TestStartBeforeRegionClamps(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "a", 60000, 0, 30)
	env.model.SetWindow(2000, 10000)

	env.clock.SetTime(500)
	v.ResetCalls()
	env.clock.Start()

	require.Equal(t, int64(2000), env.clock.Time())
	require.Equal(t, []viewer.Call{{Op: viewer.CallSeek, Time: 2000}}, v.Calls())
}

func TestSingleViewerStopSnapsToFrame(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "a", 60000, 0, 25)

	env.playFrom(1000, 1)
	v.SetPosition(1013)
	env.clock.Stop()

	require.Equal(t, int64(1040), env.clock.Time())
	require.False(t, v.IsPlaying())
	seeks := v.CallsOf(viewer.CallSeek)
	require.Equal(t, int64(1040), seeks[len(seeks)-1].Time)
}

func TestMultiViewerStopSeeksToClock(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.addViewer(t, "a", 60000, 0, 25)
	b := env.addViewer(t, "b", 60000, 500, 25)

	env.playFrom(1000, 1)
	a.ResetCalls()
	b.ResetCalls()
	env.clock.Stop()

	require.Equal(t, int64(1000), env.clock.Time())
	require.Equal(t, []viewer.Call{
		{Op: viewer.CallSpeed, Rate: 0},
		{Op: viewer.CallStop},
		{Op: viewer.CallSeek, Time: 1000},
	}, a.Calls())
	require.Equal(t, int64(500), b.CallsOf(viewer.CallSeek)[0].Time)
}

func TestStepSeeksInRangeViewers(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.addViewer(t, "a", 4000, 0, 25)
	b := env.addViewer(t, "b", 10000, 2000, 25)

	env.clock.SetTime(5000)
	require.Empty(t, a.Calls())
	require.Equal(t, []viewer.Call{{Op: viewer.CallSeek, Time: 3000}}, b.Calls())

	// already there
	b.ResetCalls()
	env.clock.SetTime(5000)
	require.Empty(t, b.Calls())
}

func TestViewerFaultsAreIsolated(t *testing.T) {
	env := newTestEnv(t, "")
	broken := env.addViewer(t, "broken", 60000, 0, 30)
	failing := env.addViewer(t, "failing", 60000, 0, 30)
	healthy := env.addViewer(t, "healthy", 60000, 0, 30)

	broken.PanicWith("decoder crashed")
	failing.FailWith(errors.New("device lost"))

	env.playFrom(1000, 1)
	require.Equal(t, 1, healthy.Count(viewer.CallPlay))
	require.True(t, healthy.IsPlaying())
	require.Equal(t, 1, failing.Count(viewer.CallPlay))
	require.False(t, failing.IsPlaying())

	env.clock.Stop()
	require.False(t, healthy.IsPlaying())
}

func TestAddAndRemoveViewers(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.addViewer(t, "a", 30000, 0, 25)
	env.addViewer(t, "b", 90000, 2000, 29.97)

	require.Equal(t, 29.97, env.model.CurrentFPS())
	require.Equal(t, int64(92000), env.model.MaxDuration())

	require.False(t, env.engine.RemoveViewer("missing"))

	env.playFrom(1000, 1)
	require.True(t, a.IsPlaying())
	require.True(t, env.engine.RemoveViewer("a"))
	require.False(t, a.IsPlaying())
	require.Equal(t, int64(92000), env.model.MaxDuration())

	require.True(t, env.engine.RemoveViewer("b"))
	require.Zero(t, env.model.CurrentFPS())
	require.Equal(t, playback.MinimumMaxEnd, env.model.MaxDuration())
	require.Zero(t, env.clock.Time())
	require.True(t, env.clock.IsStopped())
}

func TestAddViewerSeeksToNeedle(t *testing.T) {
	env := newTestEnv(t, "")
	env.clock.SetTime(4000)

	v := viewer.NewMockViewer("late", 10000, 25)
	require.NoError(t, env.engine.AddViewer(v, 1000))
	require.Equal(t, []viewer.Call{{Op: viewer.CallSeek, Time: 3000}}, v.Calls())
	require.Error(t, env.engine.AddViewer(v, 1000))
}

func TestAdjustClock(t *testing.T) {
	env := newTestEnv(t, "")
	v := env.addViewer(t, "a", 60000, 500, 25)

	env.clock.SetTime(1500)
	v.SetPosition(1234)
	env.engine.AdjustClock()
	require.Equal(t, int64(1734), env.clock.Time())

	// ignored with more than one viewer
	env.addViewer(t, "b", 60000, 0, 25)
	v.SetPosition(0)
	env.engine.AdjustClock()
	require.Equal(t, int64(1734), env.clock.Time())
}

func TestUsingAssumedFPS(t *testing.T) {
	env := newTestEnv(t, "")
	env.addViewer(t, "a", 60000, 0, 25)
	require.False(t, env.engine.UsingAssumedFPS())

	v := viewer.NewMockViewer("b", 60000, 29.97)
	v.SetAssumedFPS(true)
	require.NoError(t, env.engine.AddViewer(v, 0))
	require.True(t, env.engine.UsingAssumedFPS())
}

func TestSnapToFrame(t *testing.T) {
	require.Equal(t, int64(1040), snapToFrame(1005, 25))
	require.Equal(t, int64(1040), snapToFrame(1040, 25))
	require.Equal(t, int64(1005), snapToFrame(1005, 0))
	require.Equal(t, int64(33), snapToFrame(1, 29.97))
}
