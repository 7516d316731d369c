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

package playback

import (
	"github.com/linkdata/deadlock"
)

// MinimumMaxEnd is the playable length of a session with no viewers.
const MinimumMaxEnd int64 = 60000

// Extent is the part of a viewer the model cares about.
type Extent struct {
	Offset    int64
	Duration  int64
	FrameRate float64
}

// Model holds the shared playback parameters of a session.
type Model struct {
	mu deadlock.RWMutex

	currentFPS   float64
	pauseRate    float64
	fakePlayback bool
	lastSync     int64

	maxDuration int64
	windowStart int64
	windowEnd   int64
	regionSet   bool
}

func New() *Model {
	return &Model{
		maxDuration: MinimumMaxEnd,
		windowEnd:   MinimumMaxEnd,
	}
}

func (m *Model) CurrentFPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.currentFPS
}

func (m *Model) SetCurrentFPS(fps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.currentFPS = fps
}

func (m *Model) PauseRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.pauseRate
}

func (m *Model) SetPauseRate(rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pauseRate = rate
}

func (m *Model) FakePlayback() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.fakePlayback
}

func (m *Model) SetFakePlayback(fake bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fakePlayback = fake
}

func (m *Model) LastSync() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.lastSync
}

func (m *Model) SetLastSync(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSync = ms
}

// ResetSync forces a full sync on the next tick.
func (m *Model) ResetSync() {
	m.SetLastSync(0)
}

func (m *Model) MaxDuration() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.maxDuration
}

// Window returns the playable region, [0, maxDuration] unless a region of interest is set.
func (m *Model) Window() (start, end int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.windowStart, m.windowEnd
}

func (m *Model) WindowStart() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.windowStart
}

func (m *Model) WindowEnd() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.windowEnd
}

func (m *Model) RegionSet() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.regionSet
}

// SetWindow sets a region of interest. Bounds are clamped to [0, maxDuration]
// and end is raised to start when smaller.
func (m *Model) SetWindow(start, end int64) (int64, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start = clamp(start, 0, m.maxDuration)
	end = clamp(end, 0, m.maxDuration)
	if end < start {
		end = start
	}
	m.windowStart, m.windowEnd = start, end
	m.regionSet = true
	return start, end
}

// ClearWindow drops the region of interest.
func (m *Model) ClearWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.regionSet = false
	m.windowStart, m.windowEnd = 0, m.maxDuration
}

// ClampToWindow returns ms limited to the current window.
func (m *Model) ClampToWindow(ms int64) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return clamp(ms, m.windowStart, m.windowEnd)
}

// UpdateViewers recomputes max duration and frame rate from the registered
// viewers. With no viewers the session falls back to its defaults.
func (m *Model) UpdateViewers(extents []Extent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(extents) == 0 {
		m.currentFPS = 0
		m.maxDuration = MinimumMaxEnd
		m.regionSet = false
		m.windowStart, m.windowEnd = 0, m.maxDuration
		return
	}

	var maxEnd int64
	var fps float64
	for _, e := range extents {
		maxEnd = max(maxEnd, e.Offset+e.Duration)
		fps = max(fps, e.FrameRate)
	}
	m.maxDuration = maxEnd
	m.currentFPS = fps

	if !m.regionSet {
		m.windowStart, m.windowEnd = 0, m.maxDuration
		return
	}
	m.windowEnd = min(m.windowEnd, m.maxDuration)
	m.windowStart = min(m.windowStart, m.windowEnd)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
