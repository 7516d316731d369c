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
	"github.com/linkdata/deadlock"
)

type Call struct {
	Op   string
	Time int64
	Rate float64
}

// MockViewer records every command it receives. Its position only changes on
// SeekTo or SetPosition.
type MockViewer struct {
	mu deadlock.Mutex

	id       string
	duration int64
	fps      float64
	assumed  bool
	offset   int64
	playing  bool
	position int64
	speed    float64

	calls    []Call
	err      error
	panicMsg any
}

func NewMockViewer(id string, duration int64, fps float64) *MockViewer {
	return &MockViewer{
		id:       id,
		duration: duration,
		fps:      fps,
		speed:    1,
	}
}

func (m *MockViewer) ID() string {
	return m.id
}

func (m *MockViewer) Play() error {
	return m.command(Call{Op: CallPlay}, func() { m.playing = true })
}

func (m *MockViewer) Stop() error {
	return m.command(Call{Op: CallStop}, func() { m.playing = false })
}

func (m *MockViewer) SeekTo(ms int64) error {
	return m.command(Call{Op: CallSeek, Time: ms}, func() { m.position = ms })
}

func (m *MockViewer) SetPlaybackSpeed(rate float64) error {
	return m.command(Call{Op: CallSpeed, Rate: rate}, func() { m.speed = rate })
}

func (m *MockViewer) CurrentTime() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panicMsg != nil {
		panic(m.panicMsg)
	}
	return m.position, m.err
}

func (m *MockViewer) Duration() int64 {
	return m.duration
}

func (m *MockViewer) Offset() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.offset
}

func (m *MockViewer) SetOffset(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.offset = ms
}

func (m *MockViewer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.playing
}

func (m *MockViewer) FrameRate() float64 {
	return m.fps
}

func (m *MockViewer) UsingAssumedFPS() bool {
	return m.assumed
}

// SetAssumedFPS marks the frame rate as guessed.
func (m *MockViewer) SetAssumedFPS(assumed bool) {
	m.assumed = assumed
}

// SetPosition moves the media position without recording a call, as playback would.
func (m *MockViewer) SetPosition(ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.position = ms
}

// SetPlaying changes the playing state without recording a call.
func (m *MockViewer) SetPlaying(playing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playing = playing
}

// FailWith makes every command return err. Commands are still recorded.
func (m *MockViewer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}

// PanicWith makes every command panic with v.
func (m *MockViewer) PanicWith(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.panicMsg = v
}

func (m *MockViewer) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.speed
}

func (m *MockViewer) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Call(nil), m.calls...)
}

func (m *MockViewer) CallsOf(op string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()

	var calls []Call
	for _, c := range m.calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

func (m *MockViewer) Count(op string) int {
	return len(m.CallsOf(op))
}

func (m *MockViewer) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = nil
}

func (m *MockViewer) command(call Call, apply func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, call)
	if m.panicMsg != nil {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return m.err
	}
	apply()
	return nil
}
