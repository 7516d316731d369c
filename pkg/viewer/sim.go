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

	"github.com/linkdata/deadlock"

	"github.com/livekit/protocol/logger"
)

// AssumedFPS is used when a simulated viewer is given no frame rate.
const AssumedFPS = 29.97

// SimViewer plays imaginary media of a fixed length. Its position advances
// with wall time while playing, optionally running fast or slow by Drift.
type SimViewer struct {
	mu     deadlock.Mutex
	logger logger.Logger
	now    func() time.Time

	id       string
	name     string
	duration int64
	fps      float64
	assumed  bool
	drift    float64

	offset   int64
	playing  bool
	speed    float64
	position float64
	last     time.Time
}

type SimOption func(*SimViewer)

// WithDrift makes the viewer run at (1+drift) times the requested speed.
func WithDrift(drift float64) SimOption {
	return func(s *SimViewer) {
		s.drift = drift
	}
}

func WithSimTimeSource(now func() time.Time) SimOption {
	return func(s *SimViewer) {
		s.now = now
	}
}

func NewSimViewer(name string, duration int64, fps float64, opts ...SimOption) *SimViewer {
	s := &SimViewer{
		id:       NewID(),
		name:     name,
		duration: duration,
		fps:      fps,
		speed:    1,
		now:      time.Now,
	}
	if s.fps <= 0 {
		s.fps = AssumedFPS
		s.assumed = true
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.GetLogger().WithValues("viewerID", s.id, "media", name)
	return s
}

func (s *SimViewer) ID() string {
	return s.id
}

func (s *SimViewer) Name() string {
	return s.name
}

func (s *SimViewer) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	s.playing = s.position < float64(s.duration)
	return nil
}

func (s *SimViewer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	s.playing = false
	return nil
}

func (s *SimViewer) SeekTo(ms int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	s.position = float64(max(0, min(ms, s.duration)))
	s.logger.Debugw("seek", "position", ms)
	return nil
}

func (s *SimViewer) SetPlaybackSpeed(rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	s.speed = rate
	return nil
}

func (s *SimViewer) CurrentTime() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	return int64(s.position), nil
}

func (s *SimViewer) Duration() int64 {
	return s.duration
}

func (s *SimViewer) Offset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.offset
}

func (s *SimViewer) SetOffset(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offset = ms
}

func (s *SimViewer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked()
	return s.playing
}

func (s *SimViewer) FrameRate() float64 {
	return s.fps
}

func (s *SimViewer) UsingAssumedFPS() bool {
	return s.assumed
}

func (s *SimViewer) advanceLocked() {
	now := s.now()
	if s.playing {
		elapsed := float64(now.Sub(s.last)) / float64(time.Millisecond)
		s.position += elapsed * s.speed * (1 + s.drift)
		if s.position >= float64(s.duration) {
			s.position = float64(s.duration)
			s.playing = false
		} else if s.position < 0 {
			s.position = 0
			s.playing = false
		}
	}
	s.last = now
}
