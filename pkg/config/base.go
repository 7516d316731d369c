// Copyright 2023 LiveKit, Inc.
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

package config

import (
	"time"

	"github.com/livekit/protocol/logger"
)

type Config struct {
	SessionID string `yaml:"-"` // do not supply - will be overwritten

	Logging        *logger.Config  `yaml:"logging"`         // logging config
	UserLog        UserLogConfig   `yaml:"user_log"`        // messages shown to the person at the controls
	PrometheusPort int             `yaml:"prometheus_port"` // prometheus handler port, 0 to disable
	Clock          ClockConfig     `yaml:"clock"`           // clock ticker
	Sync           SyncConfig      `yaml:"sync"`            // viewer synchronization
	Transport      TransportConfig `yaml:"transport"`       // transport rates and jog multipliers
	Viewer         ViewerConfig    `yaml:"viewer"`          // viewer call isolation
	Undo           UndoConfig      `yaml:"undo"`            // edit history
	Session        SessionConfig   `yaml:"session"`         // simulated media and columns for the cli
}

type UserLogConfig struct {
	Filename   string `yaml:"filename"`     // rotating log file, empty to keep messages in memory only
	MaxSizeMB  int    `yaml:"max_size_mb"`  // size before rotation
	MaxBackups int    `yaml:"max_backups"`  // rotated files to keep
	MaxAgeDays int    `yaml:"max_age_days"` // days to keep rotated files
	RingSize   int    `yaml:"ring_size"`    // in-memory messages to keep
}

type ClockConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"` // time between clock ticks
}

type SyncConfig struct {
	Pulse            time.Duration `yaml:"pulse"`              // clock time between viewer syncs at rate 1
	Threshold        time.Duration `yaml:"threshold"`          // drift tolerated at rate 1 before a corrective seek
	LowRateFPS       float64       `yaml:"low_rate_fps"`       // frame rates at or below this tolerate one frame of drift
	FakePlaybackRate float64       `yaml:"fake_playback_rate"` // rates above this are rendered by seeking
	CorrectDrift     *bool         `yaml:"correct_drift"`      // seek drifting viewers back into place, defaults to true
}

type TransportConfig struct {
	PlayRate    float64 `yaml:"play_rate"`    // rate used by play
	ForwardRate float64 `yaml:"forward_rate"` // rate used by fast forward
	RewindRate  float64 `yaml:"rewind_rate"`  // rate used by rewind
	ShiftJog    int64   `yaml:"shift_jog"`    // frames per jog with shift held
	CtrlJog     int64   `yaml:"ctrl_jog"`     // frames per jog with ctrl held
}

type ViewerConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"` // run viewers on their own goroutine and bound queries by this, 0 to call directly
	QueueSize   int           `yaml:"queue_size"`   // commands buffered per guarded viewer
}

type UndoConfig struct {
	Limit int `yaml:"limit"` // edits kept in history, -1 for unlimited
}

type SessionConfig struct {
	Variables []string          `yaml:"variables"` // columns created at startup
	Viewers   []SimViewerConfig `yaml:"viewers"`   // simulated media
}

type SimViewerConfig struct {
	Name      string        `yaml:"name"`
	Duration  time.Duration `yaml:"duration"`
	FrameRate float64       `yaml:"frame_rate"` // 0 to use an assumed frame rate
	Offset    time.Duration `yaml:"offset"`     // position on the session timeline
	Drift     float64       `yaml:"drift"`      // fractional speed error, e.g. 0.01
}

func (c *Config) initLogger(values ...interface{}) error {
	zl, err := logger.NewZapLogger(c.Logging)
	if err != nil {
		return err
	}

	l := zl.WithValues(values...)

	logger.SetLogger(l, "playsync")
	return nil
}

func (c SyncConfig) PulseMs() int64 {
	return c.Pulse.Milliseconds()
}

func (c SyncConfig) ThresholdMs() int64 {
	return c.Threshold.Milliseconds()
}

func (c SyncConfig) DriftCorrection() bool {
	return c.CorrectDrift == nil || *c.CorrectDrift
}
