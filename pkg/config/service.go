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

	"gopkg.in/yaml.v3"

	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/protocol/utils"
)

const (
	SessionPrefix = "PS_"

	defaultTickInterval     = 31 * time.Millisecond
	defaultSyncPulse        = 500 * time.Millisecond
	defaultSyncThreshold    = 200 * time.Millisecond
	defaultLowRateFPS       = 5
	defaultFakePlaybackRate = 2
	defaultPlayRate         = 1
	defaultForwardRate      = 32
	defaultRewindRate       = -32
	defaultShiftJog         = 5
	defaultCtrlJog          = 10
	defaultQueueSize        = 64
	defaultUndoLimit        = 1000
	defaultRingSize         = 100
	defaultLogMaxSizeMB     = 10
	defaultLogMaxBackups    = 3
	defaultLogMaxAgeDays    = 28
)

// NewConfig starts from defaults and applies confString on top.
func NewConfig(confString string) (*Config, error) {
	conf := &Config{
		Logging: &logger.Config{
			Level: "info",
		},
	}
	if confString != "" {
		if err := yaml.Unmarshal([]byte(confString), conf); err != nil {
			return nil, errors.ErrCouldNotParseConfig(err)
		}
	}

	// always create a new session ID
	conf.SessionID = utils.NewGuid(SessionPrefix)

	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

// InitLogger installs the process logger described by the config.
func (c *Config) InitLogger() error {
	return c.initLogger("sessionID", c.SessionID)
}

func (c *Config) applyDefaults() {
	if c.Logging == nil {
		c.Logging = &logger.Config{Level: "info"}
	}
	if c.Clock.TickInterval <= 0 {
		c.Clock.TickInterval = defaultTickInterval
	}
	if c.Sync.Pulse <= 0 {
		c.Sync.Pulse = defaultSyncPulse
	}
	if c.Sync.Threshold <= 0 {
		c.Sync.Threshold = defaultSyncThreshold
	}
	if c.Sync.LowRateFPS <= 0 {
		c.Sync.LowRateFPS = defaultLowRateFPS
	}
	if c.Sync.FakePlaybackRate <= 0 {
		c.Sync.FakePlaybackRate = defaultFakePlaybackRate
	}
	if c.Transport.PlayRate == 0 {
		c.Transport.PlayRate = defaultPlayRate
	}
	if c.Transport.ForwardRate == 0 {
		c.Transport.ForwardRate = defaultForwardRate
	}
	if c.Transport.RewindRate == 0 {
		c.Transport.RewindRate = defaultRewindRate
	}
	if c.Transport.ShiftJog <= 0 {
		c.Transport.ShiftJog = defaultShiftJog
	}
	if c.Transport.CtrlJog <= 0 {
		c.Transport.CtrlJog = defaultCtrlJog
	}
	if c.Viewer.QueueSize <= 0 {
		c.Viewer.QueueSize = defaultQueueSize
	}
	if c.Undo.Limit == 0 {
		c.Undo.Limit = defaultUndoLimit
	}
	if c.UserLog.RingSize <= 0 {
		c.UserLog.RingSize = defaultRingSize
	}
	if c.UserLog.Filename != "" {
		if c.UserLog.MaxSizeMB <= 0 {
			c.UserLog.MaxSizeMB = defaultLogMaxSizeMB
		}
		if c.UserLog.MaxBackups <= 0 {
			c.UserLog.MaxBackups = defaultLogMaxBackups
		}
		if c.UserLog.MaxAgeDays <= 0 {
			c.UserLog.MaxAgeDays = defaultLogMaxAgeDays
		}
	}
}

func (c *Config) validate() error {
	if c.Transport.ForwardRate <= 0 {
		return errors.ErrInvalidConfig("transport.forward_rate")
	}
	if c.Transport.RewindRate >= 0 {
		return errors.ErrInvalidConfig("transport.rewind_rate")
	}
	if c.Viewer.CallTimeout < 0 {
		return errors.ErrInvalidConfig("viewer.call_timeout")
	}
	if c.Undo.Limit < -1 {
		return errors.ErrInvalidConfig("undo.limit")
	}
	for _, v := range c.Session.Viewers {
		if v.Name == "" {
			return errors.ErrInvalidConfig("session.viewers.name")
		}
		if v.Duration <= 0 {
			return errors.ErrInvalidConfig("session.viewers.duration")
		}
		if v.Offset < 0 {
			return errors.ErrInvalidConfig("session.viewers.offset")
		}
	}
	return nil
}
