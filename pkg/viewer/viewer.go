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
	"github.com/livekit/protocol/utils"
)

const ViewerPrefix = "VW_"

// command names, as recorded by MockViewer and reported in metrics
const (
	CallPlay  = "play"
	CallStop  = "stop"
	CallSeek  = "seek"
	CallSpeed = "speed"
)

// Viewer is the contract every media plugin implements. All times are in
// milliseconds of the viewer's own media, before its offset is applied.
type Viewer interface {
	ID() string

	Play() error
	Stop() error
	SeekTo(ms int64) error
	SetPlaybackSpeed(rate float64) error
	CurrentTime() (int64, error)

	Duration() int64
	Offset() int64
	SetOffset(ms int64)
	IsPlaying() bool
	FrameRate() float64
	// UsingAssumedFPS reports that FrameRate is a guess rather than read from the media.
	UsingAssumedFPS() bool
}

// Windowed is implemented by viewers that render into a native window.
type Windowed interface {
	WindowHandle() uintptr
}

// Closer is implemented by viewers holding resources that outlive a session.
type Closer interface {
	Close() error
}

func NewID() string {
	return utils.NewGuid(ViewerPrefix)
}

// InRange reports whether clock time ms falls inside the viewer's media.
func InRange(v Viewer, ms int64) bool {
	offset := v.Offset()
	return ms >= offset && ms < offset+v.Duration()
}
