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

package logging

import (
	"fmt"

	"github.com/linkdata/deadlock"

	"github.com/livekit/protocol/logger"
)

// UserLog receives messages meant for the person at the controls, as opposed
// to the process log.
type UserLog interface {
	Report(msg string, err error)
}

func format(msg string, err error) string {
	if err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, err)
}

// RingLog keeps the most recent user messages in memory
type RingLog struct {
	mu   deadlock.Mutex
	msgs []string
	idx  int
}

func NewRingLog(size int) *RingLog {
	if size <= 0 {
		size = 10
	}
	return &RingLog{
		msgs: make([]string, size),
	}
}

func (l *RingLog) Report(msg string, err error) {
	l.mu.Lock()
	l.msgs[l.idx%len(l.msgs)] = format(msg, err)
	l.idx++
	l.mu.Unlock()
}

// Messages returns the kept messages, oldest first.
func (l *RingLog) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := len(l.msgs)
	msgs := make([]string, 0, size)
	for i := range size {
		if msg := l.msgs[(l.idx+i)%size]; msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// WriteLogs copies the kept messages into the process log.
func (l *RingLog) WriteLogs() {
	for _, msg := range l.Messages() {
		logger.Debugw(msg)
	}
}

// MultiLog reports to every log it holds.
type MultiLog []UserLog

func (m MultiLog) Report(msg string, err error) {
	for _, l := range m {
		l.Report(msg, err)
	}
}

// ProcessLog forwards user messages to the process logger as warnings.
type ProcessLog struct {
	logger logger.Logger
}

func NewProcessLog(values ...interface{}) *ProcessLog {
	return &ProcessLog{
		logger: logger.GetLogger().WithValues(values...),
	}
}

func (l *ProcessLog) Report(msg string, err error) {
	if err != nil {
		l.logger.Warnw(msg, err)
	} else {
		l.logger.Infow(msg)
	}
}
