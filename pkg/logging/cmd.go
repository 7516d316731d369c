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
	"io"

	"github.com/linkdata/deadlock"
)

// ConsoleLog prints user messages for an interactive session
type ConsoleLog struct {
	mu deadlock.Mutex
	w  io.Writer
}

func NewConsoleLog(w io.Writer) *ConsoleLog {
	return &ConsoleLog{
		w: w,
	}
}

func (l *ConsoleLog) Report(msg string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = fmt.Fprintf(l.w, "! %s\n", format(msg, err))
}
