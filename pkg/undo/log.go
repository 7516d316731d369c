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

package undo

import (
	"github.com/linkdata/deadlock"

	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/protocol/logger"
)

const DefaultLimit = 1000

type Granularity int

const (
	// FineGrained edits of the same kind on the same target coalesce.
	FineGrained Granularity = iota
	CoarseGrained
)

func (g Granularity) String() string {
	switch g {
	case FineGrained:
		return "fine"
	case CoarseGrained:
		return "coarse"
	default:
		return "unknown"
	}
}

// Edit is a reversible mutation.
type Edit interface {
	Apply() error
	Revert() error
	Description() string
}

// Merger is implemented by edits that can absorb the edit posted after them.
type Merger interface {
	Merge(next Edit) bool
}

// Log applies edits and keeps them for undo and redo.
type Log struct {
	mu     deadlock.Mutex
	limit  int
	done   []Edit
	undone []Edit
}

// NewLog creates a log keeping at most limit edits. A negative limit keeps everything.
func NewLog(limit int) *Log {
	if limit == 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// Post applies e and records it. Nothing is recorded when Apply fails.
func (l *Log) Post(e Edit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := e.Apply(); err != nil {
		logger.Warnw("edit failed", err, "edit", e.Description())
		return err
	}

	l.undone = nil
	if n := len(l.done); n > 0 {
		if m, ok := l.done[n-1].(Merger); ok && m.Merge(e) {
			return nil
		}
	}

	l.done = append(l.done, e)
	if l.limit > 0 && len(l.done) > l.limit {
		l.done = l.done[len(l.done)-l.limit:]
	}
	return nil
}

func (l *Log) Undo() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.done)
	if n == 0 {
		return "", errors.ErrNothingToUndo
	}
	e := l.done[n-1]
	if err := e.Revert(); err != nil {
		logger.Warnw("failed to undo edit", err, "edit", e.Description())
		return "", err
	}
	l.done = l.done[:n-1]
	l.undone = append(l.undone, e)
	return e.Description(), nil
}

func (l *Log) Redo() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.undone)
	if n == 0 {
		return "", errors.ErrNothingToRedo
	}
	e := l.undone[n-1]
	if err := e.Apply(); err != nil {
		logger.Warnw("failed to redo edit", err, "edit", e.Description())
		return "", err
	}
	l.undone = l.undone[:n-1]
	l.done = append(l.done, e)
	return e.Description(), nil
}

func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done) > 0
}

func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undone) > 0
}

// History returns the descriptions of undoable edits, oldest first.
func (l *Log) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	descriptions := make([]string, len(l.done))
	for i, e := range l.done {
		descriptions[i] = e.Description()
	}
	return descriptions
}
