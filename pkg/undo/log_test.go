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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/playsync/pkg/errors"
)

type value struct {
	v int
}

type setEdit struct {
	target      *value
	from, to    int
	granularity Granularity
	fail        bool
}

func set(target *value, to int, g Granularity) *setEdit {
	return &setEdit{target: target, from: target.v, to: to, granularity: g}
}

func (e *setEdit) Apply() error {
	if e.fail {
		return errors.New("apply failed")
	}
	e.target.v = e.to
	return nil
}

func (e *setEdit) Revert() error {
	e.target.v = e.from
	return nil
}

func (e *setEdit) Description() string {
	return fmt.Sprintf("set %d to %d", e.from, e.to)
}

func (e *setEdit) Merge(next Edit) bool {
	n, ok := next.(*setEdit)
	if !ok || n.target != e.target || e.granularity != FineGrained || n.granularity != FineGrained {
		return false
	}
	e.to = n.to
	return true
}

func TestPostUndoRedo(t *testing.T) {
	l := NewLog(0)
	x := &value{}

	require.NoError(t, l.Post(set(x, 1, CoarseGrained)))
	require.NoError(t, l.Post(set(x, 2, CoarseGrained)))
	require.Equal(t, 2, x.v)

	desc, err := l.Undo()
	require.NoError(t, err)
	require.Equal(t, "set 1 to 2", desc)
	require.Equal(t, 1, x.v)

	_, err = l.Undo()
	require.NoError(t, err)
	require.Zero(t, x.v)

	_, err = l.Undo()
	require.ErrorIs(t, err, errors.ErrNothingToUndo)

	_, err = l.Redo()
	require.NoError(t, err)
	require.Equal(t, 1, x.v)
	require.True(t, l.CanRedo())

	// a new edit drops the redo history
	require.NoError(t, l.Post(set(x, 5, CoarseGrained)))
	require.False(t, l.CanRedo())
	_, err = l.Redo()
	require.ErrorIs(t, err, errors.ErrNothingToRedo)
}

func TestFailedApplyIsNotRecorded(t *testing.T) {
	l := NewLog(0)
	x := &value{}

	e := set(x, 3, CoarseGrained)
	e.fail = true
	require.Error(t, l.Post(e))
	require.Zero(t, x.v)
	require.False(t, l.CanUndo())
}

func TestFineGrainedCoalescing(t *testing.T) {
	l := NewLog(0)
	x := &value{}
	y := &value{}

	require.NoError(t, l.Post(set(x, 1, FineGrained)))
	require.NoError(t, l.Post(set(x, 2, FineGrained)))
	require.NoError(t, l.Post(set(x, 3, FineGrained)))
	require.Equal(t, []string{"set 0 to 3"}, l.History())

	// different target breaks the run
	require.NoError(t, l.Post(set(y, 1, FineGrained)))
	require.NoError(t, l.Post(set(x, 4, CoarseGrained)))
	require.NoError(t, l.Post(set(x, 5, CoarseGrained)))
	require.Len(t, l.History(), 4)

	for l.CanUndo() {
		_, err := l.Undo()
		require.NoError(t, err)
	}
	require.Zero(t, x.v)
	require.Zero(t, y.v)
}

func TestLimit(t *testing.T) {
	l := NewLog(2)
	x := &value{}

	for i := 1; i <= 4; i++ {
		require.NoError(t, l.Post(set(x, i, CoarseGrained)))
	}
	require.Equal(t, []string{"set 2 to 3", "set 3 to 4"}, l.History())

	unlimited := NewLog(-1)
	for i := 1; i <= DefaultLimit+1; i++ {
		require.NoError(t, unlimited.Post(set(x, i, CoarseGrained)))
	}
	require.Len(t, unlimited.History(), DefaultLimit+1)
}
