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

package cells

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/playsync/pkg/datastore"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/undo"
)

type fixedClock struct {
	ms int64
}

func (c *fixedClock) Time() int64 {
	return c.ms
}

func newTestCoordinator(variables ...string) (*Coordinator, *fixedClock, *datastore.Memory, *undo.Log) {
	clock := &fixedClock{}
	store := datastore.NewMemory(variables...)
	log := undo.NewLog(0)
	return NewCoordinator(clock, store, log), clock, store, log
}

func TestCellTiling(t *testing.T) {
	c, clock, store, log := newTestCoordinator("gaze")

	clock.ms = 1000
	first, err := c.CreateCellAtCurrentTime()
	require.NoError(t, err)
	require.Equal(t, int64(1000), first.Onset())
	require.Zero(t, first.Offset())

	clock.ms = 5000
	second, err := c.CreateCellAtCurrentTime()
	require.NoError(t, err)
	require.Equal(t, int64(4999), first.Offset())
	require.Equal(t, int64(5000), second.Onset())
	require.Zero(t, second.Offset())

	cells := store.CellsTemporally("gaze")
	require.Len(t, cells, 2)
	require.Equal(t, first.ID(), cells[0].ID())

	// undo removes the new cell, then reopens the previous one
	_, err = log.Undo()
	require.NoError(t, err)
	require.Len(t, store.CellsTemporally("gaze"), 1)
	_, err = log.Undo()
	require.NoError(t, err)
	require.Zero(t, first.Offset())

	_, err = log.Redo()
	require.NoError(t, err)
	_, err = log.Redo()
	require.NoError(t, err)
	restored, ok := store.Cell(second.ID())
	require.True(t, ok)
	require.Equal(t, int64(5000), restored.Onset())
	require.Equal(t, int64(4999), first.Offset())
}

func TestClosedPredecessorIsKept(t *testing.T) {
	c, clock, _, _ := newTestCoordinator("gaze")

	clock.ms = 1000
	first, err := c.CreateCellAtCurrentTime()
	require.NoError(t, err)
	first.SetOffset(2000)

	clock.ms = 5000
	_, err = c.CreateCellAtCurrentTime()
	require.NoError(t, err)
	require.Equal(t, int64(2000), first.Offset())
}

func TestPredecessorByTime(t *testing.T) {
	c, clock, store, _ := newTestCoordinator("gaze")

	early, err := store.CreateCell("gaze")
	require.NoError(t, err)
	early.SetOnset(1000)
	late, err := store.CreateCell("gaze")
	require.NoError(t, err)
	late.SetOnset(8000)

	clock.ms = 3000
	_, err = c.CreateCellAtCurrentTime()
	require.NoError(t, err)
	require.Equal(t, int64(2999), early.Offset())
	require.Zero(t, late.Offset())
}

func TestCreateAtZero(t *testing.T) {
	c, _, _, _ := newTestCoordinator("gaze")

	first, err := c.CreateCellAt(0)
	require.NoError(t, err)
	_, err = c.CreateCellAt(0)
	require.NoError(t, err)
	require.Zero(t, first.Offset())
}

func TestResolveVariable(t *testing.T) {
	t.Run("selected variable", func(t *testing.T) {
		c, _, store, _ := newTestCoordinator("gaze", "speech")
		require.NoError(t, store.SelectVariable("speech", true))

		v, branch, err := c.ResolveVariable()
		require.NoError(t, err)
		require.Equal(t, "speech", v)
		require.Equal(t, BranchSelectedVariable, branch)

		cell, err := c.CreateCellAtCurrentTime()
		require.NoError(t, err)
		require.Equal(t, "speech", cell.Variable())
	})

	t.Run("selected cell", func(t *testing.T) {
		c, _, store, _ := newTestCoordinator("gaze", "speech")
		cell, err := store.CreateCell("speech")
		require.NoError(t, err)
		require.NoError(t, store.SelectCell(cell.ID(), true))

		v, branch, err := c.ResolveVariable()
		require.NoError(t, err)
		require.Equal(t, "speech", v)
		require.Equal(t, BranchSelectedCell, branch)
	})

	t.Run("last focused", func(t *testing.T) {
		c, _, store, _ := newTestCoordinator("gaze", "speech")
		cell, err := store.CreateCell("speech")
		require.NoError(t, err)
		c.SetLastFocused(cell)

		v, branch, err := c.ResolveVariable()
		require.NoError(t, err)
		require.Equal(t, "speech", v)
		require.Equal(t, BranchLastFocused, branch)

		// a removed cell no longer counts
		require.NoError(t, store.RemoveCell(cell.ID()))
		_, branch, err = c.ResolveVariable()
		require.NoError(t, err)
		require.Equal(t, BranchFirstVariable, branch)
	})

	t.Run("last created", func(t *testing.T) {
		c, _, store, _ := newTestCoordinator("gaze", "speech")
		require.NoError(t, store.SelectVariable("speech", true))
		_, err := c.CreateCellAt(1000)
		require.NoError(t, err)
		store.DeselectAll()

		v, branch, err := c.ResolveVariable()
		require.NoError(t, err)
		require.Equal(t, "speech", v)
		require.Equal(t, BranchLastCreated, branch)
	})

	t.Run("first variable", func(t *testing.T) {
		c, _, _, _ := newTestCoordinator("gaze", "speech")

		v, branch, err := c.ResolveVariable()
		require.NoError(t, err)
		require.Equal(t, "gaze", v)
		require.Equal(t, BranchFirstVariable, branch)
	})

	t.Run("no variables", func(t *testing.T) {
		c, _, _, log := newTestCoordinator()

		_, _, err := c.ResolveVariable()
		require.ErrorIs(t, err, errors.ErrNoVariables)
		_, err = c.CreateCellAtCurrentTime()
		require.ErrorIs(t, err, errors.ErrNoVariables)
		require.False(t, log.CanUndo())
	})
}

func TestSetNewCellStopTime(t *testing.T) {
	c, clock, _, _ := newTestCoordinator("gaze")
	require.ErrorIs(t, c.SetNewCellStopTime(), errors.ErrNoLastCreatedCell)

	clock.ms = 1000
	cell, err := c.CreateCellAtCurrentTime()
	require.NoError(t, err)

	clock.ms = 2500
	require.NoError(t, c.SetNewCellStopTime())
	require.Equal(t, int64(2500), cell.Offset())

	last, ok := c.LastCreated()
	require.True(t, ok)
	require.Equal(t, cell.ID(), last.ID())
}

func TestCreatePointCell(t *testing.T) {
	c, clock, _, log := newTestCoordinator("gaze")

	clock.ms = 7000
	cell, err := c.CreatePointCell()
	require.NoError(t, err)
	require.Equal(t, int64(7000), cell.Onset())
	require.Equal(t, int64(7000), cell.Offset())
	require.Len(t, log.History(), 2)
}

func TestSetSelectedCellTimes(t *testing.T) {
	c, clock, store, log := newTestCoordinator("gaze", "speech")

	a, err := store.CreateCell("gaze")
	require.NoError(t, err)
	b, err := store.CreateCell("speech")
	require.NoError(t, err)

	// nothing selected
	require.NoError(t, c.SetSelectedCellStartTime())
	require.False(t, log.CanUndo())

	require.NoError(t, store.SelectCell(a.ID(), true))
	require.NoError(t, store.SelectCell(b.ID(), true))

	clock.ms = 4000
	require.NoError(t, c.SetSelectedCellStartTime())
	require.Equal(t, int64(4000), a.Onset())
	require.Equal(t, int64(4000), b.Onset())

	clock.ms = 6000
	require.NoError(t, c.SetSelectedCellStopTime())
	require.Equal(t, int64(6000), a.Offset())
	require.Equal(t, int64(6000), b.Offset())
	require.Len(t, log.History(), 4)

	_, err = log.Undo()
	require.NoError(t, err)
	require.Zero(t, b.Offset())
	require.Equal(t, int64(6000), a.Offset())
}

func TestChangeEditMerge(t *testing.T) {
	store := datastore.NewMemory("gaze")
	cell, err := store.CreateCell("gaze")
	require.NoError(t, err)

	first := NewChangeOffsetEdit(store, cell, 100, undo.FineGrained)
	require.True(t, first.Merge(NewChangeOffsetEdit(store, cell, 200, undo.FineGrained)))
	require.False(t, first.Merge(NewChangeOnsetEdit(store, cell, 300, undo.FineGrained)))
	require.False(t, first.Merge(NewChangeOffsetEdit(store, cell, 300, undo.CoarseGrained)))

	require.NoError(t, first.Apply())
	require.Equal(t, int64(200), cell.Offset())
	require.NoError(t, first.Revert())
	require.Zero(t, cell.Offset())

	require.NoError(t, store.RemoveCell(cell.ID()))
	require.Error(t, first.Apply())
}
