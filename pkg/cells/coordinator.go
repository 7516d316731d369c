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
	"github.com/linkdata/deadlock"

	"github.com/livekit/playsync/pkg/datastore"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/undo"
	"github.com/livekit/protocol/logger"
)

type Clock interface {
	Time() int64
}

// Branch names the rule that picked the variable for a new cell.
type Branch int

const (
	BranchSelectedVariable Branch = iota
	BranchSelectedCell
	BranchLastFocused
	BranchLastCreated
	BranchFirstVariable
)

func (b Branch) String() string {
	switch b {
	case BranchSelectedVariable:
		return "selected_variable"
	case BranchSelectedCell:
		return "selected_cell"
	case BranchLastFocused:
		return "last_focused"
	case BranchLastCreated:
		return "last_created"
	case BranchFirstVariable:
		return "first_variable"
	default:
		return "unknown"
	}
}

// Coordinator stamps cells with the clock time, closing the previous cell
// of the variable so that cells created during playback tile without gaps.
type Coordinator struct {
	mu    deadlock.Mutex
	clock Clock
	store datastore.Datastore
	log   *undo.Log

	lastCreated    datastore.Cell
	lastCreatedVar string
	lastFocused    datastore.Cell
}

func NewCoordinator(clock Clock, store datastore.Datastore, log *undo.Log) *Coordinator {
	return &Coordinator{
		clock: clock,
		store: store,
		log:   log,
	}
}

// SetLastFocused records the cell the user last worked in. nil clears it.
func (c *Coordinator) SetLastFocused(cell datastore.Cell) {
	c.mu.Lock()
	c.lastFocused = cell
	c.mu.Unlock()
}

func (c *Coordinator) LastCreated() (datastore.Cell, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.liveCell(c.lastCreated)
}

// ResolveVariable picks the variable a new cell goes into.
func (c *Coordinator) ResolveVariable() (string, Branch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resolveVariable()
}

func (c *Coordinator) resolveVariable() (string, Branch, error) {
	if selected := c.store.SelectedVariables(); len(selected) > 0 {
		return selected[0], BranchSelectedVariable, nil
	}
	if selected := c.store.SelectedCells(); len(selected) > 0 {
		return selected[0].Variable(), BranchSelectedCell, nil
	}
	if focused, ok := c.liveCell(c.lastFocused); ok {
		return focused.Variable(), BranchLastFocused, nil
	}

	variables := c.store.Variables()
	if len(variables) == 0 {
		return "", 0, errors.ErrNoVariables
	}
	for _, v := range variables {
		if v == c.lastCreatedVar {
			return v, BranchLastCreated, nil
		}
	}
	return variables[0], BranchFirstVariable, nil
}

func (c *Coordinator) CreateCellAtCurrentTime() (datastore.Cell, error) {
	return c.CreateCellAt(c.clock.Time())
}

// CreateCellAt closes the open predecessor of the new cell at ms-1, then
// creates the new cell with onset ms.
func (c *Coordinator) CreateCellAt(ms int64) (datastore.Cell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.createCellAt(ms)
}

func (c *Coordinator) createCellAt(ms int64) (datastore.Cell, error) {
	ms = max(ms, 0)

	variable, branch, err := c.resolveVariable()
	if err != nil {
		logger.Warnw("cannot create cell", err)
		return nil, err
	}

	if prev := c.predecessor(variable, ms); prev != nil && prev.Offset() == 0 {
		offset := max(ms-1, prev.Onset(), 0)
		edit := NewChangeOffsetEdit(c.store, prev, offset, undo.FineGrained)
		if err = c.log.Post(edit); err != nil {
			logger.Warnw("failed to close previous cell", err, "cellID", prev.ID())
			return nil, err
		}
	}

	add := NewAddCellEdit(c.store, variable, ms)
	if err = c.log.Post(add); err != nil {
		logger.Warnw("failed to create cell", err, "variable", variable)
		return nil, err
	}

	cell := add.Cell()
	c.lastCreated = cell
	c.lastCreatedVar = variable

	logger.Debugw("cell created",
		"cellID", cell.ID(),
		"variable", variable,
		"onset", ms,
		"branch", branch,
	)
	return cell, nil
}

// CreatePointCell creates a cell at the current time that also ends there.
func (c *Coordinator) CreatePointCell() (datastore.Cell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Time()
	cell, err := c.createCellAt(now)
	if err != nil {
		return nil, err
	}
	if err = c.log.Post(NewChangeOffsetEdit(c.store, cell, max(now, 0), undo.CoarseGrained)); err != nil {
		return nil, err
	}
	return cell, nil
}

// SetNewCellStopTime ends the last created cell at the current time.
func (c *Coordinator) SetNewCellStopTime() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cell, ok := c.liveCell(c.lastCreated)
	if !ok {
		return errors.ErrNoLastCreatedCell
	}
	return c.log.Post(NewChangeOffsetEdit(c.store, cell, c.clock.Time(), undo.CoarseGrained))
}

// SetSelectedCellStartTime sets the onset of every selected cell, one edit per cell.
func (c *Coordinator) SetSelectedCellStartTime() error {
	return c.changeSelected(FieldOnset)
}

// SetSelectedCellStopTime sets the offset of every selected cell, one edit per cell.
func (c *Coordinator) SetSelectedCellStopTime() error {
	return c.changeSelected(FieldOffset)
}

func (c *Coordinator) changeSelected(field Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Time()
	errArray := &errors.ErrArray{}
	for _, cell := range c.store.SelectedCells() {
		var edit *ChangeCellEdit
		if field == FieldOnset {
			edit = NewChangeOnsetEdit(c.store, cell, now, undo.CoarseGrained)
		} else {
			edit = NewChangeOffsetEdit(c.store, cell, now, undo.CoarseGrained)
		}
		errArray.AppendErr(c.log.Post(edit))
	}
	if errArray.Len() > 0 {
		return errArray.ToError()
	}
	return nil
}

// predecessor is the last created cell when it belongs to variable, else the
// latest cell of variable starting at or before ms.
func (c *Coordinator) predecessor(variable string, ms int64) datastore.Cell {
	if last, ok := c.liveCell(c.lastCreated); ok && last.Variable() == variable {
		return last
	}

	var prev datastore.Cell
	for _, cell := range c.store.CellsTemporally(variable) {
		if cell.Onset() > ms {
			break
		}
		prev = cell
	}
	return prev
}

// liveCell returns the store's current copy of cell, if it still exists.
func (c *Coordinator) liveCell(cell datastore.Cell) (datastore.Cell, bool) {
	if cell == nil {
		return nil, false
	}
	return c.store.Cell(cell.ID())
}
