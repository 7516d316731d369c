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
	"fmt"

	"github.com/livekit/playsync/pkg/datastore"
	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/timestamp"
	"github.com/livekit/playsync/pkg/undo"
)

// AddCellEdit creates a cell with an onset. Reverting removes it and applying
// again restores the same cell.
type AddCellEdit struct {
	store    datastore.Datastore
	variable string
	onset    int64
	cell     datastore.Cell
}

func NewAddCellEdit(store datastore.Datastore, variable string, onset int64) *AddCellEdit {
	return &AddCellEdit{
		store:    store,
		variable: variable,
		onset:    onset,
	}
}

// Cell returns the created cell, nil until the edit has been applied.
func (e *AddCellEdit) Cell() datastore.Cell {
	return e.cell
}

func (e *AddCellEdit) Apply() error {
	if e.cell != nil {
		return e.store.RestoreCell(e.cell)
	}

	c, err := e.store.CreateCell(e.variable)
	if err != nil {
		return err
	}
	c.SetOnset(e.onset)
	e.cell = c
	return nil
}

func (e *AddCellEdit) Revert() error {
	if e.cell == nil {
		return nil
	}
	return e.store.RemoveCell(e.cell.ID())
}

func (e *AddCellEdit) Description() string {
	return fmt.Sprintf("add cell to %s at %s", e.variable, timestamp.Format(e.onset))
}

type Field int

const (
	FieldOnset Field = iota
	FieldOffset
)

func (f Field) String() string {
	if f == FieldOnset {
		return "onset"
	}
	return "offset"
}

// ChangeCellEdit moves one boundary of a cell.
type ChangeCellEdit struct {
	store       datastore.Datastore
	cellID      string
	field       Field
	from        int64
	to          int64
	granularity undo.Granularity
}

var _ undo.Merger = (*ChangeCellEdit)(nil)

func NewChangeOnsetEdit(store datastore.Datastore, c datastore.Cell, to int64, g undo.Granularity) *ChangeCellEdit {
	return &ChangeCellEdit{
		store:       store,
		cellID:      c.ID(),
		field:       FieldOnset,
		from:        c.Onset(),
		to:          to,
		granularity: g,
	}
}

func NewChangeOffsetEdit(store datastore.Datastore, c datastore.Cell, to int64, g undo.Granularity) *ChangeCellEdit {
	return &ChangeCellEdit{
		store:       store,
		cellID:      c.ID(),
		field:       FieldOffset,
		from:        c.Offset(),
		to:          to,
		granularity: g,
	}
}

func (e *ChangeCellEdit) Apply() error {
	return e.set(e.to)
}

func (e *ChangeCellEdit) Revert() error {
	return e.set(e.from)
}

func (e *ChangeCellEdit) set(ms int64) error {
	c, ok := e.store.Cell(e.cellID)
	if !ok {
		return errors.ErrCellNotFound(e.cellID)
	}
	if e.field == FieldOnset {
		c.SetOnset(ms)
	} else {
		c.SetOffset(ms)
	}
	return nil
}

func (e *ChangeCellEdit) Description() string {
	return fmt.Sprintf("change cell %s from %s to %s", e.field, timestamp.Format(e.from), timestamp.Format(e.to))
}

// Merge absorbs a following fine-grained change of the same boundary of the same cell.
func (e *ChangeCellEdit) Merge(next undo.Edit) bool {
	n, ok := next.(*ChangeCellEdit)
	if !ok {
		return false
	}
	if e.granularity != undo.FineGrained || n.granularity != undo.FineGrained {
		return false
	}
	if n.cellID != e.cellID || n.field != e.field {
		return false
	}
	e.to = n.to
	return true
}
