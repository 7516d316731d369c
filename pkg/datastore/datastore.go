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

package datastore

// Cell is an annotation interval in a variable (column). An offset of 0 means unset.
type Cell interface {
	ID() string
	Variable() string
	Onset() int64
	Offset() int64
	SetOnset(ms int64)
	SetOffset(ms int64)
	SetOnsetString(value string) error
	SetOffsetString(value string) error
}

// Listener is notified of structural and time changes to cells.
// Callbacks run after the change is committed, outside any store lock.
type Listener interface {
	CellInserted(c Cell)
	CellRemoved(c Cell)
	CellChanged(c Cell)
}

type Datastore interface {
	// Variables returns every variable in column order.
	Variables() []string
	SelectedVariables() []string
	SelectedCells() []Cell
	// CellsTemporally returns the cells of a variable ordered by onset.
	CellsTemporally(variable string) []Cell
	Cell(id string) (Cell, bool)

	CreateCell(variable string) (Cell, error)
	// RestoreCell puts a removed cell back, keeping its id and times.
	RestoreCell(c Cell) error
	RemoveCell(id string) error
	DeselectAll()

	AddListener(l Listener)
}
