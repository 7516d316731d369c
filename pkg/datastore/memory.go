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

import (
	"slices"

	"github.com/google/uuid"
	"github.com/linkdata/deadlock"

	"github.com/livekit/playsync/pkg/errors"
	"github.com/livekit/playsync/pkg/timestamp"
	"github.com/livekit/protocol/logger"
)

// Memory is an in-memory Datastore.
type Memory struct {
	mu            deadlock.RWMutex
	variables     []string
	cells         map[string]*memCell
	selectedVars  []string
	selectedCells []string
	seq           uint64
	listeners     []Listener
}

var _ Datastore = (*Memory)(nil)

func NewMemory(variables ...string) *Memory {
	m := &Memory{
		cells: make(map[string]*memCell),
	}
	for _, v := range variables {
		_ = m.AddVariable(v)
	}
	return m
}

func (m *Memory) AddVariable(name string) error {
	if name == "" {
		return errors.ErrInvalidArgument("variable", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.variables, name) {
		return errors.ErrInvalidArgument("variable", name)
	}
	m.variables = append(m.variables, name)
	return nil
}

func (m *Memory) Variables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.variables)
}

func (m *Memory) SelectVariable(name string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.variables, name) {
		return errors.ErrVariableNotFound(name)
	}
	m.selectedVars = toggle(m.selectedVars, name, selected)
	return nil
}

func (m *Memory) SelectedVariables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.selectedVars)
}

func (m *Memory) SelectCell(id string, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cells[id]; !ok {
		return errors.ErrCellNotFound(id)
	}
	m.selectedCells = toggle(m.selectedCells, id, selected)
	return nil
}

func (m *Memory) SelectedCells() []Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cells := make([]Cell, 0, len(m.selectedCells))
	for _, id := range m.selectedCells {
		cells = append(cells, m.cells[id])
	}
	return cells
}

func (m *Memory) DeselectAll() {
	m.mu.Lock()
	m.selectedVars = nil
	m.selectedCells = nil
	m.mu.Unlock()
}

func (m *Memory) CellsTemporally(variable string) []Cell {
	m.mu.RLock()
	found := make([]*memCell, 0)
	for _, c := range m.cells {
		if c.variable == variable {
			found = append(found, c)
		}
	}
	slices.SortFunc(found, func(a, b *memCell) int {
		if a.onset != b.onset {
			if a.onset < b.onset {
				return -1
			}
			return 1
		}
		if a.seq < b.seq {
			return -1
		}
		return 1
	})
	m.mu.RUnlock()

	cells := make([]Cell, len(found))
	for i, c := range found {
		cells[i] = c
	}
	return cells
}

func (m *Memory) Cell(id string) (Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cells[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (m *Memory) CreateCell(variable string) (Cell, error) {
	m.mu.Lock()
	if !slices.Contains(m.variables, variable) {
		m.mu.Unlock()
		return nil, errors.ErrVariableNotFound(variable)
	}
	m.seq++
	c := &memCell{
		store:    m,
		id:       uuid.NewString(),
		variable: variable,
		seq:      m.seq,
	}
	m.cells[c.id] = c
	listeners := m.listeners
	m.mu.Unlock()

	logger.Debugw("cell created", "cellID", c.id, "variable", variable)
	for _, l := range listeners {
		l.CellInserted(c)
	}
	return c, nil
}

func (m *Memory) RestoreCell(cell Cell) error {
	onset, offset := cell.Onset(), cell.Offset()

	m.mu.Lock()
	if !slices.Contains(m.variables, cell.Variable()) {
		m.mu.Unlock()
		return errors.ErrVariableNotFound(cell.Variable())
	}
	if _, ok := m.cells[cell.ID()]; ok {
		m.mu.Unlock()
		return errors.ErrInvalidArgument("cell", cell.ID())
	}

	c, ok := cell.(*memCell)
	if !ok || c.store != m {
		m.seq++
		c = &memCell{
			store:    m,
			id:       cell.ID(),
			variable: cell.Variable(),
			seq:      m.seq,
		}
	}
	c.onset = max(onset, 0)
	c.offset = max(offset, 0)
	m.cells[c.id] = c
	listeners := m.listeners
	m.mu.Unlock()

	for _, l := range listeners {
		l.CellInserted(c)
	}
	return nil
}

func (m *Memory) RemoveCell(id string) error {
	m.mu.Lock()
	c, ok := m.cells[id]
	if !ok {
		m.mu.Unlock()
		return errors.ErrCellNotFound(id)
	}
	delete(m.cells, id)
	m.selectedCells = toggle(m.selectedCells, id, false)
	listeners := m.listeners
	m.mu.Unlock()

	logger.Debugw("cell removed", "cellID", id, "variable", c.variable)
	for _, l := range listeners {
		l.CellRemoved(c)
	}
	return nil
}

func (m *Memory) AddListener(l Listener) {
	m.mu.Lock()
	// copy on write, so callers can range over a snapshot without the lock
	listeners := make([]Listener, len(m.listeners), len(m.listeners)+1)
	copy(listeners, m.listeners)
	m.listeners = append(listeners, l)
	m.mu.Unlock()
}

func (m *Memory) update(c *memCell, fn func()) {
	m.mu.Lock()
	fn()
	_, live := m.cells[c.id]
	listeners := m.listeners
	m.mu.Unlock()

	if !live {
		return
	}
	for _, l := range listeners {
		l.CellChanged(c)
	}
}

func toggle(ids []string, id string, on bool) []string {
	i := slices.Index(ids, id)
	switch {
	case on && i < 0:
		return append(ids, id)
	case !on && i >= 0:
		return slices.Delete(ids, i, i+1)
	default:
		return ids
	}
}

type memCell struct {
	store    *Memory
	id       string
	variable string
	seq      uint64

	// guarded by store.mu
	onset  int64
	offset int64
}

func (c *memCell) ID() string {
	return c.id
}

func (c *memCell) Variable() string {
	return c.variable
}

func (c *memCell) Onset() int64 {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.onset
}

func (c *memCell) Offset() int64 {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.offset
}

func (c *memCell) SetOnset(ms int64) {
	c.store.update(c, func() { c.onset = max(ms, 0) })
}

func (c *memCell) SetOffset(ms int64) {
	c.store.update(c, func() { c.offset = max(ms, 0) })
}

func (c *memCell) SetOnsetString(value string) error {
	ms, err := timestamp.Parse(value)
	if err != nil {
		return err
	}
	c.SetOnset(ms)
	return nil
}

func (c *memCell) SetOffsetString(value string) error {
	ms, err := timestamp.Parse(value)
	if err != nil {
		return err
	}
	c.SetOffset(ms)
	return nil
}
