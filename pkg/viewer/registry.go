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
	"slices"

	"github.com/linkdata/deadlock"

	"github.com/livekit/playsync/pkg/errors"
)

// Registry is the set of viewers taking part in a session, iterated in the
// order they were added.
type Registry struct {
	mu      deadlock.RWMutex
	order   []string
	viewers map[string]Viewer
}

func NewRegistry() *Registry {
	return &Registry{
		viewers: make(map[string]Viewer),
	}
}

func (r *Registry) Add(v Viewer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.viewers[v.ID()]; ok {
		return errors.ErrViewerExists
	}
	r.viewers[v.ID()] = v
	r.order = append(r.order, v.ID())
	return nil
}

// Remove returns the removed viewer, or false if it was not registered.
func (r *Registry) Remove(id string) (Viewer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.viewers[id]
	if !ok {
		return nil, false
	}
	delete(r.viewers, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return v, true
}

func (r *Registry) Get(id string) (Viewer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.viewers[id]
	return v, ok
}

// List returns a snapshot, safe to iterate while viewers are added or removed.
func (r *Registry) List() []Viewer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Viewer, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.viewers[id])
	}
	return list
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
