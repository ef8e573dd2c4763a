package canvas

import (
	"canvas-studio/core"
	"fmt"

	"github.com/sirupsen/logrus"
)

// EntityStore owns the placed images in draw order (last is topmost) and the
// current selection. It is the only writer of either.
type EntityStore struct {
	entities  []core.Entity
	index     map[core.EntityID]int
	selection map[core.EntityID]struct{}
}

func NewEntityStore() *EntityStore {
	return &EntityStore{
		index:     make(map[core.EntityID]int),
		selection: make(map[core.EntityID]struct{}),
	}
}

// Insert appends e on top of every existing entity.
func (s *EntityStore) Insert(e core.Entity) error {
	if _, exists := s.index[e.ID]; exists {
		logrus.WithField("entity_id", e.ID).Error("Refusing to insert entity with duplicate id")
		return fmt.Errorf("insert %s: %w", e.ID, core.ErrDuplicateID)
	}
	s.index[e.ID] = len(s.entities)
	s.entities = append(s.entities, e)
	return nil
}

// Update merges patch into the entity with the given id.
func (s *EntityStore) Update(id core.EntityID, patch core.EntityPatch) error {
	i, ok := s.index[id]
	if !ok {
		logrus.WithField("entity_id", id).Error("Update of unknown entity")
		return fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	s.entities[i] = patch.Apply(s.entities[i])
	return nil
}

// Remove deletes every listed entity that exists and drops it from the
// selection. Unknown ids are ignored. It returns how many were removed.
func (s *EntityStore) Remove(ids ...core.EntityID) int {
	doomed := make(map[core.EntityID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			doomed[id] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return 0
	}

	kept := s.entities[:0]
	for _, e := range s.entities {
		if _, gone := doomed[e.ID]; gone {
			delete(s.selection, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	// Clear the tail so dropped entities do not pin their image data.
	for i := len(kept); i < len(s.entities); i++ {
		s.entities[i] = core.Entity{}
	}
	s.entities = kept
	s.reindex()
	return len(doomed)
}

func (s *EntityStore) reindex() {
	s.index = make(map[core.EntityID]int, len(s.entities))
	for i, e := range s.entities {
		s.index[e.ID] = i
	}
}

func (s *EntityStore) Get(id core.EntityID) (core.Entity, bool) {
	i, ok := s.index[id]
	if !ok {
		return core.Entity{}, false
	}
	return s.entities[i], true
}

func (s *EntityStore) Has(id core.EntityID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *EntityStore) Len() int { return len(s.entities) }

// Entities returns a copy of all entities in draw order.
func (s *EntityStore) Entities() []core.Entity {
	out := make([]core.Entity, len(s.entities))
	copy(out, s.entities)
	return out
}

// FindContaining returns, in draw order, the ids of entities whose box
// strictly overlaps rect; sharing an edge is not enough.
func (s *EntityStore) FindContaining(rect core.Rect) []core.EntityID {
	var ids []core.EntityID
	for _, e := range s.entities {
		if e.Box().Intersects(rect) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// SelectExclusive replaces the selection with id alone.
func (s *EntityStore) SelectExclusive(id core.EntityID) error {
	if !s.Has(id) {
		return fmt.Errorf("select %s: %w", id, core.ErrNotFound)
	}
	s.selection = map[core.EntityID]struct{}{id: {}}
	return nil
}

// SelectToggle adds id to the selection, or removes it if already selected.
func (s *EntityStore) SelectToggle(id core.EntityID) error {
	if !s.Has(id) {
		return fmt.Errorf("toggle %s: %w", id, core.ErrNotFound)
	}
	if _, ok := s.selection[id]; ok {
		delete(s.selection, id)
	} else {
		s.selection[id] = struct{}{}
	}
	return nil
}

// SelectAll replaces the selection with ids. Ids not in the store are dropped.
func (s *EntityStore) SelectAll(ids []core.EntityID) {
	s.selection = make(map[core.EntityID]struct{}, len(ids))
	for _, id := range ids {
		if s.Has(id) {
			s.selection[id] = struct{}{}
		}
	}
}

func (s *EntityStore) ClearSelection() {
	s.selection = make(map[core.EntityID]struct{})
}

func (s *EntityStore) IsSelected(id core.EntityID) bool {
	_, ok := s.selection[id]
	return ok
}

func (s *EntityStore) SelectionLen() int { return len(s.selection) }

// Selection returns the selected ids in draw order.
func (s *EntityStore) Selection() []core.EntityID {
	ids := make([]core.EntityID, 0, len(s.selection))
	for _, e := range s.entities {
		if _, ok := s.selection[e.ID]; ok {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
