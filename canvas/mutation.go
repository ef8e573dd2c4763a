package canvas

import (
	"canvas-studio/core"
	"errors"
	"fmt"
)

// Mutation is a change to the canvas requested by the state machine. Only
// Session applies them.
type Mutation interface {
	apply(s *Session) error
}

type (
	ClearSelection struct{}

	SelectExclusive struct{ ID core.EntityID }

	ToggleSelection struct{ ID core.EntityID }

	// ReplaceSelection swaps in the result of a rectangle selection.
	ReplaceSelection struct{ IDs []core.EntityID }

	// MoveEntities sets IDs[i] to Positions[i].
	MoveEntities struct {
		IDs       []core.EntityID
		Positions []core.Point
	}

	ResizeEntity struct {
		ID  core.EntityID
		Box core.Rect
	}

	PanViewport struct{ Delta core.Point }

	ShowContextMenu struct {
		Anchor   core.Point
		EntityID core.EntityID
	}

	HideContextMenu struct{}
)

func (ClearSelection) apply(s *Session) error {
	s.store.ClearSelection()
	return nil
}

func (m SelectExclusive) apply(s *Session) error { return s.store.SelectExclusive(m.ID) }

func (m ToggleSelection) apply(s *Session) error { return s.store.SelectToggle(m.ID) }

func (m ReplaceSelection) apply(s *Session) error {
	s.store.SelectAll(m.IDs)
	return nil
}

func (m MoveEntities) apply(s *Session) error {
	if len(m.IDs) != len(m.Positions) {
		return fmt.Errorf("move: %d ids but %d positions", len(m.IDs), len(m.Positions))
	}
	var errs []error
	for i, id := range m.IDs {
		pos := m.Positions[i]
		if err := s.store.Update(id, core.EntityPatch{Position: &pos}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m ResizeEntity) apply(s *Session) error {
	pos, size := m.Box.Position(), m.Box.Size()
	return s.store.Update(m.ID, core.EntityPatch{Position: &pos, Size: &size})
}

func (m PanViewport) apply(s *Session) error {
	if s.interaction.Tool != ToolPan {
		return ErrPanInactive
	}
	s.view.PanBy(m.Delta)
	return nil
}

func (m ShowContextMenu) apply(s *Session) error {
	s.menu = &ContextMenu{Anchor: m.Anchor, EntityID: m.EntityID, Actions: []string{ExportAction}}
	return nil
}

func (HideContextMenu) apply(s *Session) error {
	s.menu = nil
	return nil
}
