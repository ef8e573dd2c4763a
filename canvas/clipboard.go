package canvas

import (
	"canvas-studio/core"
	"strings"

	"github.com/sirupsen/logrus"
)

// PasteOffset is how far a pasted copy lands from the original.
var PasteOffset = core.Point{X: 20, Y: 20}

// KeyEvent is a global key press. Key follows the DOM KeyboardEvent.key
// naming ("c", "Delete", "Backspace", ...).
type KeyEvent struct {
	Key          string `json:"key"`
	Ctrl         bool   `json:"ctrl"`
	Meta         bool   `json:"meta"`
	InputFocused bool   `json:"inputFocused"`
}

// HandleKey runs the keyboard shortcuts. It reports whether the key was
// consumed. Keys are ignored while a text input has focus.
func (s *Session) HandleKey(ev KeyEvent) bool {
	if ev.InputFocused {
		return false
	}
	if ev.Ctrl || ev.Meta {
		switch strings.ToLower(ev.Key) {
		case "c":
			s.Copy()
			return true
		case "x":
			s.Cut()
			return true
		case "v":
			_, ok := s.Paste()
			return ok
		}
	}
	switch ev.Key {
	case "Delete", "Backspace":
		return s.DeleteSelected() > 0
	}
	return false
}

// Copy snapshots the selected entity. With zero or several entities selected
// it does nothing and reports false.
func (s *Session) Copy() bool {
	sel := s.store.Selection()
	if len(sel) != 1 {
		return false
	}
	e, ok := s.store.Get(sel[0])
	if !ok {
		return false
	}
	s.clipboard = &e
	s.log.WithField("entity_id", e.ID).Debug("Entity copied")
	return true
}

// Cut copies (single selection only) and then deletes every selected entity.
func (s *Session) Cut() int {
	s.Copy()
	return s.DeleteSelected()
}

// Paste inserts the copied entity offset by PasteOffset under a new id and
// makes it the only selection.
func (s *Session) Paste() (core.EntityID, bool) {
	if s.clipboard == nil {
		return "", false
	}
	e := *s.clipboard
	e.ID = core.EntityID(s.newID("img"))
	e.Position = e.Position.Add(PasteOffset)
	if err := s.store.Insert(e); err != nil {
		return "", false
	}
	if err := s.store.SelectExclusive(e.ID); err != nil {
		return "", false
	}
	s.log.WithFields(logrus.Fields{"entity_id": e.ID, "source_id": s.clipboard.ID}).Info("Entity pasted")
	return e.ID, true
}

// DeleteSelected removes every selected entity and returns how many went.
func (s *Session) DeleteSelected() int {
	sel := s.store.Selection()
	if len(sel) == 0 {
		return 0
	}
	n := s.Remove(sel...)
	s.store.ClearSelection()
	return n
}

// Clipboard returns the copied snapshot, if any.
func (s *Session) Clipboard() (core.Entity, bool) {
	if s.clipboard == nil {
		return core.Entity{}, false
	}
	return *s.clipboard, true
}
