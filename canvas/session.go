package canvas

import (
	"canvas-studio/core"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrPanInactive is returned when the view is panned while the Pan tool is not
// selected.
var ErrPanInactive = errors.New("pan tool is not active")

// Session is one canvas: its viewport, entities, selection, interaction state,
// clipboard and the generations it is waiting on. Calls must not overlap;
// Session holds no locks.
type Session struct {
	id          string
	view        Viewport
	store       *EntityStore
	interaction Interaction
	menu        *ContextMenu
	clipboard   *core.Entity
	pending     map[string]pendingGeneration
	newID       func(prefix string) string
	log         *logrus.Entry
}

// Option configures a Session.
type Option func(*Session)

// WithIDSource replaces the entity/request id generator.
func WithIDSource(fn func(prefix string) string) Option {
	return func(s *Session) { s.newID = fn }
}

func NewSession(id string, size core.Size, opts ...Option) *Session {
	s := &Session{
		id:      id,
		view:    NewViewport(size),
		store:   NewEntityStore(),
		pending: make(map[string]pendingGeneration),
		newID:   core.NewID,
		log:     logrus.WithField("session_id", id),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

// View returns a copy of the viewport.
func (s *Session) View() Viewport { return s.view }

func (s *Session) Tool() Tool { return s.interaction.Tool }

func (s *Session) Interaction() Interaction { return s.interaction }

func (s *Session) Entities() []core.Entity { return s.store.Entities() }

func (s *Session) Get(id core.EntityID) (core.Entity, bool) { return s.store.Get(id) }

func (s *Session) Selection() []core.EntityID { return s.store.Selection() }

func (s *Session) IsSelected(id core.EntityID) bool { return s.store.IsSelected(id) }

func (s *Session) FindContaining(rect core.Rect) []core.EntityID {
	return s.store.FindContaining(rect)
}

// HitTest resolves a screen point against the current projection.
func (s *Session) HitTest(screen core.Point) Hit { return s.Frame().HitTest(screen) }

// Frame projects the current state for rendering.
func (s *Session) Frame() Frame {
	return Project(s.store.Entities(), s.store.Selection(), s.view, s.interaction, s.menu, s.Generating())
}

// ContextMenu returns the open context menu, or nil.
func (s *Session) ContextMenu() *ContextMenu {
	if s.menu == nil {
		return nil
	}
	m := *s.menu
	return &m
}

// Dispatch feeds one pointer event through the state machine and applies the
// resulting mutations.
func (s *Session) Dispatch(ev PointerEvent) error {
	next, muts := Step(s.interaction, ev, s)
	s.interaction.Gesture = next.Gesture
	return s.applyAll(muts)
}

func (s *Session) applyAll(muts []Mutation) error {
	var errs []error
	for _, m := range muts {
		if err := m.apply(s); err != nil {
			s.log.WithError(err).WithField("mutation", fmt.Sprintf("%T", m)).Error("Failed to apply mutation")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetTool switches tools. An active gesture is finished first, as if the
// pointer had been released.
func (s *Session) SetTool(t Tool) error {
	if s.interaction.Tool == t {
		return nil
	}
	var err error
	if s.interaction.Gesture.Kind != GestureNone {
		next, muts := Finish(s.interaction, s)
		s.interaction = next
		err = s.applyAll(muts)
	}
	s.interaction.Tool = t
	s.log.WithField("tool", t.String()).Debug("Tool changed")
	return err
}

// PanBy translates the view directly. Only allowed with the Pan tool.
func (s *Session) PanBy(delta core.Point) error {
	return s.applyAll([]Mutation{PanViewport{Delta: delta}})
}

// Wheel zooms around the pointer.
func (s *Session) Wheel(pointer core.Point, deltaY float64) { s.view.Wheel(pointer, deltaY) }

func (s *Session) ZoomAtCenter(dir ZoomDirection) { s.view.ZoomAtCenter(dir) }

func (s *Session) ResetZoom() { s.view.ResetZoom() }

func (s *Session) Resize(size core.Size) { s.view.Resize(size) }

// Insert places a ready-made entity on top of the canvas.
func (s *Session) Insert(e core.Entity) error { return s.store.Insert(e) }

// Remove deletes entities; unknown ids are ignored. A context menu anchored on
// a removed entity is closed.
func (s *Session) Remove(ids ...core.EntityID) int {
	n := s.store.Remove(ids...)
	if s.menu != nil && !s.store.Has(s.menu.EntityID) {
		s.menu = nil
	}
	if n > 0 {
		s.log.WithField("count", n).Info("Entities removed")
	}
	return n
}

// ExportTarget returns the entity the context menu was opened on and closes
// the menu.
func (s *Session) ExportTarget() (core.Entity, error) {
	if s.menu == nil {
		return core.Entity{}, fmt.Errorf("export: no context menu open: %w", core.ErrNotFound)
	}
	id := s.menu.EntityID
	s.menu = nil
	e, ok := s.store.Get(id)
	if !ok {
		return core.Entity{}, fmt.Errorf("export %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}
