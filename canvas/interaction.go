package canvas

import (
	"canvas-studio/core"

	"github.com/sirupsen/logrus"
)

// MinEntitySize is the smallest width or height a resize may produce.
const MinEntitySize = 50.0

const (
	ToolPointer Tool = iota
	ToolPan
)

const (
	StateIdle State = iota
	StateRectSelecting
	StateDragging
	StateResizing
	StatePanning
)

const (
	GestureNone GestureKind = iota
	GestureRectSelect
	GestureDrag
	GestureResize
	GesturePan
)

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
)

const (
	ButtonPrimary Button = iota
	ButtonSecondary
)

const (
	HitNone HitKind = iota
	HitEntity
	HitHandle
)

type (
	// Tool is chosen from the toolbar; the state machine reads it but never
	// changes it.
	Tool int

	State int

	GestureKind int

	PointerKind int

	Button int

	HitKind int

	// PointerEvent is a raw pointer event in screen coordinates. Modifier is
	// the multi-select key (ctrl or meta).
	PointerEvent struct {
		Kind     PointerKind `json:"kind"`
		Screen   core.Point  `json:"screen"`
		Button   Button      `json:"button"`
		Modifier bool        `json:"modifier"`
	}

	// Hit is what lies under a screen point.
	Hit struct {
		Kind     HitKind
		EntityID core.EntityID
		Handle   Handle
	}

	// Gesture is the single in-progress pointer interaction. Which fields are
	// meaningful depends on Kind.
	Gesture struct {
		Kind GestureKind `json:"kind"`

		// RectSelect: world-space anchor and current corner.
		Start   core.Point `json:"start"`
		Current core.Point `json:"current"`

		// Drag, Resize and Pan: screen position at press and at the last move.
		Origin core.Point `json:"origin"`
		Last   core.Point `json:"last"`
		// Drag and Resize: world position at press. Deltas are measured from
		// it so a zoom mid-gesture leaves the entity under the pointer.
		Anchor core.Point `json:"anchor"`

		// Drag: the moving entities and where each one started.
		EntityIDs      []core.EntityID `json:"entityIds,omitempty"`
		StartPositions []core.Point    `json:"startPositions,omitempty"`
		Moved          bool            `json:"moved"`
		// SelectOnRelease defers an exclusive select to a release without
		// movement, so a pressed member of a multi-selection can drag the group.
		SelectOnRelease core.EntityID `json:"-"`

		// Resize: the target, the grabbed handle, its box at press and the
		// proposed box so far.
		EntityID core.EntityID `json:"entityId,omitempty"`
		Handle   Handle        `json:"handle"`
		StartBox core.Rect     `json:"startBox"`
		Box      core.Rect     `json:"box"`
	}

	// Interaction is the state machine's whole state.
	Interaction struct {
		Tool    Tool
		Gesture Gesture
	}

	// Scene is the read-only view of the canvas the state machine needs.
	Scene interface {
		View() Viewport
		HitTest(screen core.Point) Hit
		FindContaining(rect core.Rect) []core.EntityID
		Selection() []core.EntityID
		IsSelected(id core.EntityID) bool
		Get(id core.EntityID) (core.Entity, bool)
	}
)

func (g Gesture) State() State {
	switch g.Kind {
	case GestureRectSelect:
		return StateRectSelecting
	case GestureDrag:
		return StateDragging
	case GestureResize:
		return StateResizing
	case GesturePan:
		return StatePanning
	default:
		return StateIdle
	}
}

// SelectionRect is the normalised world-space rectangle of a RectSelect.
func (g Gesture) SelectionRect() core.Rect {
	return core.RectFromPoints(g.Start, g.Current)
}

func (in Interaction) State() State { return in.Gesture.State() }

// Step applies one pointer event and returns the next interaction state plus
// the mutations the session must apply, in order.
func Step(in Interaction, ev PointerEvent, sc Scene) (Interaction, []Mutation) {
	switch ev.Kind {
	case PointerDown:
		return pointerDown(in, ev, sc)
	case PointerMove:
		return pointerMove(in, ev, sc)
	case PointerUp:
		return release(in, sc)
	}
	return in, nil
}

// Finish ends the active gesture as if the pointer had been released where it
// last was.
func Finish(in Interaction, sc Scene) (Interaction, []Mutation) {
	return release(in, sc)
}

func pointerDown(in Interaction, ev PointerEvent, sc Scene) (Interaction, []Mutation) {
	var muts []Mutation
	if in.Gesture.Kind != GestureNone {
		in, muts = release(in, sc)
	}

	hit := sc.HitTest(ev.Screen)

	if ev.Button == ButtonSecondary {
		if hit.Kind != HitNone {
			muts = append(muts, ShowContextMenu{Anchor: ev.Screen, EntityID: hit.EntityID})
		}
		return in, muts
	}
	muts = append(muts, HideContextMenu{})

	if in.Tool == ToolPan {
		in.Gesture = Gesture{Kind: GesturePan, Origin: ev.Screen, Last: ev.Screen}
		return in, muts
	}

	switch hit.Kind {
	case HitHandle:
		e, ok := sc.Get(hit.EntityID)
		if !ok {
			return in, muts
		}
		in.Gesture = Gesture{
			Kind:     GestureResize,
			Origin:   ev.Screen,
			Last:     ev.Screen,
			Anchor:   sc.View().ScreenToWorld(ev.Screen),
			EntityID: e.ID,
			Handle:   hit.Handle,
			StartBox: e.Box(),
			Box:      e.Box(),
		}
	case HitEntity:
		g := Gesture{Kind: GestureDrag, Origin: ev.Screen, Last: ev.Screen, Anchor: sc.View().ScreenToWorld(ev.Screen)}
		selected := sc.IsSelected(hit.EntityID)
		switch {
		case ev.Modifier:
			muts = append(muts, ToggleSelection{ID: hit.EntityID})
			selected = !selected
		case selected && len(sc.Selection()) > 1:
			g.SelectOnRelease = hit.EntityID
		default:
			muts = append(muts, SelectExclusive{ID: hit.EntityID})
		}

		// A member of a multi-selection drags the whole selection; anything
		// else drags alone.
		movers := []core.EntityID{hit.EntityID}
		switch {
		case g.SelectOnRelease != "":
			movers = sc.Selection()
		case ev.Modifier && selected:
			movers = append(sc.Selection(), hit.EntityID)
		}
		for _, id := range movers {
			if e, ok := sc.Get(id); ok {
				g.EntityIDs = append(g.EntityIDs, id)
				g.StartPositions = append(g.StartPositions, e.Position)
			}
		}
		in.Gesture = g
	default:
		world := sc.View().ScreenToWorld(ev.Screen)
		muts = append(muts, ClearSelection{})
		in.Gesture = Gesture{Kind: GestureRectSelect, Start: world, Current: world}
	}
	return in, muts
}

func pointerMove(in Interaction, ev PointerEvent, sc Scene) (Interaction, []Mutation) {
	g := in.Gesture
	view := sc.View()

	switch g.Kind {
	case GestureRectSelect:
		g.Current = view.ScreenToWorld(ev.Screen)
		in.Gesture = g
		return in, []Mutation{ReplaceSelection{IDs: sc.FindContaining(g.SelectionRect())}}

	case GestureDrag:
		delta := view.ScreenToWorld(ev.Screen).Sub(g.Anchor)
		if !delta.IsZero() {
			g.Moved = true
		}
		g.Last = ev.Screen
		in.Gesture = g
		if len(g.EntityIDs) == 0 {
			return in, nil
		}
		positions := make([]core.Point, len(g.StartPositions))
		for i, p := range g.StartPositions {
			positions[i] = p.Add(delta)
		}
		return in, []Mutation{MoveEntities{IDs: g.EntityIDs, Positions: positions}}

	case GestureResize:
		delta := view.ScreenToWorld(ev.Screen).Sub(g.Anchor)
		g.Box = g.Handle.Resize(g.StartBox, delta)
		g.Last = ev.Screen
		in.Gesture = g
		return in, nil

	case GesturePan:
		delta := ev.Screen.Sub(g.Last)
		g.Last = ev.Screen
		in.Gesture = g
		if delta.IsZero() {
			return in, nil
		}
		return in, []Mutation{PanViewport{Delta: delta}}
	}
	return in, nil
}

func release(in Interaction, sc Scene) (Interaction, []Mutation) {
	g := in.Gesture
	in.Gesture = Gesture{}

	switch g.Kind {
	case GestureRectSelect:
		return in, []Mutation{ReplaceSelection{IDs: sc.FindContaining(g.SelectionRect())}}

	case GestureDrag:
		if !g.Moved && g.SelectOnRelease != "" {
			return in, []Mutation{SelectExclusive{ID: g.SelectOnRelease}}
		}

	case GestureResize:
		if g.Box.Width < MinEntitySize || g.Box.Height < MinEntitySize {
			logrus.WithFields(logrus.Fields{
				"entity_id": g.EntityID,
				"width":     g.Box.Width,
				"height":    g.Box.Height,
			}).Debug("Rejected resize below minimum size")
			return in, nil
		}
		if g.Box == g.StartBox {
			return in, nil
		}
		return in, []Mutation{ResizeEntity{ID: g.EntityID, Box: g.Box}}
	}
	return in, nil
}

func (t Tool) String() string {
	if t == ToolPan {
		return "pan"
	}
	return "pointer"
}

// ParseTool accepts the toolbar names, including the legacy "mouse" and
// "hand" spellings.
func ParseTool(name string) (Tool, bool) {
	switch name {
	case "pointer", "mouse":
		return ToolPointer, true
	case "pan", "hand":
		return ToolPan, true
	}
	return ToolPointer, false
}

func (s State) String() string {
	switch s {
	case StateRectSelecting:
		return "rect_selecting"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	case StatePanning:
		return "panning"
	default:
		return "idle"
	}
}
