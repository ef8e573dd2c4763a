package canvas

import (
	"canvas-studio/core"
	"math"
)

const (
	HighlightColor = "#007AFF"
	HighlightWidth = 4.0

	SelectionFill   = "rgba(0, 162, 255, 0.1)"
	SelectionStroke = "#00a2ff"

	GridSpacing = 30.0
	GridDotSize = 2.0
)

// ExportAction is the only entry of the entity context menu.
const ExportAction = "download"

type (
	// DrawItem is one entity as the renderer should draw it, in screen space.
	DrawItem struct {
		ID          core.EntityID `json:"id"`
		Box         core.Rect     `json:"box"`
		Src         string        `json:"src"`
		Selected    bool          `json:"selected"`
		StrokeColor string        `json:"strokeColor,omitempty"`
		StrokeWidth float64       `json:"strokeWidth"`
		Placeholder bool          `json:"placeholder,omitempty"`
		Generating  bool          `json:"generating,omitempty"`
	}

	HandleBox struct {
		Handle Handle    `json:"handle"`
		Box    core.Rect `json:"box"`
	}

	// TransformerOverlay frames the selection. Handles are only offered when a
	// single entity is selected.
	TransformerOverlay struct {
		Box     core.Rect   `json:"box"`
		Handles []HandleBox `json:"handles,omitempty"`
	}

	SelectionOverlay struct {
		Box    core.Rect `json:"box"`
		Fill   string    `json:"fill"`
		Stroke string    `json:"stroke"`
		Dash   []float64 `json:"dash"`
	}

	// GridOverlay describes the dotted background so that it pans and zooms
	// with the canvas.
	GridOverlay struct {
		Spacing float64    `json:"spacing"`
		Offset  core.Point `json:"offset"`
		DotSize float64    `json:"dotSize"`
	}

	ContextMenu struct {
		Anchor   core.Point    `json:"anchor"`
		EntityID core.EntityID `json:"entityId"`
		Actions  []string      `json:"actions"`
	}

	// Frame is everything the renderer needs for one paint.
	Frame struct {
		Viewport      Viewport            `json:"viewport"`
		ZoomPercent   int                 `json:"zoomPercent"`
		Tool          string              `json:"tool"`
		State         string              `json:"state"`
		Cursor        string              `json:"cursor"`
		Busy          bool                `json:"busy"`
		Grid          GridOverlay         `json:"grid"`
		Items         []DrawItem          `json:"items"`
		Transformer   *TransformerOverlay `json:"transformer,omitempty"`
		SelectionRect *SelectionOverlay   `json:"selectionRect,omitempty"`
		ContextMenu   *ContextMenu        `json:"contextMenu,omitempty"`

		index map[core.EntityID]int
	}
)

// Project derives a Frame from the canvas state. It has no side effects.
func Project(entities []core.Entity, selection []core.EntityID, view Viewport, in Interaction, menu *ContextMenu, busy bool) Frame {
	selected := make(map[core.EntityID]struct{}, len(selection))
	for _, id := range selection {
		selected[id] = struct{}{}
	}

	f := Frame{
		Viewport:    view,
		ZoomPercent: view.ZoomPercent(),
		Tool:        in.Tool.String(),
		State:       in.State().String(),
		Cursor:      cursor(in),
		Busy:        busy,
		Grid:        grid(view),
		Items:       make([]DrawItem, 0, len(entities)),
		index:       make(map[core.EntityID]int, len(entities)),
	}

	g := in.Gesture
	var frame *core.Rect
	for _, e := range entities {
		box := e.Box()
		if g.Kind == GestureResize && g.EntityID == e.ID {
			box = g.Box
		}
		item := DrawItem{
			ID:          e.ID,
			Box:         view.WorldRectToScreen(box),
			Src:         e.Src,
			Placeholder: e.IsPlaceholder(),
			Generating:  e.Generating,
		}
		if _, ok := selected[e.ID]; ok {
			item.Selected = true
			item.StrokeColor = HighlightColor
			item.StrokeWidth = HighlightWidth
			if frame == nil {
				b := item.Box
				frame = &b
			} else {
				u := frame.Union(item.Box)
				frame = &u
			}
		}
		f.index[e.ID] = len(f.Items)
		f.Items = append(f.Items, item)
	}

	if frame != nil {
		t := &TransformerOverlay{Box: *frame}
		if len(selected) == 1 {
			t.Handles = handleBoxes(*frame)
		}
		f.Transformer = t
	}

	if g.Kind == GestureRectSelect {
		f.SelectionRect = &SelectionOverlay{
			Box:    view.WorldRectToScreen(g.SelectionRect()),
			Fill:   SelectionFill,
			Stroke: SelectionStroke,
			Dash:   []float64{5, 5},
		}
	}

	if menu != nil {
		m := *menu
		f.ContextMenu = &m
	}
	return f
}

func handleBoxes(r core.Rect) []HandleBox {
	out := make([]HandleBox, 0, len(handles))
	for _, h := range handles {
		c := h.Anchor(r)
		out = append(out, HandleBox{
			Handle: h,
			Box: core.Rect{
				X:      c.X - HandleSize/2,
				Y:      c.Y - HandleSize/2,
				Width:  HandleSize,
				Height: HandleSize,
			},
		})
	}
	return out
}

func grid(view Viewport) GridOverlay {
	spacing := GridSpacing * view.Scale
	return GridOverlay{
		Spacing: spacing,
		Offset: core.Point{
			X: math.Mod(view.Pan.X, spacing),
			Y: math.Mod(view.Pan.Y, spacing),
		},
		DotSize: GridDotSize,
	}
}

func cursor(in Interaction) string {
	switch {
	case in.Tool == ToolPan && in.Gesture.Kind == GesturePan:
		return "grabbing"
	case in.Tool == ToolPan:
		return "grab"
	default:
		return "crosshair"
	}
}

// Lookup returns the draw record last projected for id.
func (f Frame) Lookup(id core.EntityID) (DrawItem, bool) {
	i, ok := f.index[id]
	if !ok {
		return DrawItem{}, false
	}
	return f.Items[i], true
}

// HitTest resolves a screen point against this frame: transform handles
// first, then entities from topmost down.
func (f Frame) HitTest(p core.Point) Hit {
	if f.Transformer != nil {
		for _, hb := range f.Transformer.Handles {
			if hb.Box.Contains(p) {
				if id, ok := f.soleSelected(); ok {
					return Hit{Kind: HitHandle, EntityID: id, Handle: hb.Handle}
				}
			}
		}
	}
	for i := len(f.Items) - 1; i >= 0; i-- {
		if f.Items[i].Box.Contains(p) {
			return Hit{Kind: HitEntity, EntityID: f.Items[i].ID}
		}
	}
	return Hit{}
}

func (f Frame) soleSelected() (core.EntityID, bool) {
	var id core.EntityID
	n := 0
	for _, it := range f.Items {
		if it.Selected {
			id = it.ID
			n++
		}
	}
	return id, n == 1
}
