package canvas

import (
	"canvas-studio/core"
	"fmt"
)

// HandleSize is the side length in screen pixels of a transform handle.
const HandleSize = 10.0

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTopCenter
	HandleTopRight
	HandleMiddleRight
	HandleBottomRight
	HandleBottomCenter
	HandleBottomLeft
	HandleMiddleLeft
)

// Handle names one of the eight resize anchors around a box.
type Handle int

var handles = [...]Handle{
	HandleTopLeft,
	HandleTopCenter,
	HandleTopRight,
	HandleMiddleRight,
	HandleBottomRight,
	HandleBottomCenter,
	HandleBottomLeft,
	HandleMiddleLeft,
}

var handleNames = map[Handle]string{
	HandleNone:         "none",
	HandleTopLeft:      "top-left",
	HandleTopCenter:    "top-center",
	HandleTopRight:     "top-right",
	HandleMiddleRight:  "middle-right",
	HandleBottomRight:  "bottom-right",
	HandleBottomCenter: "bottom-center",
	HandleBottomLeft:   "bottom-left",
	HandleMiddleLeft:   "middle-left",
}

func (h Handle) String() string {
	if name, ok := handleNames[h]; ok {
		return name
	}
	return fmt.Sprintf("Handle(%d)", int(h))
}

func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h Handle) left() bool {
	return h == HandleTopLeft || h == HandleMiddleLeft || h == HandleBottomLeft
}

func (h Handle) right() bool {
	return h == HandleTopRight || h == HandleMiddleRight || h == HandleBottomRight
}

func (h Handle) top() bool {
	return h == HandleTopLeft || h == HandleTopCenter || h == HandleTopRight
}

func (h Handle) bottom() bool {
	return h == HandleBottomLeft || h == HandleBottomCenter || h == HandleBottomRight
}

// Anchor is the centre of the handle on box r.
func (h Handle) Anchor(r core.Rect) core.Point {
	p := r.Center()
	switch {
	case h.left():
		p.X = r.X
	case h.right():
		p.X = r.X + r.Width
	}
	switch {
	case h.top():
		p.Y = r.Y
	case h.bottom():
		p.Y = r.Y + r.Height
	}
	return p
}

// Resize moves the edges this handle controls by delta. The result is not
// normalised or clamped: a box dragged past its opposite edge ends up with a
// negative size.
func (h Handle) Resize(box core.Rect, delta core.Point) core.Rect {
	if h.left() {
		box.X += delta.X
		box.Width -= delta.X
	}
	if h.right() {
		box.Width += delta.X
	}
	if h.top() {
		box.Y += delta.Y
		box.Height -= delta.Y
	}
	if h.bottom() {
		box.Height += delta.Y
	}
	return box
}
