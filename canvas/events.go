package canvas

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	pointerKindNames = map[PointerKind]string{
		PointerDown: "down",
		PointerMove: "move",
		PointerUp:   "up",
	}
	buttonNames = map[Button]string{
		ButtonPrimary:   "primary",
		ButtonSecondary: "secondary",
	}
)

func (k PointerKind) String() string {
	if name, ok := pointerKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PointerKind(%d)", int(k))
}

func (k PointerKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText also accepts the DOM event names.
func (k *PointerKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "down", "pointerdown", "mousedown":
		*k = PointerDown
	case "move", "pointermove", "mousemove":
		*k = PointerMove
	case "up", "pointerup", "mouseup":
		*k = PointerUp
	default:
		return fmt.Errorf("unknown pointer event kind %q", text)
	}
	return nil
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Button(%d)", int(b))
}

func (b Button) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalJSON accepts the DOM MouseEvent.button number as sent by browsers,
// where 2 is the secondary button, as well as the names UnmarshalText takes.
func (b *Button) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		return b.UnmarshalText([]byte(name))
	}
	if string(data) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unknown pointer button %s", data)
	}
	switch n {
	case 0:
		*b = ButtonPrimary
	case 2:
		*b = ButtonSecondary
	default:
		return fmt.Errorf("unknown pointer button %d", n)
	}
	return nil
}

// UnmarshalText accepts "primary", "secondary" and their DOM numbers as
// strings.
func (b *Button) UnmarshalText(text []byte) error {
	switch string(text) {
	case "primary", "left", "0", "":
		*b = ButtonPrimary
	case "secondary", "right", "2":
		*b = ButtonSecondary
	default:
		return fmt.Errorf("unknown pointer button %q", text)
	}
	return nil
}
