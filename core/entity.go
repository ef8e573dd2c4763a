package core

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrDuplicateID is returned when inserting an entity whose id is already
	// present in the store.
	ErrDuplicateID = errors.New("duplicate entity id")
	// ErrNotFound is returned when an operation names an entity that is not
	// in the store.
	ErrNotFound = errors.New("entity not found")
)

const (
	StatusNormal EntityStatus = iota
	// StatusPendingGeneration marks a placeholder awaiting remote content.
	StatusPendingGeneration
)

type (
	EntityID string

	EntityStatus int

	// Entity is a single image placed on the canvas. Position is the top-left
	// corner in world space.
	Entity struct {
		ID       EntityID     `json:"id"`
		Position Point        `json:"position"`
		Size     Size         `json:"size"`
		Src      string       `json:"src"`
		Status   EntityStatus `json:"status"`

		// Generating is set while a remote generation for this placeholder is
		// in flight. It is cleared on success and on failure.
		Generating          bool   `json:"generating,omitempty"`
		GenerationRequestID string `json:"generationRequestId,omitempty"`
	}

	// EntityPatch lists the fields to overwrite on an entity. Nil fields are
	// left untouched.
	EntityPatch struct {
		Position            *Point
		Size                *Size
		Src                 *string
		Status              *EntityStatus
		Generating          *bool
		GenerationRequestID *string
	}
)

// NewID returns a fresh identifier of the form "<prefix>_<ulid>".
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, ulid.Make().String())
}

// Box returns the entity's bounding box in world space.
func (e Entity) Box() Rect { return NewRect(e.Position, e.Size) }

// IsPlaceholder reports whether the entity still waits for generated content.
func (e Entity) IsPlaceholder() bool { return e.Status == StatusPendingGeneration }

// Apply returns a copy of e with the non-nil fields of p written over it.
func (p EntityPatch) Apply(e Entity) Entity {
	if p.Position != nil {
		e.Position = *p.Position
	}
	if p.Size != nil {
		e.Size = *p.Size
	}
	if p.Src != nil {
		e.Src = *p.Src
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Generating != nil {
		e.Generating = *p.Generating
	}
	if p.GenerationRequestID != nil {
		e.GenerationRequestID = *p.GenerationRequestID
	}
	return e
}

func (s EntityStatus) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusPendingGeneration:
		return "pending_generation"
	default:
		return fmt.Sprintf("EntityStatus(%d)", int(s))
	}
}

func (s EntityStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
