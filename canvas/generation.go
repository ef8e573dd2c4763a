package canvas

import (
	"canvas-studio/core"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrEmptyPrompt is returned when a generation is requested without text.
var ErrEmptyPrompt = errors.New("prompt is empty")

// PlaceholderSize is the side of the square shown while a generation runs.
const PlaceholderSize = 500.0

type (
	// GenerationRequest is everything the generator needs, captured when the
	// request was made.
	GenerationRequest struct {
		RequestID     string
		PlaceholderID core.EntityID
		Prompt        string
		References    []core.Image
		// Skipped lists selected entities whose content could not be turned
		// into bytes.
		Skipped []core.EntityID
	}

	pendingGeneration struct {
		placeholder core.EntityID
		anchor      core.Point
	}
)

// PlaceholderSrc is an animated grey SVG spinner of the given size, as a
// percent-encoded data URL.
func PlaceholderSrc(w, h int) string {
	svg := fmt.Sprintf(`<svg xmlns='http://www.w3.org/2000/svg' width='%d' height='%d'>`+
		`<rect width='100%%' height='100%%' fill='#f3f4f6'/>`+
		`<circle cx='50%%' cy='50%%' r='30' fill='none' stroke='#9ca3af' stroke-width='4'>`+
		`<animate attributeName='stroke-dasharray' dur='2s' values='0 188;94 94;0 188' repeatCount='indefinite'/>`+
		`<animate attributeName='stroke-dashoffset' dur='2s' values='0;-94;-188' repeatCount='indefinite'/>`+
		`</circle></svg>`, w, h)
	return "data:image/svg+xml;charset=utf-8," + strings.ReplaceAll(url.QueryEscape(svg), "+", "%20")
}

// BeginGeneration inserts a placeholder at the visible centre and captures the
// selected entities' content as references. The caller runs the generator and
// reports back with CompleteGeneration or FailGeneration.
func (s *Session) BeginGeneration(prompt string) (GenerationRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return GenerationRequest{}, ErrEmptyPrompt
	}

	req := GenerationRequest{
		RequestID:     s.newID("genreq"),
		PlaceholderID: core.EntityID(s.newID("placeholder")),
		Prompt:        prompt,
	}

	for _, id := range s.store.Selection() {
		e, ok := s.store.Get(id)
		if !ok {
			continue
		}
		img, err := core.ParseDataURL(e.Src)
		if err != nil {
			s.log.WithError(err).WithField("entity_id", id).Warn("Skipping selected image - not a base64 data URL")
			req.Skipped = append(req.Skipped, id)
			continue
		}
		req.References = append(req.References, img)
	}

	center := s.view.VisibleCenter()
	placeholder := core.Entity{
		ID:                  req.PlaceholderID,
		Position:            core.Point{X: center.X - PlaceholderSize/2, Y: center.Y - PlaceholderSize/2},
		Size:                core.Size{Width: PlaceholderSize, Height: PlaceholderSize},
		Src:                 PlaceholderSrc(int(PlaceholderSize), int(PlaceholderSize)),
		Status:              core.StatusPendingGeneration,
		Generating:          true,
		GenerationRequestID: req.RequestID,
	}
	if err := s.store.Insert(placeholder); err != nil {
		return GenerationRequest{}, err
	}
	s.pending[req.RequestID] = pendingGeneration{placeholder: placeholder.ID, anchor: center}

	s.log.WithFields(logrus.Fields{
		"request_id":     req.RequestID,
		"placeholder_id": placeholder.ID,
		"references":     len(req.References),
	}).Info("Generation started")
	return req, nil
}

// CompleteGeneration swaps the generated image into the placeholder, resized
// to fit MaxDisplaySize and centred where the placeholder was requested. If
// the placeholder was deleted meanwhile the result is dropped.
func (s *Session) CompleteGeneration(requestID string, img DecodedImage) error {
	p, ok := s.pending[requestID]
	if !ok {
		return fmt.Errorf("complete generation %s: %w", requestID, core.ErrNotFound)
	}
	delete(s.pending, requestID)

	log := s.log.WithFields(logrus.Fields{"request_id": requestID, "placeholder_id": p.placeholder})
	if !s.store.Has(p.placeholder) {
		log.Warn("Placeholder removed before generation finished, dropping result")
		return nil
	}

	size := FitSize(img.Width, img.Height)
	pos := core.Point{X: p.anchor.X - size.Width/2, Y: p.anchor.Y - size.Height/2}
	status := core.StatusNormal
	generating := false
	noRequest := ""
	err := s.store.Update(p.placeholder, core.EntityPatch{
		Position:            &pos,
		Size:                &size,
		Src:                 &img.Src,
		Status:              &status,
		Generating:          &generating,
		GenerationRequestID: &noRequest,
	})
	if err != nil {
		return err
	}
	log.Info("Generation completed")
	return nil
}

// FailGeneration clears the in-progress flags of the placeholder. The
// placeholder itself stays on the canvas in PendingGeneration state.
func (s *Session) FailGeneration(requestID string, cause error) error {
	p, ok := s.pending[requestID]
	if !ok {
		return fmt.Errorf("fail generation %s: %w", requestID, core.ErrNotFound)
	}
	delete(s.pending, requestID)

	s.log.WithError(cause).WithFields(logrus.Fields{
		"request_id":     requestID,
		"placeholder_id": p.placeholder,
	}).Error("Generation failed")

	if !s.store.Has(p.placeholder) {
		return nil
	}
	generating := false
	return s.store.Update(p.placeholder, core.EntityPatch{Generating: &generating})
}

// Generating reports whether any generation is still in flight.
func (s *Session) Generating() bool { return len(s.pending) > 0 }

// PendingGenerations returns the ids of requests still in flight.
func (s *Session) PendingGenerations() []string {
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}
