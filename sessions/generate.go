package sessions

import (
	"canvas-studio/canvas"
	"canvas-studio/core"
	"canvas-studio/generation"
	"canvas-studio/imaging"
	"context"

	"github.com/sirupsen/logrus"
)

const (
	quotaMessage = "Generation failed: the API quota is exhausted. Check billing for your API key."
	errorMessage = "Generation failed. Please try again."
)

// Generate inserts a placeholder and starts the generator in the background.
// It returns as soon as the placeholder is on the canvas; the result is
// applied when the generator answers. ctx only supplies values: the
// generation is not cancelled when it ends.
func (r *Registry) Generate(ctx context.Context, sessionID, prompt string) (canvas.GenerationRequest, error) {
	w, err := r.Get(sessionID)
	if err != nil {
		return canvas.GenerationRequest{}, err
	}
	// Without a credential nothing is placed on the canvas.
	if r.generator == nil {
		return canvas.GenerationRequest{}, generation.ErrCredentialMissing
	}
	if g, ok := r.generator.(ready); ok && !g.Ready() {
		return canvas.GenerationRequest{}, generation.ErrCredentialMissing
	}

	var req canvas.GenerationRequest
	err = w.Do(func(s *canvas.Session) error {
		var err error
		req, err = s.BeginGeneration(prompt)
		return err
	})
	if err != nil {
		return canvas.GenerationRequest{}, err
	}

	r.inflight.Add(1)
	go r.runGeneration(context.WithoutCancel(ctx), w, req)
	return req, nil
}

func (r *Registry) runGeneration(ctx context.Context, w *Workspace, req canvas.GenerationRequest) {
	defer r.inflight.Done()

	sessionID := w.ID()
	log := logrus.WithFields(logrus.Fields{"session_id": sessionID, "request_id": req.RequestID})

	var decoded canvas.DecodedImage
	img, err := r.generator.Generate(ctx, req.Prompt, req.References)
	if err == nil {
		decoded, err = imaging.DecodeImage(img)
		if err != nil {
			log.WithError(err).Warn("Generated content could not be decoded")
		}
	}

	applyErr := w.Do(func(s *canvas.Session) error {
		if err != nil {
			return s.FailGeneration(req.RequestID, err)
		}
		return s.CompleteGeneration(req.RequestID, decoded)
	})
	if applyErr != nil {
		log.WithError(applyErr).Error("Failed to apply generation result")
	}

	if err != nil {
		notice := core.Notice{Kind: core.NoticeError, Message: errorMessage, RequestID: req.RequestID}
		if generation.Classify(err) == generation.KindQuotaExceeded {
			notice = core.Notice{Kind: core.NoticeQuotaExceeded, Message: quotaMessage, RequestID: req.RequestID}
		}
		r.notify(sessionID, notice)
	}
	r.changed(sessionID)
}
