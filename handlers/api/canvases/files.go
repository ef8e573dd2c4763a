package canvases

import (
	"canvas-studio/canvas"
	"canvas-studio/core"
	"canvas-studio/generation"
	"canvas-studio/sessions"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// MaxUploadMemory bounds the in-memory part of a multipart upload.
const MaxUploadMemory = 32 << 20

// MaxUploadSize caps the whole upload request body.
var MaxUploadSize int64 = 100 << 20

type (
	UploadResponse struct {
		IDs     []core.EntityID `json:"ids"`
		Skipped int             `json:"skipped"`
		Frame   canvas.Frame    `json:"frame"`
	}

	GenerateRequest struct {
		Prompt string `json:"prompt"`
	}

	GenerateResponse struct {
		RequestID     string          `json:"requestId"`
		PlaceholderID core.EntityID   `json:"placeholderId"`
		Skipped       []core.EntityID `json:"skipped,omitempty"`
		Frame         canvas.Frame    `json:"frame"`
	}

	ExportResponse struct {
		*core.Export
		URL string `json:"url"`
	}
)

// ExportURL is where a saved export can be downloaded.
func ExportURL(id string) string { return "/api/v2/exports/" + id }

// HandleUpload places every image of a multipart "files" field.
func HandleUpload(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
		if err := r.ParseMultipartForm(MaxUploadMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)})
				return
			}
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Expected a multipart form"})
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File["files"]
		uploads := make([]sessions.Upload, 0, len(headers))
		for _, fh := range headers {
			data, err := readPart(fh)
			if err != nil {
				logrus.WithError(err).WithField("file_name", fh.Filename).Warn("Failed to read uploaded file")
				continue
			}
			uploads = append(uploads, sessions.Upload{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}

		ids, skipped, err := reg.Upload(ws.ID(), uploads)
		skipped += len(headers) - len(uploads)
		if err != nil {
			logrus.WithError(err).WithField("session_id", ws.ID()).Error("Failed to place uploads")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to place uploads"})
			return
		}
		if ids == nil {
			ids = []core.EntityID{}
		}
		render.JSON(w, r, UploadResponse{IDs: ids, Skipped: skipped, Frame: ws.Frame()})
	}
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// HandleGenerate places a placeholder and answers 202 while the generator
// runs. The result arrives as a frame over the socket, or on the next poll.
func HandleGenerate(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}
		var body GenerateRequest
		if err := render.DecodeJSON(r.Body, &body); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		req, err := reg.Generate(r.Context(), ws.ID(), body.Prompt)
		switch {
		case errors.Is(err, generation.ErrCredentialMissing):
			render.Status(r, http.StatusPreconditionFailed)
			render.JSON(w, r, map[string]string{"error": "No API key configured for image generation"})
			return
		case errors.Is(err, canvas.ErrEmptyPrompt):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Prompt is required"})
			return
		case err != nil:
			logrus.WithError(err).WithField("session_id", ws.ID()).Error("Failed to start generation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to start generation"})
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, GenerateResponse{
			RequestID:     req.RequestID,
			PlaceholderID: req.PlaceholderID,
			Skipped:       req.Skipped,
			Frame:         ws.Frame(),
		})
	}
}

// HandleExport saves the entity under the open context menu.
func HandleExport(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}

		export, err := reg.Export(r.Context(), ws.ID())
		switch {
		case errors.Is(err, sessions.ErrNotExportable):
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]string{"error": "This image cannot be downloaded yet"})
			return
		case errors.Is(err, core.ErrNotFound):
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]string{"error": "No image context menu is open"})
			return
		case err != nil:
			logrus.WithError(err).WithField("session_id", ws.ID()).Error("Failed to export image")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to export image"})
			return
		}

		meta := *export
		meta.Data = nil
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, ExportResponse{Export: &meta, URL: ExportURL(export.ID)})
	}
}

func HandleListExports(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace(w, r, reg)
		if !ok {
			return
		}
		exports, err := reg.Exports(r.Context(), ws.ID())
		if err != nil {
			logrus.WithError(err).WithField("session_id", ws.ID()).Error("Failed to list exports")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list exports"})
			return
		}

		resp := make([]ExportResponse, 0, len(exports))
		for _, e := range exports {
			resp = append(resp, ExportResponse{Export: e, URL: ExportURL(e.ID)})
		}
		render.JSON(w, r, resp)
	}
}

// HandleDownload serves an export as an attachment. Export ids are not
// guessable, so the route needs no token.
func HandleDownload(reg *sessions.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		export, err := reg.Download(r.Context(), id)
		if err != nil {
			if !errors.Is(err, core.ErrExportNotFound) {
				logrus.WithError(err).WithField("export_id", id).Error("Failed to load export")
			}
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Export not found"})
			return
		}

		w.Header().Set("Content-Type", export.MIMEType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Name))
		w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
		if _, err := w.Write(export.Data); err != nil {
			logrus.WithError(err).WithField("export_id", id).Warn("Failed to write export")
		}
	}
}
