package sessions

import (
	"canvas-studio/canvas"
	"canvas-studio/core"
	"canvas-studio/imaging"
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ExportName is the file name offered for every downloaded image.
const ExportName = "image.png"

// Upload is one file the user dropped or picked.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Upload places every decodable image of the batch. Files that are not
// images, or fail to decode, are skipped and counted.
func (r *Registry) Upload(sessionID string, files []Upload) ([]core.EntityID, int, error) {
	w, err := r.Get(sessionID)
	if err != nil {
		return nil, 0, err
	}
	log := logrus.WithField("session_id", sessionID)

	images := make([]canvas.DecodedImage, 0, len(files))
	skipped := 0
	for _, f := range files {
		flog := log.WithFields(logrus.Fields{
			"file_name":    f.Name,
			"content_type": f.ContentType,
			"size":         humanize.Bytes(uint64(len(f.Data))),
		})
		if !imaging.IsImage(f.ContentType, f.Data) {
			flog.Warn("Skipping upload that is not an image")
			skipped++
			continue
		}
		img, err := imaging.Decode(f.Data)
		if err != nil {
			flog.WithError(err).Warn("Skipping upload that failed to decode")
			skipped++
			continue
		}
		images = append(images, img)
	}

	var ids []core.EntityID
	err = w.Do(func(s *canvas.Session) error {
		var err error
		ids, err = s.PlaceUploads(images)
		return err
	})
	return ids, skipped, err
}

// Export saves the image under the open context menu to the export store and
// closes the menu.
func (r *Registry) Export(ctx context.Context, sessionID string) (*core.Export, error) {
	if r.exports == nil {
		return nil, errors.New("no export store configured")
	}
	w, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var target core.Entity
	if err := w.Do(func(s *canvas.Session) error {
		var err error
		target, err = s.ExportTarget()
		return err
	}); err != nil {
		return nil, err
	}

	img, err := core.ParseDataURL(target.Src)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", target.ID, ErrNotExportable)
	}

	export := &core.Export{
		SessionID: sessionID,
		Name:      ExportName,
		MIMEType:  img.MIMEType,
		Data:      img.Data,
	}
	if _, err := r.exports.Save(ctx, export); err != nil {
		return nil, fmt.Errorf("save export: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sessionID,
		"entity_id":  target.ID,
		"export_id":  export.ID,
		"size":       humanize.Bytes(uint64(len(export.Data))),
	}).Info("Entity exported")
	return export, nil
}

// Exports lists what a session has exported so far.
func (r *Registry) Exports(ctx context.Context, sessionID string) ([]*core.Export, error) {
	if r.exports == nil {
		return nil, errors.New("no export store configured")
	}
	return r.exports.List(ctx, sessionID)
}

// Download fetches an export by id.
func (r *Registry) Download(ctx context.Context, exportID string) (*core.Export, error) {
	if r.exports == nil {
		return nil, fmt.Errorf("export %s: %w", exportID, core.ErrExportNotFound)
	}
	return r.exports.Get(ctx, exportID)
}
