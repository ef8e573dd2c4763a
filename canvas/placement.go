package canvas

import (
	"canvas-studio/core"

	"github.com/sirupsen/logrus"
)

const (
	// MaxDisplaySize caps the longer side of a newly placed image.
	MaxDisplaySize = 500.0
	// UploadCascade offsets each further image of one upload batch.
	UploadCascade = 30.0
)

// DecodedImage is image content whose pixel dimensions are known.
type DecodedImage struct {
	Src    string
	Width  int
	Height int
}

// FitSize scales a width x height image so its longer side is
// MaxDisplaySize, keeping the aspect ratio. Square images become
// MaxDisplaySize on both sides.
func FitSize(width, height int) core.Size {
	if width <= 0 || height <= 0 {
		return core.Size{Width: MaxDisplaySize, Height: MaxDisplaySize}
	}
	aspect := float64(width) / float64(height)
	if width > height {
		return core.Size{Width: MaxDisplaySize, Height: MaxDisplaySize / aspect}
	}
	return core.Size{Width: MaxDisplaySize * aspect, Height: MaxDisplaySize}
}

// PlaceUploads adds one entity per image, centred on the visible centre. The
// i-th image is shifted down-right by i*UploadCascade so a batch does not
// stack exactly.
func (s *Session) PlaceUploads(images []DecodedImage) ([]core.EntityID, error) {
	center := s.view.VisibleCenter()
	ids := make([]core.EntityID, 0, len(images))
	for i, img := range images {
		size := FitSize(img.Width, img.Height)
		offset := float64(i) * UploadCascade
		e := core.Entity{
			ID:   core.EntityID(s.newID("img")),
			Size: size,
			Src:  img.Src,
			Position: core.Point{
				X: center.X - size.Width/2 + offset,
				Y: center.Y - size.Height/2 + offset,
			},
		}
		if err := s.store.Insert(e); err != nil {
			return ids, err
		}
		ids = append(ids, e.ID)
	}
	s.log.WithFields(logrus.Fields{"count": len(ids)}).Info("Uploaded images placed")
	return ids, nil
}
