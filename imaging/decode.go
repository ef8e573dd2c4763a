// Package imaging reads the format and pixel size of raster images.
package imaging

import (
	"bytes"
	"canvas-studio/canvas"
	"canvas-studio/core"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned for content that is not a supported raster image.
var ErrNotImage = errors.New("not a supported image")

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Info is what DecodeConfig learned about an image.
type Info struct {
	MIMEType string
	Width    int
	Height   int
}

// Probe reads only the image header.
func Probe(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	mime, ok := mimeTypes[format]
	if !ok {
		return Info{}, fmt.Errorf("%w: format %q", ErrNotImage, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: empty %dx%d image", ErrNotImage, cfg.Width, cfg.Height)
	}
	info := Info{MIMEType: mime, Width: cfg.Width, Height: cfg.Height}
	if format == "jpeg" || format == "tiff" {
		if o := orientation(data); o >= 5 && o <= 8 {
			info.Width, info.Height = info.Height, info.Width
		}
	}
	return info, nil
}

// orientation returns the EXIF orientation tag, or 0 when there is none.
// Values 5 to 8 mean the stored pixels are rotated by a quarter turn, so the
// displayed image has width and height swapped.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	o, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return o
}

// IsImage reports whether a declared content type names an image. Without a
// useful declared type the data is sniffed.
func IsImage(contentType string, data []byte) bool {
	if contentType != "" && contentType != "application/octet-stream" {
		return strings.HasPrefix(contentType, "image/")
	}
	if strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return true
	}
	_, err := Probe(data)
	return err == nil
}

// Decode turns raw bytes into a placeable image with a data URL source.
func Decode(data []byte) (canvas.DecodedImage, error) {
	info, err := Probe(data)
	if err != nil {
		return canvas.DecodedImage{}, err
	}
	src := core.Image{MIMEType: info.MIMEType, Data: data}.DataURL()
	return canvas.DecodedImage{Src: src, Width: info.Width, Height: info.Height}, nil
}

// DecodeImage is Decode for content that arrived with its own MIME type, such
// as a generated image. The sniffed type wins over the declared one.
func DecodeImage(img core.Image) (canvas.DecodedImage, error) {
	return Decode(img.Data)
}
