package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotDataURL is returned by ParseDataURL for sources that are not base64
// encoded image data URLs.
var ErrNotDataURL = errors.New("not a base64 image data url")

var dataURLPattern = regexp.MustCompile(`^data:(image/[a-zA-Z0-9.+-]+);base64,(.*)$`)

type (
	// Image is raw raster bytes with their MIME type.
	Image struct {
		MIMEType string
		Data     []byte
	}

	// Generator produces an image from a prompt and zero or more reference
	// images. Implementations may block for an unbounded time.
	Generator interface {
		Generate(ctx context.Context, prompt string, references []Image) (Image, error)
	}
)

// DataURL encodes the image as a base64 data URL.
func (img Image) DataURL() string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data))
}

// ParseDataURL decodes a "data:image/...;base64,..." source back into bytes.
func ParseDataURL(src string) (Image, error) {
	match := dataURLPattern.FindStringSubmatch(src)
	if match == nil {
		return Image{}, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil {
		return Image{}, fmt.Errorf("decode data url payload: %w", err)
	}
	return Image{MIMEType: match[1], Data: data}, nil
}
