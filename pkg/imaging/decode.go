// Package imaging identifies and validates downloaded image payloads.
//
// Decoders for JPEG, PNG, GIF, WebP, BMP and TIFF are registered on import.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned for a zero-length payload
var ErrEmpty = errors.New("empty image payload")

// Info describes a decoded image
type Info struct {
	// Format is the registered decoder name: jpeg, png, gif, webp, bmp or tiff
	Format string
	Width  int
	Height int
}

// Extension returns the file extension for the format, without a dot
func (i Info) Extension() string {
	return i.Format
}

// Decode fully decodes data so truncated or corrupt payloads are rejected,
// and reports the detected format
func Decode(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmpty
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	return Info{Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}
