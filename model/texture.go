package model

import (
	"bytes"
	"fmt"
	"image"

	// decoders registered for DecodeTexture
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeTexture decodes an image file of any registered format
func DecodeTexture(name string, data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err == image.ErrFormat {
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, corrupt(name, "%s", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, corrupt(name, "empty %s image", format)
	}
	return img, nil
}
