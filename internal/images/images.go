package images

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

var ErrNotAnImage = errors.New("data is not a supported image format")

// Detect returns the image format name ("png", "jpeg", "gif", "webp") if
// the bytes decode as a supported raster image. Only the header is decoded;
// the full pixel data is never materialized.
func Detect(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrNotAnImage
	}
	return format, nil
}

// Ext maps a detected format to a file extension for object keys.
func Ext(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
