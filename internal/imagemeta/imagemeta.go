// Package imagemeta extracts frame metadata from raw image bytes.
package imagemeta

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	// Registered decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions returns the pixel width and height of an encoded image without
// decoding the full frame.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image dimensions: %w", err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("invalid %s dimensions: %dx%d", format, cfg.Width, cfg.Height)
	}

	return cfg.Width, cfg.Height, nil
}

// IsImageFile reports whether the object key looks like a frame this
// pipeline should process, by extension.
func IsImageFile(key string) bool {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp":
		return true
	default:
		return false
	}
}
