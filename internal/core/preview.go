package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"golang.org/x/image/draw"
)

const (
	PreviewMaxSize = 800
	previewQuality = 85
)

// thumbnailSize shrinks (w, h) to fit inside limit x limit keeping the aspect ratio.
// Images that already fit keep their size.
func thumbnailSize(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, int(float64(h)*float64(limit)/float64(w)+0.5))
	}
	return max(1, int(float64(w)*float64(limit)/float64(h)+0.5)), limit
}

// CreatePreview renders a base64 encoded JPEG thumbnail of at most 800x800.
func CreatePreview(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("error reading image: %w", err)
	}

	img, err := DecodeImage(data)
	if err != nil {
		return "", err
	}

	rgb := toRGB(img)
	w, h := thumbnailSize(rgb.Bounds().Dx(), rgb.Bounds().Dy(), PreviewMaxSize)

	var out image.Image = rgb
	if w != rgb.Bounds().Dx() || h != rgb.Bounds().Dy() {
		thumb := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(thumb, thumb.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)
		out = thumb
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: previewQuality}); err != nil {
		return "", fmt.Errorf("error encoding preview: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
