package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const MaxImageDimension = 4096

var ErrInvalidImage = errors.New("invalid image")

// ValidationReason returns the human readable reason carried by a validation error.
func ValidationReason(err error) string {
	var vErr *validationError
	if errors.As(err, &vErr) {
		return vErr.reason
	}
	return err.Error()
}

type validationError struct {
	reason string
}

func (e *validationError) Error() string {
	return e.reason
}

func (e *validationError) Is(target error) bool {
	return target == ErrInvalidImage
}

func invalid(reason string) error {
	return &validationError{reason: reason}
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// PNG color types from the IHDR chunk.
const (
	pngTruecolor      = 2
	pngTruecolorAlpha = 6
)

// ValidateImage checks dimensions, container format and color mode using only
// the image header.
func ValidateImage(r io.Reader) error {
	br := bufio.NewReader(r)

	// Signature (8) + chunk length (4) + "IHDR" (4) + width (4) + height (4) + bit depth (1) + color type (1).
	header, _ := br.Peek(26)

	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		return invalid(fmt.Sprintf("Invalid image file: %v", err))
	}

	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return invalid(fmt.Sprintf("Image dimensions too large. Maximum dimension is %dpx.", MaxImageDimension))
	}

	switch format {
	case "jpeg":
		if cfg.ColorModel != color.YCbCrModel {
			return invalid("Invalid image mode. Only RGB images are supported.")
		}
	case "png":
		if len(header) < 26 || !bytes.HasPrefix(header, pngSignature) {
			return invalid("Invalid image file: truncated png header")
		}
		if ct := header[25]; ct != pngTruecolor && ct != pngTruecolorAlpha {
			return invalid("Invalid image mode. Only RGB images are supported.")
		}
	default:
		return invalid("Invalid image format. Only JPEG and PNG are supported.")
	}

	return nil
}

func ValidateImageFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return invalid(fmt.Sprintf("Invalid image file: %v", err))
	}
	defer f.Close()

	return ValidateImage(f)
}
