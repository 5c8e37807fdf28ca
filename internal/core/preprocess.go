package core

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

// DecodeImage decodes a JPEG or PNG and applies the EXIF orientation so the
// pixels are upright.
func DecodeImage(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if format == "jpeg" {
		img = applyOrientation(img, readOrientation(data))
	}
	return img, nil
}

func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		slog.Warn("ignoring invalid exif orientation", "value", tag.String())
		return 1
	}
	return o
}

func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

// toRGB drops the alpha channel, keeping the stored color values.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return dst
}

// PreprocessImage turns an upright image into a normalized NCHW tensor of
// shape [1, 3, size, size].
func PreprocessImage(img image.Image, meta ModelMetadata) Tensor {
	size := meta.ImageSize

	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Bounds(), toRGB(img), img.Bounds().Sub(img.Bounds().Min), draw.Src, nil)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := resized.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float32(resized.Pix[off+c]) / 255
				data[c*plane+y*size+x] = (v - meta.Mean[c]) / meta.Std[c]
			}
		}
	}

	return Tensor{Shape: []int64{1, 3, int64(size), int64(size)}, Data: data}
}

func Preprocess(data []byte, meta ModelMetadata) (Tensor, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return Tensor{}, err
	}
	return PreprocessImage(img, meta), nil
}
