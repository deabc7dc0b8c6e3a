// Package imaging prepares page images for the vision model.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// JPEGQuality is used for every image re-encoded here.
const JPEGQuality = 90

// Decode reads a JPEG or PNG.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EncodeJPEG writes img as JPEG at JPEGQuality.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// InvertImage replaces every color channel c by 255-c. Alpha is dropped, the
// color channels are read unpremultiplied and the result is opaque.
func InvertImage(src image.Image) *image.NRGBA {
	return opaque(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: 255 - c.R, G: 255 - c.G, B: 255 - c.B}
	})
}

// Opaque drops alpha and keeps the stored colors, so transparent regions do
// not turn black when encoded as JPEG.
func Opaque(src image.Image) *image.NRGBA {
	return opaque(src, func(c color.NRGBA) color.NRGBA { return c })
}

func opaque(src image.Image, fn func(color.NRGBA) color.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := fn(color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA))
			c.A = 255
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return dst
}

// Invert decodes a JPEG or PNG, inverts its colors and re-encodes it as JPEG.
func Invert(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(InvertImage(img))
}

// FitWithin downscales img so its longest side is at most maxSide. Smaller
// images and maxSide <= 0 return img unchanged.
func FitWithin(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	var nw, nh int
	if w >= h {
		nw, nh = maxSide, h*maxSide/w
	} else {
		nw, nh = w*maxSide/h, maxSide
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// PrepareForModel decodes data, optionally inverts it, bounds its size and
// returns JPEG bytes.
func PrepareForModel(data []byte, invert bool, maxSide int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	img = FitWithin(img, maxSide)
	if invert {
		return EncodeJPEG(InvertImage(img))
	}
	return EncodeJPEG(Opaque(img))
}

// DataURL renders data as an inline base64 URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
