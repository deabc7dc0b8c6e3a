package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestInvertImage(t *testing.T) {
	src := solid(2, 2, color.NRGBA{R: 10, G: 100, B: 250, A: 128})
	got := InvertImage(src).NRGBAAt(1, 1)
	assert.Equal(t, color.NRGBA{R: 245, G: 155, B: 5, A: 255}, got)
}

func TestTransparentPNGInvertsToWhite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 8, color.NRGBA{})))

	out, err := Invert(buf.Bytes())
	require.NoError(t, err)
	img, err := Decode(out)
	require.NoError(t, err)
	r, g, b, _ := img.At(4, 4).RGBA()
	// fully transparent black reads as black, so it inverts to white
	assert.Greater(t, r>>8, uint32(245))
	assert.Greater(t, g>>8, uint32(245))
	assert.Greater(t, b>>8, uint32(245))

	orig, err := PrepareForModel(buf.Bytes(), false, 0)
	require.NoError(t, err)
	img, err = Decode(orig)
	require.NoError(t, err)
	r, _, _, _ = img.At(4, 4).RGBA()
	assert.Less(t, r>>8, uint32(10))
}

func TestOpaqueKeepsStoredColor(t *testing.T) {
	src := solid(1, 1, color.NRGBA{R: 200, G: 10, B: 30, A: 0})
	assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 30, A: 255}, Opaque(src).NRGBAAt(0, 0))
}

func TestInvertImageOffsetBounds(t *testing.T) {
	src := solid(4, 4, color.NRGBA{A: 255}).SubImage(image.Rect(2, 2, 4, 4))
	got := InvertImage(src)
	assert.Equal(t, image.Rect(0, 0, 2, 2), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, got.NRGBAAt(0, 0))
}

func TestInvertRoundTripsThroughJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 255})))

	out, err := Invert(buf.Bytes())
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	r, g, b, _ := img.At(4, 4).RGBA()
	// white becomes black, give or take JPEG noise
	assert.Less(t, r>>8, uint32(10))
	assert.Less(t, g>>8, uint32(10))
	assert.Less(t, b>>8, uint32(10))
}

func TestInvertRejectsGarbage(t *testing.T) {
	_, err := Invert([]byte("not an image"))
	assert.Error(t, err)
}

func TestFitWithin(t *testing.T) {
	src := solid(400, 100, color.NRGBA{A: 255})

	assert.Same(t, image.Image(src), FitWithin(src, 0))
	assert.Same(t, image.Image(src), FitWithin(src, 500))

	out := FitWithin(src, 200)
	assert.Equal(t, 200, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	tall := FitWithin(solid(10, 1000, color.NRGBA{A: 255}), 100)
	assert.Equal(t, 1, tall.Bounds().Dx())
	assert.Equal(t, 100, tall.Bounds().Dy())
}

func TestPrepareForModel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(300, 150, color.NRGBA{R: 255, G: 255, B: 255, A: 255})))

	out, err := PrepareForModel(buf.Bytes(), true, 100)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestDataURL(t *testing.T) {
	u := DataURL("image/jpeg", []byte{0xff, 0xd8, 0xff})
	require.True(t, strings.HasPrefix(u, "data:image/jpeg;base64,"))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(u, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, raw)
}
