package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var minimalPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeRasterizer struct {
	pages   [][]byte
	err     error
	gotPath string
	gotDPI  int
	sawFile bool
}

func (f *fakeRasterizer) Rasterize(_ context.Context, path string, dpi int) ([][]byte, error) {
	f.gotPath, f.gotDPI = path, dpi
	_, err := os.Stat(path)
	f.sawFile = err == nil
	return f.pages, f.err
}

type fakeInspector struct {
	count    int
	countErr error
	text     []string
}

func (f fakeInspector) PageCount(string) (int, error)      { return f.count, f.countErr }
func (f fakeInspector) TextLayer(string) ([]string, error) { return f.text, nil }

func TestLoadImageIsSinglePage(t *testing.T) {
	data := pngBytes(t)
	l := NewLoader(Config{}, &fakeRasterizer{}, nil, nil)

	doc, err := l.Load(context.Background(), "nota.png", data)
	require.NoError(t, err)
	assert.Equal(t, constants.MIMEPNG, doc.MIME)
	assert.Equal(t, constants.FormatImage, doc.Format)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, data, doc.Pages[0])
	assert.Nil(t, doc.TextLayer)
	assert.Equal(t, IdentityOf("nota.png", data), doc.Identity)
}

func TestLoadPDFKeepsPageOrder(t *testing.T) {
	r := &fakeRasterizer{pages: [][]byte{[]byte("page-1"), []byte("page-2"), []byte("page-3")}}
	insp := fakeInspector{count: 3, text: []string{"", "texto 2"}}
	l := NewLoader(Config{}, r, insp, nil)

	doc, err := l.Load(context.Background(), "nota.pdf", minimalPDF)
	require.NoError(t, err)

	assert.Equal(t, constants.FormatPDF, doc.Format)
	assert.Equal(t, constants.MIMEJPEG, doc.PageMIME)
	assert.Equal(t, [][]byte{[]byte("page-1"), []byte("page-2"), []byte("page-3")}, doc.Pages)
	assert.Equal(t, []string{"", "texto 2", ""}, doc.TextLayer)
	assert.Equal(t, 300, r.gotDPI)
	assert.True(t, r.sawFile, "rasterizer must receive a real temp file")

	_, statErr := os.Stat(r.gotPath)
	assert.True(t, os.IsNotExist(statErr), "temp pdf must be removed")
}

func TestLoadPDFPageCountMismatch(t *testing.T) {
	r := &fakeRasterizer{pages: [][]byte{[]byte("a"), []byte("b")}}
	l := NewLoader(Config{}, r, fakeInspector{count: 3}, nil)

	_, err := l.Load(context.Background(), "nota.pdf", minimalPDF)
	assert.ErrorIs(t, err, ErrPageCountMismatch)
}

func TestLoadPDFSkipsCheckWhenCountUnreadable(t *testing.T) {
	r := &fakeRasterizer{pages: [][]byte{[]byte("a"), []byte("b")}}
	l := NewLoader(Config{}, r, fakeInspector{countErr: errors.New("xref broken")}, nil)

	doc, err := l.Load(context.Background(), "nota.pdf", minimalPDF)
	require.NoError(t, err)
	assert.Len(t, doc.Pages, 2)
}

func TestLoadPDFMaxPages(t *testing.T) {
	r := &fakeRasterizer{pages: [][]byte{[]byte("a"), []byte("b"), []byte("c")}}
	l := NewLoader(Config{MaxPages: 2, DPI: 150}, r, fakeInspector{count: 3, text: []string{"x", "y", "z"}}, nil)

	doc, err := l.Load(context.Background(), "nota.pdf", minimalPDF)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, doc.Pages)
	assert.Equal(t, []string{"x", "y"}, doc.TextLayer)
	assert.Equal(t, 150, r.gotDPI)
}

func TestLoadPDFRasterizerError(t *testing.T) {
	boom := errors.New("pdftoppm missing")
	l := NewLoader(Config{}, &fakeRasterizer{err: boom}, nil, nil)
	_, err := l.Load(context.Background(), "nota.pdf", minimalPDF)
	assert.ErrorIs(t, err, boom)
}

func TestLoadRejectsUnsupported(t *testing.T) {
	l := NewLoader(Config{}, &fakeRasterizer{}, nil, nil)

	_, err := l.Load(context.Background(), "nota.txt", []byte("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = l.Load(context.Background(), "nota.pdf", nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestSniffUsesContentOverExtension(t *testing.T) {
	mime, format, err := Sniff("scan.jpg", pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, constants.MIMEPNG, mime)
	assert.Equal(t, constants.FormatImage, format)

	mime, _, err = Sniff("upload.bin", minimalPDF)
	require.NoError(t, err)
	assert.Equal(t, constants.MIMEPDF, mime)
}

func TestSniffFallsBackToExtension(t *testing.T) {
	mime, format, err := Sniff("scan.pdf", []byte{0x00, 0x01, 0x02, 0xff, 0xfe})
	require.NoError(t, err)
	assert.Equal(t, constants.MIMEPDF, mime)
	assert.Equal(t, constants.FormatPDF, format)
}

func TestIdentity(t *testing.T) {
	a := IdentityOf("a.pdf", []byte("same"))
	assert.Equal(t, a, IdentityOf("a.pdf", []byte("same")))
	assert.NotEqual(t, a, IdentityOf("b.pdf", []byte("same")))
	assert.NotEqual(t, a, IdentityOf("a.pdf", []byte("other")))
	assert.Equal(t, int64(4), a.Size)
}
