// Package document turns an uploaded JPEG, PNG or PDF into ordered page images.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrPageCountMismatch = errors.New("rasterized page count does not match the PDF")
	ErrEmptyDocument     = errors.New("document has no pages")
)

// Identity tells two uploads apart. Equal identities mean the same file.
type Identity struct {
	Name   string
	Size   int64
	SHA256 string
}

// IdentityOf hashes data and pairs it with the upload name.
func IdentityOf(name string, data []byte) Identity {
	sum := sha256.Sum256(data)
	return Identity{Name: name, Size: int64(len(data)), SHA256: hex.EncodeToString(sum[:])}
}

// Document is a loaded upload.
type Document struct {
	Identity  Identity
	MIME      string
	Format    constants.DocumentFormat
	PageMIME  string   // content type of every entry in Pages
	Pages     [][]byte // page images in ascending page order
	TextLayer []string // embedded PDF text per page; nil for images
}

// PageCount returns the number of cached pages.
func (d *Document) PageCount() int { return len(d.Pages) }

type Config struct {
	DPI      int // default 300
	MaxPages int // 0 = no limit
}

type Loader struct {
	cfg        Config
	rasterizer Rasterizer
	inspector  Inspector
	logger     *slog.Logger
}

// NewLoader wires a loader. A nil inspector disables the page count check and
// the text layer.
func NewLoader(cfg Config, rasterizer Rasterizer, inspector Inspector, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DPI <= 0 {
		cfg.DPI = constants.DefaultDPI
	}
	return &Loader{cfg: cfg, rasterizer: rasterizer, inspector: inspector, logger: logger}
}

// Sniff returns the accepted content type of data. Detection is by content;
// the name's extension is consulted only when the content is not recognized.
func Sniff(name string, data []byte) (string, constants.DocumentFormat, error) {
	mt := mimetype.Detect(data)
	for m, format := range constants.AllowedMIMETypes {
		if mt.Is(m) {
			return m, format, nil
		}
	}
	if mt.Is("application/octet-stream") {
		if m := constants.MIMEFromExt(filepath.Ext(name)); m != "" {
			return m, constants.AllowedMIMETypes[m], nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

// Load converts an upload into page images.
func (l *Loader) Load(ctx context.Context, name string, data []byte) (*Document, error) {
	start := time.Now()
	attrs := common.LogAttrs(ctx)
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	mime, format, err := Sniff(name, data)
	if err != nil {
		l.logger.Warn("document.load.unsupported", append(attrs, "name", name, "error", err)...)
		return nil, err
	}

	doc := &Document{
		Identity: IdentityOf(name, data),
		MIME:     mime,
		Format:   format,
	}

	switch format {
	case constants.FormatImage:
		doc.PageMIME = mime
		doc.Pages = [][]byte{data}
	case constants.FormatPDF:
		if err := l.loadPDF(ctx, doc, data); err != nil {
			l.logger.Error("document.load.failed", append(attrs, "name", name, "error", err)...)
			return nil, err
		}
	}

	l.logger.Info("document.load.ok", append(attrs,
		"name", name,
		"mime", mime,
		"bytes", len(data),
		"pages", len(doc.Pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return doc, nil
}

func (l *Loader) loadPDF(ctx context.Context, doc *Document, data []byte) error {
	f, err := os.CreateTemp("", "invx-*.pdf")
	if err != nil {
		return err
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			l.logger.Warn("document.tempfile.remove_failed", "path", path, "error", err)
		}
	}()
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	expected := -1
	if l.inspector != nil {
		n, err := l.inspector.PageCount(path)
		if err != nil {
			// pdfcpu is stricter than the rasterizers; keep going without the check
			l.logger.Warn("document.pagecount.failed", "error", err)
		} else {
			expected = n
		}
	}

	pages, err := l.rasterizer.Rasterize(ctx, path, l.cfg.DPI)
	if err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	if len(pages) == 0 {
		return ErrEmptyDocument
	}
	if expected >= 0 && len(pages) != expected {
		return fmt.Errorf("%w: expected %d, got %d", ErrPageCountMismatch, expected, len(pages))
	}

	var text []string
	if l.inspector != nil {
		text, err = l.inspector.TextLayer(path)
		if err != nil {
			l.logger.Warn("document.textlayer.failed", "error", err)
			text = nil
		}
	}
	text = fitLength(text, len(pages))

	if l.cfg.MaxPages > 0 && len(pages) > l.cfg.MaxPages {
		pages = pages[:l.cfg.MaxPages]
		text = text[:l.cfg.MaxPages]
	}

	doc.PageMIME = constants.MIMEJPEG
	doc.Pages = pages
	doc.TextLayer = text
	return nil
}

// fitLength pads or cuts s to n entries.
func fitLength(s []string, n int) []string {
	out := make([]string, n)
	copy(out, s)
	return out
}
