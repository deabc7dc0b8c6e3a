package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/document"
	"github.com/joseph-ayodele/invoice-extractor/internal/imaging"
	"github.com/joseph-ayodele/invoice-extractor/internal/invoice"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// DocumentLoader turns upload bytes into cached pages.
type DocumentLoader interface {
	Load(ctx context.Context, name string, data []byte) (*document.Document, error)
}

// TextExtractor OCRs pages in order.
type TextExtractor interface {
	ExtractPages(ctx context.Context, pages []ocr.Page) (ocr.Result, error)
}

type Config struct {
	AttachOriginal bool // also send page 1 without inversion
	MaxImageSide   int  // 0 keeps the rasterized size
}

// Prepared is everything cached for a document between regenerations.
type Prepared struct {
	Document *document.Document
	OCR      ocr.Result
}

// Extraction is the outcome of one model call.
type Extraction struct {
	Completion llm.Completion
	Repair     llm.Repaired
	Warnings   []string // schema and lint hints; never blocking
	Summary    invoice.Summary
}

// Processor coordinates loading, OCR, then the model call and repair.
type Processor struct {
	cfg    Config
	loader DocumentLoader
	ocr    TextExtractor
	model  llm.VisionModel
	logger *slog.Logger
}

func NewProcessor(cfg Config, loader DocumentLoader, ocr TextExtractor, model llm.VisionModel, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, loader: loader, ocr: ocr, model: model, logger: logger}
}

// Prepare loads the upload and OCRs every page. Unsupported or empty uploads
// are input errors; rasterizer and OCR failures are upstream errors.
func (p *Processor) Prepare(ctx context.Context, name string, data []byte) (*Prepared, error) {
	attrs := common.LogAttrs(ctx)

	doc, err := p.loader.Load(ctx, name, data)
	if err != nil {
		p.logger.Error("pipeline.load.failed", append(attrs, "name", name, "error", err)...)
		if errors.Is(err, document.ErrUnsupportedFormat) || errors.Is(err, document.ErrEmptyDocument) {
			return nil, common.NewAppError("INVALID_INPUT", "unsupported upload", errors.Join(common.ErrInvalidInput, err))
		}
		return nil, common.UpstreamError("load document", err)
	}

	pages := make([]ocr.Page, len(doc.Pages))
	for i, img := range doc.Pages {
		pages[i] = ocr.Page{Image: img}
		if i < len(doc.TextLayer) {
			pages[i].TextLayer = doc.TextLayer[i]
		}
	}
	res, err := p.ocr.ExtractPages(ctx, pages)
	if err != nil {
		p.logger.Error("pipeline.ocr.failed", append(attrs, "name", name, "error", err)...)
		return nil, common.UpstreamError("ocr", err)
	}

	p.logger.Info("pipeline.ocr.ok", append(attrs,
		"name", name,
		"pages", doc.PageCount(),
		"chars", len(res.Text),
		"confidence", res.Confidence,
	)...)
	return &Prepared{Document: doc, OCR: res}, nil
}

// Extract sends the cached OCR text and page 1 to the model and repairs the
// answer. An unrepairable answer is not an error: the result carries
// Repair.Valid=false and the candidate text for manual editing.
func (p *Processor) Extract(ctx context.Context, prep *Prepared) (Extraction, error) {
	if prep == nil || prep.Document == nil || prep.Document.PageCount() == 0 {
		return Extraction{}, common.NewAppError("NO_DOCUMENT", "upload a document first", errors.Join(common.ErrInvalidInput, document.ErrEmptyDocument))
	}
	attrs := common.LogAttrs(ctx)
	start := time.Now()

	images, err := p.modelImages(prep.Document)
	if err != nil {
		p.logger.Error("pipeline.image.failed", append(attrs, "error", err)...)
		return Extraction{}, common.UpstreamError("prepare image", err)
	}

	comp, err := p.model.Complete(ctx, llm.BuildPrompt(prep.OCR.Text, images...))
	if err != nil {
		p.logger.Error("pipeline.llm.failed", append(attrs, "error", err)...)
		return Extraction{}, common.UpstreamError("model", err)
	}

	out := Extraction{Completion: comp, Repair: llm.Repair(comp.Text)}
	if out.Repair.Valid {
		data := []byte(out.Repair.Text)
		out.Warnings = append(out.Warnings, llm.SchemaWarnings(data)...)
		if records, err := invoice.Parse(data); err == nil {
			out.Warnings = append(out.Warnings, invoice.Lint(records)...)
		}
		out.Summary = invoice.Summarize(data)
		p.logger.Info("pipeline.extract.ok", append(attrs,
			"model", comp.Model,
			"records", out.Summary.Records,
			"numero_nota", gjson.Get(out.Repair.Text, "0.numeroNota").String(),
			"warnings", len(out.Warnings),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)...)
		return out, nil
	}

	p.logger.Warn("pipeline.extract.invalid_json", append(attrs,
		"model", comp.Model,
		"raw_bytes", len(comp.Text),
		"error", out.Repair.Err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return out, nil
}

// Run is Prepare followed by Extract.
func (p *Processor) Run(ctx context.Context, name string, data []byte) (*Prepared, Extraction, error) {
	prep, err := p.Prepare(ctx, name, data)
	if err != nil {
		return nil, Extraction{}, err
	}
	ext, err := p.Extract(ctx, prep)
	return prep, ext, err
}

// modelImages returns page 1 inverted, and the original when configured.
func (p *Processor) modelImages(doc *document.Document) ([]llm.Image, error) {
	first := doc.Pages[0]
	inverted, err := imaging.PrepareForModel(first, true, p.cfg.MaxImageSide)
	if err != nil {
		return nil, fmt.Errorf("invert page 1: %w", err)
	}
	images := []llm.Image{{MIME: constants.MIMEJPEG, Data: inverted}}
	if p.cfg.AttachOriginal {
		original, err := imaging.PrepareForModel(first, false, p.cfg.MaxImageSide)
		if err != nil {
			return nil, fmt.Errorf("encode page 1: %w", err)
		}
		images = append(images, llm.Image{MIME: constants.MIMEJPEG, Data: original})
	}
	return images, nil
}

// FileResult is what ProcessFile leaves behind for one batch input.
type FileResult struct {
	Path   string
	Prep   *Prepared
	Result Extraction
	Err    error
}

// FileSink receives batch results. It is called from worker goroutines.
type FileSink func(FileResult)

// FileProcessor adapts the processor to the batch queue: it reads a path,
// runs the pipeline and hands the outcome to a sink.
type FileProcessor struct {
	P    *Processor
	Sink FileSink
}

func (f FileProcessor) ProcessFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		f.emit(FileResult{Path: path, Err: err})
		return err
	}
	prep, ext, err := f.P.Run(ctx, filepath.Base(path), data)
	if err == nil && !ext.Repair.Valid {
		err = ext.Repair.Err
	}
	f.emit(FileResult{Path: path, Prep: prep, Result: ext, Err: err})
	return err
}

func (f FileProcessor) emit(r FileResult) {
	if f.Sink != nil {
		f.Sink(r)
	}
}
