package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// ErrEngineNotEnabled is returned by engines compiled out of this build.
var ErrEngineNotEnabled = errors.New("ocr engine not enabled in this build")

// Engine recognizes the text of one page image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, lang string) (string, error)
}

type Config struct {
	Language string // default "por"
}

// Page is one rasterized page plus the text embedded in the source PDF, if any.
type Page struct {
	Image     []byte
	TextLayer string
}

// Result is the OCR output of a whole document.
type Result struct {
	Pages      []string // normalized text per page, in page order
	Text       string   // Pages joined by "\n"
	Language   string
	Engine     string
	Fallbacks  int // pages whose text came from the PDF text layer
	Confidence float32
	Duration   time.Duration
}

type Extractor struct {
	cfg    Config
	engine Engine
	logger *slog.Logger
}

func NewExtractor(cfg Config, engine Engine, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Language == "" {
		cfg.Language = constants.DefaultOCRLang
	}
	return &Extractor{cfg: cfg, engine: engine, logger: logger}
}

// ExtractPages runs the engine on each page in order and joins the page texts
// with "\n". Engine failures are returned as is. A page whose OCR text is blank
// uses its PDF text layer instead.
func (e *Extractor) ExtractPages(ctx context.Context, pages []Page) (Result, error) {
	start := time.Now()
	res := Result{
		Pages:    make([]string, 0, len(pages)),
		Language: e.cfg.Language,
		Engine:   e.engine.Name(),
	}
	attrs := common.LogAttrs(ctx)
	e.logger.Debug("ocr.start", append(attrs, "engine", res.Engine, "pages", len(pages), "lang", e.cfg.Language)...)

	for i, p := range pages {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		txt, err := e.engine.Recognize(ctx, p.Image, e.cfg.Language)
		if err != nil {
			e.logger.Error("ocr.page.failed", append(attrs, "page", i+1, "engine", res.Engine, "error", err)...)
			return Result{}, fmt.Errorf("ocr page %d: %w", i+1, err)
		}
		txt = Normalize(txt)
		if txt == "" && strings.TrimSpace(p.TextLayer) != "" {
			txt = Normalize(p.TextLayer)
			res.Fallbacks++
		}
		res.Pages = append(res.Pages, txt)
	}

	res.Text = strings.Join(res.Pages, "\n")
	res.Confidence = heuristicConfidence(res.Text)
	res.Duration = time.Since(start)

	e.logger.Info("ocr.ok", append(attrs,
		"engine", res.Engine,
		"pages", len(res.Pages),
		"chars", len(res.Text),
		"text_layer_pages", res.Fallbacks,
		"confidence", res.Confidence,
		"elapsed_ms", res.Duration.Milliseconds(),
	)...)
	return res, nil
}
