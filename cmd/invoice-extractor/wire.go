package main

import (
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/document"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/runner"
)

func newLoader(cfg *common.Config, exec runner.Runner, logger *slog.Logger) *document.Loader {
	var r document.Rasterizer
	switch cfg.Document.Rasterizer {
	case "fitz":
		r = &document.Fitz{}
	default:
		r = &document.Poppler{Binary: cfg.Document.PdftoppmBin, Runner: exec}
	}
	return document.NewLoader(document.Config{
		DPI:      cfg.Document.DPI,
		MaxPages: cfg.Document.MaxPages,
	}, r, document.PDFInspector{}, logger)
}

func newOCR(cfg *common.Config, exec runner.Runner, logger *slog.Logger) (*ocr.Extractor, error) {
	var engine ocr.Engine
	switch cfg.OCR.Engine {
	case "gosseract":
		e, err := ocr.NewGosseract(cfg.OCR.TessdataDir)
		if err != nil {
			return nil, common.WrapError(err, "gosseract")
		}
		engine = e
	default:
		engine = &ocr.TesseractCLI{
			Binary:      cfg.OCR.TesseractBin,
			TessdataDir: cfg.OCR.TessdataDir,
			Runner:      exec,
		}
	}
	return ocr.NewExtractor(ocr.Config{Language: cfg.OCR.Language}, engine, logger), nil
}

func newModel(cfg *common.Config, logger *slog.Logger) *openai.Client {
	return openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		RPS:         cfg.LLM.RPS,
	}, logger)
}

// newProcessor wires the whole pipeline. withModel=false leaves the model out
// for commands that stop after OCR.
func newProcessor(cfg *common.Config, withModel bool, logger *slog.Logger) (*pipeline.Processor, error) {
	if err := cfg.Validate(withModel); err != nil {
		return nil, err
	}
	exec := runner.NewExec(logger)
	extractor, err := newOCR(cfg, exec, logger)
	if err != nil {
		return nil, err
	}
	var model llm.VisionModel
	if withModel {
		c := newModel(cfg, logger)
		logger.Info("llm.client.ready", "model", c.Model(), "base_url", cfg.LLM.BaseURL)
		model = c
	}
	return pipeline.NewProcessor(pipeline.Config{
		AttachOriginal: cfg.LLM.AttachOriginal,
		MaxImageSide:   cfg.LLM.MaxImageSide,
	}, newLoader(cfg, exec, logger), extractor, model, logger), nil
}
