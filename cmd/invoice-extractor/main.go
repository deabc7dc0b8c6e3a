package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

const cfgKey = "config"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "invoice-extractor",
		Usage: "extract NFS-e service invoices into editable JSON",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load before reading the environment", Value: cli.NewStringSlice(".env")},
			&cli.StringFlag{Name: "log-level", Usage: "debug|info|warn|error", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Usage: "text|json", EnvVars: []string{"LOG_FORMAT"}},
			&cli.StringFlag{Name: "ocr-engine", Usage: "tesseract|gosseract", EnvVars: []string{"OCR_ENGINE"}},
			&cli.StringFlag{Name: "ocr-lang", Usage: "tesseract language hint", EnvVars: []string{"OCR_LANG"}},
			&cli.StringFlag{Name: "rasterizer", Usage: "poppler|fitz", EnvVars: []string{"RASTERIZER"}},
			&cli.IntFlag{Name: "dpi", Usage: "PDF rasterization resolution", EnvVars: []string{"PDF_DPI"}},
			&cli.StringFlag{Name: "model", Usage: "vision model name", EnvVars: []string{"LLM_MODEL"}},
			&cli.BoolFlag{Name: "attach-original", Usage: "also send page 1 without inversion", EnvVars: []string{"LLM_ATTACH_ORIGINAL"}},
		},
		Before: setup,
		Commands: []*cli.Command{
			serveCommand(),
			extractCommand(),
			batchCommand(),
			ocrCommand(),
			schemaCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads .env files and the environment, applies flag overrides and
// installs the default logger.
func setup(c *cli.Context) error {
	if err := common.LoadDotEnv(c.StringSlice("env-file")...); err != nil {
		return err
	}
	cfg := common.LoadConfig()

	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("ocr-engine") {
		cfg.OCR.Engine = c.String("ocr-engine")
	}
	if c.IsSet("ocr-lang") {
		cfg.OCR.Language = c.String("ocr-lang")
	}
	if c.IsSet("rasterizer") {
		cfg.Document.Rasterizer = c.String("rasterizer")
	}
	if c.IsSet("dpi") {
		cfg.Document.DPI = c.Int("dpi")
	}
	if c.IsSet("model") {
		cfg.LLM.Model = c.String("model")
	}
	if c.IsSet("attach-original") {
		cfg.LLM.AttachOriginal = c.Bool("attach-original")
	}

	slog.SetDefault(newLogger(cfg.Log, os.Stderr))
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[cfgKey] = cfg
	return nil
}

func configFrom(c *cli.Context) *common.Config {
	if cfg, ok := c.App.Metadata[cfgKey].(*common.Config); ok {
		return cfg
	}
	return common.LoadConfig()
}

// newLogger writes to w so stdout stays free for command output.
func newLogger(lc common.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: lc.SlogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// terminals and journald add their own timestamps
			if a.Key == slog.TimeKey && len(groups) == 0 && strings.EqualFold(lc.Format, "text") {
				return slog.Attr{}
			}
			return a
		},
	}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
