package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/server"
	"github.com/joseph-ayodele/invoice-extractor/internal/session"
)

// Exit codes of the one-shot commands.
const (
	exitFailed  = 1 // upstream or I/O failure
	exitInvalid = 2 // the model answer could not be repaired into JSON
	exitSchema  = 3 // --strict and the JSON departs from the template
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the review UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address", EnvVars: []string{"HTTP_ADDR"}},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			if c.IsSet("addr") {
				cfg.Server.HTTPAddr = c.String("addr")
			}
			logger := slog.Default()

			proc, err := newProcessor(cfg, true, logger)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			store := session.NewStore(cfg.Session.TTL, logger)
			srv, err := server.New(cfg.Server, proc, store, export.NewService(logger), logger)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			return srv.ListenAndServe(c.Context)
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "run the pipeline once and print the repaired JSON",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the JSON here instead of stdout"},
			&cli.StringFlag{Name: "xlsx", Usage: "also write the records as a workbook"},
			&cli.BoolFlag{Name: "strict", Usage: "fail when the JSON departs from the invoice template"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: invoice-extractor extract <file>", exitInvalid)
			}
			cfg := configFrom(c)
			logger := slog.Default()
			path := c.Args().First()

			proc, err := newProcessor(cfg, true, logger)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}

			ctx := common.WithRequestID(c.Context, uuid.NewString())
			_, ext, err := proc.Run(ctx, filepath.Base(path), data)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			for _, w := range ext.Warnings {
				logger.Warn("extract.warning", "detail", w)
			}

			text := ext.Repair.Text
			if err := writeOutput(c.String("out"), []byte(text+"\n")); err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			if !ext.Repair.Valid {
				return cli.Exit(fmt.Sprintf("model answer is not valid JSON: %v", ext.Repair.Err), exitInvalid)
			}

			if xlsxPath := c.String("xlsx"); xlsxPath != "" {
				out, err := export.NewService(logger).XLSX(ctx, filepath.Base(path), text)
				if err != nil {
					return cli.Exit(err.Error(), exitFailed)
				}
				if err := os.WriteFile(xlsxPath, out, 0o644); err != nil {
					return cli.Exit(err.Error(), exitFailed)
				}
			}
			if c.Bool("strict") {
				if err := llm.ValidateJSONAgainstSchema(llm.BuildInvoiceJSONSchema(), []byte(text)); err != nil {
					return cli.Exit("schema: "+err.Error(), exitSchema)
				}
			}
			return nil
		},
	}
}

func ocrCommand() *cli.Command {
	return &cli.Command{
		Name:      "ocr",
		Usage:     "print the OCR text of a file without calling the model",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: invoice-extractor ocr <file>", exitInvalid)
			}
			cfg := configFrom(c)
			logger := slog.Default()
			path := c.Args().First()

			proc, err := newProcessor(cfg, false, logger)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			prep, err := proc.Prepare(common.WithRequestID(c.Context, uuid.NewString()), filepath.Base(path), data)
			if err != nil {
				return cli.Exit(err.Error(), exitFailed)
			}
			logger.Info("ocr.done",
				"pages", prep.Document.PageCount(),
				"engine", prep.OCR.Engine,
				"text_layer_pages", prep.OCR.Fallbacks,
				"confidence", prep.OCR.Confidence,
			)
			_, err = fmt.Fprintln(c.App.Writer, prep.OCR.Text)
			return err
		},
	}
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "print the JSON Schema used for template warnings",
		Action: func(c *cli.Context) error {
			raw, err := json.Marshal(llm.BuildInvoiceJSONSchema())
			if err != nil {
				return err
			}
			out, err := llm.Format(string(raw))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, out)
			return err
		},
	}
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
