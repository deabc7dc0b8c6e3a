package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/invoice"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "extract every invoice in a directory into one workbook",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out-dir", Usage: "per-file JSON output directory, mirroring <dir> (default <dir>/extracted)"},
			&cli.StringFlag{Name: "xlsx", Usage: "workbook path (default <dir>/extracted_data.xlsx)"},
			&cli.IntFlag{Name: "workers", Value: 2, Usage: "parallel extractions"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute, Usage: "per-file timeout"},
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "descend into subdirectories"},
			&cli.StringSliceFlag{Name: "ext", Usage: "extensions to include, e.g. .pdf,.png"},
			&cli.BoolFlag{Name: "skip-hidden", Value: true, Usage: "skip dotfiles and dot directories"},
			&cli.BoolFlag{Name: "watch", Usage: "keep running and process new files until interrupted"},
		},
		Action: runBatch,
	}
}

type batchCollector struct {
	root   string
	outDir string
	logger *slog.Logger

	mu      sync.Mutex
	entries []export.Entry
	ok      int
	invalid int
	failed  int
}

// outputName is the source path relative to root with its extension kept, so
// a/nota.pdf and b/nota.png never share an output file.
func (b *batchCollector) outputName(path string) string {
	rel, err := filepath.Rel(b.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

func (b *batchCollector) write(name string, data []byte) error {
	path := filepath.Join(b.outDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *batchCollector) sink(r pipeline.FileResult) {
	name := b.outputName(r.Path)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case errors.Is(r.Err, llm.ErrInvalidJSON):
		b.invalid++
		// keep the raw answer so it can be fixed by hand
		if err := b.write(name+".txt", []byte(r.Result.Repair.Text)); err != nil {
			b.logger.Error("batch.write_failed", "path", r.Path, "error", err)
		}
		return
	case r.Err != nil:
		b.failed++
		b.logger.Error("batch.file_failed", "path", r.Path, "code", common.ErrorCode(r.Err), "error", r.Err)
		return
	}

	text := r.Result.Repair.Text
	if err := b.write(name+".json", []byte(text+"\n")); err != nil {
		b.logger.Error("batch.write_failed", "path", r.Path, "error", err)
		b.failed++
		return
	}
	records, err := invoice.Parse([]byte(text))
	if err != nil {
		b.logger.Warn("batch.records_skipped", "path", r.Path, "error", err)
	}
	b.entries = append(b.entries, export.Entry{Source: filepath.ToSlash(name), Records: records})
	b.ok++
	for _, w := range r.Result.Warnings {
		b.logger.Warn("batch.warning", "path", r.Path, "detail", w)
	}
}

func runBatch(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: invoice-extractor batch <dir>", exitInvalid)
	}
	root := c.Args().First()
	cfg := configFrom(c)
	logger := slog.Default()
	ctx := c.Context

	outDir := c.String("out-dir")
	if outDir == "" {
		outDir = filepath.Join(root, "extracted")
	}
	xlsxPath := c.String("xlsx")
	if xlsxPath == "" {
		xlsxPath = filepath.Join(root, "extracted_data.xlsx")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}

	proc, err := newProcessor(cfg, true, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitFailed)
	}

	exts := ingest.ExtSet(c.StringSlice("ext"))
	col := &batchCollector{root: root, outDir: outDir, logger: logger}
	q := async.NewProcessorQueue(
		pipeline.FileProcessor{P: proc, Sink: col.sink},
		logger,
		async.WithWorkers(c.Int("workers")),
		async.WithProcessTimeout(c.Duration("timeout")),
		async.WithBaseContext(ctx),
	)

	enqueue := func(path string) error {
		return q.Enqueue(ctx, async.Job{Path: path, TraceID: uuid.NewString()})
	}

	start := time.Now()
	if c.Bool("watch") {
		err = watchInto(ctx, root, exts, c.Bool("skip-hidden"), enqueue, logger)
	} else {
		err = scanInto(ctx, root, exts, c.Bool("skip-hidden"), c.Bool("recursive"), enqueue, logger)
	}

	// queued files still run; after a signal their contexts are already done
	q.Shutdown(context.Background())
	if err != nil && ctx.Err() == nil {
		return cli.Exit(err.Error(), exitFailed)
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	sort.Slice(col.entries, func(i, j int) bool { return col.entries[i].Source < col.entries[j].Source })

	if len(col.entries) > 0 {
		data, err := export.NewService(logger).Workbook(ctx, col.entries)
		if err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
		if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
			return cli.Exit(err.Error(), exitFailed)
		}
	}

	logger.Info("batch.done",
		"ok", col.ok,
		"invalid", col.invalid,
		"failed", col.failed,
		"xlsx", xlsxPath,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	switch {
	case col.failed > 0:
		return cli.Exit(fmt.Sprintf("%d file(s) failed", col.failed), exitFailed)
	case col.invalid > 0:
		return cli.Exit(fmt.Sprintf("%d file(s) need manual JSON fixes in %s", col.invalid, outDir), exitInvalid)
	}
	return nil
}

func scanInto(ctx context.Context, root string, exts map[string]struct{}, skipHidden, recursive bool, enqueue func(string) error, logger *slog.Logger) error {
	files, stats, err := ingest.ScanDirectory(ctx, root, ingest.ScanOptions{
		Exts:       exts,
		SkipHidden: skipHidden,
		Recursive:  recursive,
	})
	if err != nil {
		return err
	}
	logger.Info("batch.scan.ok", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
	for _, f := range files {
		if f.Err != "" {
			logger.Warn("batch.scan.skip", "path", f.Path, "error", f.Err)
			continue
		}
		if err := enqueue(f.Path); err != nil {
			return err
		}
	}
	return nil
}

// watchInto processes existing files first, then everything created under
// root until ctx ends. Watching is always recursive.
func watchInto(ctx context.Context, root string, exts map[string]struct{}, skipHidden bool, enqueue func(string) error, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{root},
		Exts:        exts,
		InitialScan: true,
		SkipHidden:  skipHidden,
		Debounce:    500 * time.Millisecond,
	}, logger)
	if err != nil {
		return err
	}
	for {
		select {
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if err := enqueue(p); err != nil {
				return err
			}
		case err, ok := <-errs:
			if ok {
				logger.Warn("batch.watch.error", "error", err)
			} else {
				errs = nil
			}
		}
	}
}
