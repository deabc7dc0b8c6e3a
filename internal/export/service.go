package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/invoice"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

// Service turns the current JSON text into downloadable files.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Entry is one source document and its records, a row group in the workbook.
type Entry struct {
	Source  string
	Records []invoice.Invoice
}

func notExportable(err error) error {
	return common.NewAppError("INVALID_JSON", "fix the JSON before downloading", errors.Join(common.ErrConflict, err))
}

// JSON returns text formatted with a 4-space indent. Invalid text is refused.
func (s *Service) JSON(ctx context.Context, text string) ([]byte, error) {
	out, err := llm.Format(text)
	if err != nil {
		s.logger.Warn("export.json.refused", append(common.LogAttrs(ctx), "error", err)...)
		return nil, notExportable(err)
	}
	s.logger.Info("export.json.ok", append(common.LogAttrs(ctx), "bytes", len(out))...)
	return []byte(out), nil
}

// XLSX parses text and writes it as a single-entry workbook.
func (s *Service) XLSX(ctx context.Context, source, text string) ([]byte, error) {
	if _, err := llm.Format(text); err != nil {
		return nil, notExportable(err)
	}
	records, err := invoice.Parse([]byte(text))
	if err != nil {
		return nil, notExportable(fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err))
	}
	return s.Workbook(ctx, []Entry{{Source: source, Records: records}})
}

// Workbook writes every entry into one XLSX file.
func (s *Service) Workbook(ctx context.Context, entries []Entry) ([]byte, error) {
	start := time.Now()
	wb, err := newWorkbook()
	if err != nil {
		return nil, err
	}
	defer wb.close()

	rows := 0
	for _, e := range entries {
		for _, r := range e.Records {
			if err := wb.addInvoice(e.Source, r); err != nil {
				return nil, err
			}
			rows++
		}
	}
	wb.finish()

	buf, err := wb.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok", append(common.LogAttrs(ctx),
		"entries", len(entries),
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
