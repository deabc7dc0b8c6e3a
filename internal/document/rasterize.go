package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/runner"
)

// Rasterizer renders every page of a PDF file to JPEG, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi int) ([][]byte, error)
}

// Poppler shells out to pdftoppm.
type Poppler struct {
	Binary string // binary name or absolute path; if empty -> "pdftoppm"
	Runner runner.Runner
}

func (p *Poppler) Rasterize(ctx context.Context, path string, dpi int) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "invx-pp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	bin := p.Binary
	if bin == "" {
		bin = "pdftoppm"
	}
	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -jpeg <in.pdf> <tmp/page>
	_, errb, err := p.Runner.Run(ctx, bin, "-r", strconv.Itoa(dpi), "-jpeg", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, runner.Truncate(strings.TrimSpace(string(errb)), 512))
	}

	// page-1.jpg ... or page-01.jpg when there are more than 9 pages
	matches, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, err
	}
	sortByPageNumber(matches)

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, err
		}
		pages = append(pages, b)
	}
	return pages, nil
}

func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		i := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
