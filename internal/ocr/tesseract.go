package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/runner"
)

// TesseractCLI runs the tesseract binary on a temp copy of the page image.
type TesseractCLI struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	Runner      runner.Runner
}

func (t *TesseractCLI) Name() string { return "tesseract" }

func (t *TesseractCLI) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	f, err := os.CreateTemp("", "invx-ocr-*.img")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(image); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	// tesseract <file> stdout -l <lang>
	args := []string{f.Name(), "stdout", "-l", lang}
	if t.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.PSM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}

	out, errb, err := t.Runner.Run(ctx, bin, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, runner.Truncate(strings.TrimSpace(string(errb)), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
