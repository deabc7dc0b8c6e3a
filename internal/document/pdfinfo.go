package document

import (
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Inspector reads PDF structure without rendering it.
type Inspector interface {
	PageCount(path string) (int, error)
	TextLayer(path string) ([]string, error)
}

// PDFInspector counts pages with pdfcpu and reads the text layer with ledongthuc/pdf.
type PDFInspector struct{}

func (PDFInspector) PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}

// TextLayer returns the embedded text of each page; scanned pages yield "".
func (PDFInspector) TextLayer(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := reader.NumPage()
	out := make([]string, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		out[i-1] = strings.TrimSpace(text)
	}
	return out, nil
}
