package constants

import "strings"

// DocumentFormat is the coarse input kind recorded on a loaded document.
type DocumentFormat string

const (
	FormatPDF   DocumentFormat = "PDF"
	FormatImage DocumentFormat = "IMAGE"
)

// Supported upload MIME types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEPDF  = "application/pdf"
)

const (
	// DefaultDPI is the PDF rasterization resolution (scale 300/72).
	DefaultDPI = 300
	// DefaultOCRLang is the tesseract language hint for Brazilian documents.
	DefaultOCRLang = "por"

	ExportJSONName = "extracted_data.json"
	ExportXLSXName = "extracted_data.xlsx"
)

// AllowedMIMETypes maps accepted upload content types to their format.
var AllowedMIMETypes = map[string]DocumentFormat{
	MIMEJPEG: FormatImage,
	MIMEPNG:  FormatImage,
	MIMEPDF:  FormatPDF,
}

// AllowedExtensions holds the file extensions accepted for upload and batch scans.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEFromExt returns the content type implied by a file extension, or "".
func MIMEFromExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return MIMEPDF
	case "jpg", "jpeg":
		return MIMEJPEG
	case "png":
		return MIMEPNG
	}
	return ""
}
