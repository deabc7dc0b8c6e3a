//go:build !gosseract

package ocr

// NewGosseract reports ErrEngineNotEnabled; build with -tags gosseract for the cgo engine.
func NewGosseract(string) (Engine, error) {
	return nil, ErrEngineNotEnabled
}
