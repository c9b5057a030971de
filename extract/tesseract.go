package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract runs OCR through a local tesseract installation. Clients are
// not safe for reuse across goroutines, so each extraction gets its own.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

// NewTesseract constructs a tesseract-backed OCR provider.
func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

// Name implements Provider.
func (t *Tesseract) Name() string { return "tesseract" }

// Extract implements Provider.
func (t *Tesseract) Extract(ctx context.Context, image []byte) (string, error) {
	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("setting ocr image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("running ocr: %w", err)
	}
	return text, nil
}
