// Package extract turns business card images into structured contact
// fields. An OCR provider produces raw text locally, then the classifier
// sends the image and text to a vision model that sorts everything into
// the contact schema.
package extract

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

const envProvider = "OCR_PROVIDER"

// Provider produces raw text from a card image.
type Provider interface {
	Name() string
	Extract(ctx context.Context, image []byte) (string, error)
}

// NewProvider returns the OCR provider selected by OCR_PROVIDER
// ("tesseract" or "none"). An unknown value falls back to the no-op
// provider so a misconfigured worker still drains queues with
// vision-only extraction.
func NewProvider() Provider {
	name := strings.ToLower(strings.TrimSpace(os.Getenv(envProvider)))
	switch name {
	case "tesseract":
		return NewTesseract()
	case "", "none":
		return Noop{}
	default:
		slog.Warn("Unknown OCR provider, using none", "provider", name)
		return Noop{}
	}
}

// Noop is the OCR provider used when no local OCR engine is installed.
// The classifier then works from the image alone.
type Noop struct{}

// Name implements Provider.
func (Noop) Name() string { return "none" }

// Extract implements Provider.
func (Noop) Extract(ctx context.Context, image []byte) (string, error) {
	return "", nil
}
