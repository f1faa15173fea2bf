package scanning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"
)

// ocrClient is the part of gosseract.Client the recognizer uses
type ocrClient interface {
	SetImageFromBytes(data []byte) error
	SetLanguage(langs ...string) error
	SetPageSegMode(mode gosseract.PageSegMode) error
	Text() (string, error)
	GetBoundingBoxes(level gosseract.PageIteratorLevel) ([]gosseract.BoundingBox, error)
	Close() error
}

// TesseractConfig configures the local Tesseract recognizer
type TesseractConfig struct {
	// Languages are tesseract language codes, "eng" when empty
	Languages []string
	// PageSegMode is the tesseract --psm value, 0 keeps the engine default
	PageSegMode int
	// SkipRawPass disables the second pass over the unprocessed image
	SkipRawPass bool
}

// Tesseract implements the Recognizer interface with a local Tesseract install.
// A new client is created for every call so concurrent scans never share state.
type Tesseract struct {
	cfg           TesseractConfig
	clientFactory func() ocrClient
}

// NewTesseract creates a Tesseract Recognizer
func NewTesseract(cfg TesseractConfig) *Tesseract {
	return newTesseractWithFactory(cfg, func() ocrClient { return gosseract.NewClient() })
}

func newTesseractWithFactory(cfg TesseractConfig, factory func() ocrClient) *Tesseract {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng"}
	}
	return &Tesseract{cfg: cfg, clientFactory: factory}
}

// Recognize runs OCR over a preprocessed copy of the image and then over the
// image as given. Lines from the first pass come first; duplicates are dropped.
func (t *Tesseract) Recognize(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	img, err := decodeImage(imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	processed, err := encodePNG(preprocess(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	passes := [][]byte{processed}
	if !t.cfg.SkipRawPass {
		raw, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
		}
		passes = append(passes, raw)
	}

	var lines []string
	seen := map[string]struct{}{}
	for i, data := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		passLines, err := t.recognizePass(data)
		if err != nil {
			return nil, fmt.Errorf("%w: pass %d: %w", ErrRecognition, i+1, err)
		}
		slog.Debug("Tesseract pass finished", "pass", i+1, "lines", len(passLines))
		for _, l := range passLines {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (t *Tesseract) recognizePass(pngData []byte) ([]string, error) {
	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("setting language: %w", err)
	}
	if t.cfg.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(t.cfg.PageSegMode)); err != nil {
			return nil, fmt.Errorf("setting page segmentation mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	// Text-line boxes map one-to-one to the regions the card extractor expects
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err == nil && len(boxes) > 0 {
		raw := make([]string, 0, len(boxes))
		for _, b := range boxes {
			raw = append(raw, b.Word)
		}
		return cleanLines(raw), nil
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}
	return splitLines(text), nil
}

// Close is a no-op; clients are closed after every pass
func (t *Tesseract) Close() error {
	return nil
}
