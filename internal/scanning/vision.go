package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// visionModel is a multimodal model that can be asked to transcribe an image
type visionModel interface {
	// transcribe sends a PNG image with the transcription prompt and returns the raw answer
	transcribe(ctx context.Context, png []byte) (string, error)
	// label names the model in logs and errors
	label() string
}

// recognizeWith normalizes the image, asks the model and parses its answer into lines.
// Every failure is wrapped with ErrRecognition.
func recognizeWith(ctx context.Context, m visionModel, imageData []byte, contentType string) ([]string, error) {
	pngData, converted, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecognition, err)
	}

	start := time.Now()
	answer, err := m.transcribe(ctx, pngData)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRecognition, m.label(), err)
	}

	lines, err := parseLinesJSON(answer)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s answer: %w", ErrRecognition, m.label(), err)
	}
	slog.Debug("Model transcription finished",
		"model", m.label(),
		"converted", converted,
		"lines", len(lines),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return lines, nil
}
