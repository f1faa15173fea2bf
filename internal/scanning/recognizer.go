package scanning

import (
	"context"
	"errors"
)

// ErrRecognition marks a failure of the text recognition engine
var ErrRecognition = errors.New("text recognition failed")

// Recognizer turns an image into the text lines found on it
type Recognizer interface {
	// Recognize returns the recognized text lines in reading order
	Recognize(ctx context.Context, imageData []byte, contentType string) ([]string, error)
	// Close releases resources held by the recognizer
	Close() error
}
