package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/card-scanner/internal/card"
	"github.com/zombor/card-scanner/internal/scanning"
	"github.com/zombor/card-scanner/internal/source"
)

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the acquire -> recognize -> extract pipeline
type Service struct {
	recognizer  scanning.Recognizer
	brands      card.BrandSet
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(recognizer scanning.Recognizer, brands card.BrandSet) *Service {
	return NewServiceWithDeps(recognizer, brands, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(recognizer scanning.Recognizer, brands card.BrandSet, idGen IDGenerator, timeSrc TimeSource) *Service {
	if len(brands) == 0 {
		brands = card.AllBrands
	}
	return &Service{
		recognizer:  recognizer,
		brands:      brands,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Process acquires one image from src, recognizes its text and extracts a card
// number. Every failure of a collaborator gets its own status; NotFound only
// means the text was read and nothing matched.
func (s *Service) Process(ctx context.Context, src source.ImageSource) *Outcome {
	outcome := &Outcome{
		ID:        s.idGenerator.Generate(),
		Source:    string(src.Origin()),
		ScannedAt: s.timeSource.Now(),
	}

	img, err := src.Acquire(ctx)
	if err != nil {
		s.fail(outcome, err)
		return outcome
	}
	outcome.ImageName = img.Name

	lines, err := s.recognizer.Recognize(ctx, img.Data, img.ContentType)
	if err != nil {
		slog.Error("Failed to recognize text",
			"scan_id", outcome.ID,
			"image", img.Name,
			"content_type", img.ContentType,
			"file_size", len(img.Data),
			"error", err,
		)
		outcome.Status = StatusRecognitionFailed
		outcome.Message = MessageRecognitionFailed
		return outcome
	}
	outcome.LineCount = len(lines)

	s.apply(outcome, s.Extract(lines))
	return outcome
}

// ProcessLines runs only the extraction step over text that was recognized elsewhere
func (s *Service) ProcessLines(lines []string) *Outcome {
	outcome := &Outcome{
		ID:        s.idGenerator.Generate(),
		Source:    "text",
		LineCount: len(lines),
		ScannedAt: s.timeSource.Now(),
	}
	s.apply(outcome, s.Extract(lines))
	return outcome
}

// Extract finds the first card number among lines using the active brand set
func (s *Service) Extract(lines []string) card.Result {
	return card.ExtractWith(lines, s.brands)
}

func (s *Service) apply(outcome *Outcome, result card.Result) {
	number, ok := result.Number()
	if !ok {
		slog.Info("No card number found", "scan_id", outcome.ID, "lines", outcome.LineCount)
		outcome.Status = StatusNotFound
		outcome.Message = MessageNotFound
		return
	}

	outcome.Status = StatusFound
	outcome.CardNumber = number.String()
	outcome.Display = card.FormatForDisplay(number.String())
	outcome.Message = outcome.Display
	if brand, ok := s.brands.Brand(number.String()); ok {
		outcome.Brand = brand.Name
	}
	slog.Info("Card number found", "scan_id", outcome.ID, "brand", outcome.Brand, "last4", number.LastFour())
}

func (s *Service) fail(outcome *Outcome, err error) {
	switch {
	case errors.Is(err, source.ErrCancelled):
		outcome.Status = StatusCancelled
		outcome.Message = MessageCancelled
		slog.Info("Scan cancelled", "scan_id", outcome.ID)
		return
	case errors.Is(err, source.ErrPermissionDenied):
		outcome.Status = StatusPermissionDenied
		outcome.Message = MessagePermissionDenied
	case errors.Is(err, source.ErrCameraUnavailable):
		outcome.Status = StatusCameraUnavailable
		outcome.Message = MessageCameraUnavailable
	case outcome.Source == string(source.OriginCamera):
		outcome.Status = StatusCaptureFailed
		outcome.Message = MessageCaptureFailed
	default:
		// the picked image is missing or unreadable
		outcome.Status = StatusOpenFailed
		outcome.Message = MessageOpenFailed
	}
	slog.Error("Failed to acquire image", "scan_id", outcome.ID, "source", outcome.Source, "status", outcome.Status, "error", err)
}
