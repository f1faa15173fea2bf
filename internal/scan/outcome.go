package scan

import (
	"net/http"
	"time"
)

// Status classifies how a scan ended
type Status string

const (
	StatusFound             Status = "found"
	StatusNotFound          Status = "not_found"
	StatusCancelled         Status = "cancelled"
	StatusPermissionDenied  Status = "permission_denied"
	StatusCameraUnavailable Status = "camera_unavailable"
	StatusCaptureFailed     Status = "capture_failed"
	StatusOpenFailed        Status = "open_failed"
	StatusRecognitionFailed Status = "recognition_failed"
)

// User-facing messages per status
const (
	MessageNotFound          = "No valid credit card found, please try again!"
	MessageCancelled         = "No image selected."
	MessagePermissionDenied  = "Please allow camera access to scan a card."
	MessageCameraUnavailable = "No camera found. Pick an image from the gallery instead."
	MessageCaptureFailed     = "Could not take a photo. Please try again."
	MessageOpenFailed        = "Could not open the selected image."
	MessageRecognitionFailed = "Could not process the image. Please try another photo."
)

// Outcome is the result of one scan, ready for display
type Outcome struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	CardNumber string    `json:"card_number,omitempty"`
	Display    string    `json:"display,omitempty"`
	Brand      string    `json:"brand,omitempty"`
	Message    string    `json:"message"`
	Source     string    `json:"source"`
	ImageName  string    `json:"image_name,omitempty"`
	LineCount  int       `json:"line_count"`
	ScannedAt  time.Time `json:"scanned_at"`
}

// Found reports whether a card number was extracted
func (o *Outcome) Found() bool {
	return o.Status == StatusFound
}

// HTTPStatus maps an outcome to the response code the server uses
func (s Status) HTTPStatus() int {
	switch s {
	case StatusFound, StatusNotFound, StatusCancelled:
		return http.StatusOK
	case StatusPermissionDenied:
		return http.StatusForbidden
	case StatusCameraUnavailable:
		return http.StatusServiceUnavailable
	case StatusCaptureFailed:
		return http.StatusBadGateway
	case StatusOpenFailed:
		return http.StatusNotFound
	case StatusRecognitionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
