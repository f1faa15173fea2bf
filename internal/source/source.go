package source

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrCancelled means the user backed out before an image was chosen
	ErrCancelled = errors.New("no image selected")
	// ErrPermissionDenied means the camera exists but access was refused
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrCameraUnavailable means there is no camera or capture tool to use
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrCaptureFailed means the camera was reachable but produced no photo
	ErrCaptureFailed = errors.New("capture failed")
)

// Origin tells where an image came from
type Origin string

const (
	OriginUpload  Origin = "upload"
	OriginGallery Origin = "gallery"
	OriginCamera  Origin = "camera"
)

// Image is a photo ready for text recognition
type Image struct {
	Name        string
	Data        []byte
	ContentType string
	Origin      Origin
}

// ImageSource produces one image per call to Acquire
type ImageSource interface {
	// Acquire blocks until an image is available, the user cancels, or ctx is done
	Acquire(ctx context.Context) (*Image, error)
	// Origin reports the kind of source
	Origin() Origin
}

// Upload is an image already held in memory, such as an HTTP upload or a chat photo
type Upload struct {
	Name        string
	Data        []byte
	ContentType string
}

// Acquire returns the uploaded bytes, or ErrCancelled when there are none
func (u Upload) Acquire(ctx context.Context) (*Image, error) {
	if len(u.Data) == 0 {
		return nil, ErrCancelled
	}
	contentType := strings.ToLower(strings.TrimSpace(u.ContentType))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFor(u.Name)
	}
	return &Image{
		Name:        u.Name,
		Data:        u.Data,
		ContentType: contentType,
		Origin:      OriginUpload,
	}, nil
}

// Origin implements ImageSource
func (u Upload) Origin() Origin {
	return OriginUpload
}

// ContentTypeFor guesses a MIME type from a file extension
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// imageExts are the file extensions the gallery and watcher accept
var imageExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"heic": {},
	"heif": {},
	"pdf":  {},
}

// IsImageFile reports whether a file name has a supported image extension
func IsImageFile(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	_, ok := imageExts[ext]
	return ok
}
