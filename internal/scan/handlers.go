package scan

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/card-scanner/internal/source"
)

// maxUploadSize is large enough for full-resolution phone photos
const maxUploadSize = int64(50 << 20)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeOutcome encodes an outcome with the status code matching its status
func writeOutcome(w http.ResponseWriter, outcome *Outcome) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcome.Status.HTTPStatus())
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleCapabilities tells the page which controls to show
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{
		"camera":  s.camera.Available(),
		"gallery": s.gallery != nil,
	}); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleUploadScan scans an uploaded photo. A request without a file is a
// cancelled pick, not a failed scan.
func (s *Server) handleUploadScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusRequestEntityTooLarge)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			slog.Error("Error parsing multipart form", "error", err)
			jsonError(w, "Error parsing form", http.StatusBadRequest)
			return
		}
	}

	upload := source.Upload{}
	f, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// nothing picked
	case err != nil:
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "Error reading file. Please try again.", http.StatusBadRequest)
		return
	default:
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Error reading file data", "error", err, "filename", header.Filename)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			return
		}
		upload = source.Upload{
			Name:        header.Filename,
			Data:        data,
			ContentType: header.Header.Get("Content-Type"),
		}
	}

	writeOutcome(w, s.service.Process(r.Context(), upload))
}

// handleCapture takes a photo with the server's camera and scans it
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, s.service.Process(r.Context(), s.camera))
}

// handleExtract runs extraction over text recognized by the client
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeOutcome(w, s.service.ProcessLines(req.Lines))
}

// handleListGallery returns the images available for picking
func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		corsError(w, "Gallery not configured", http.StatusNotFound)
		return
	}
	entries, err := s.gallery.List()
	if err != nil {
		slog.Error("Error listing gallery", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if entries == nil {
		entries = []source.GalleryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleScanGalleryImage scans one image from the gallery
func (s *Server) handleScanGalleryImage(w http.ResponseWriter, r *http.Request) {
	if s.gallery == nil {
		corsError(w, "Gallery not configured", http.StatusNotFound)
		return
	}
	name := r.PathValue("name")
	writeOutcome(w, s.service.Process(r.Context(), source.Pick(s.gallery, name)))
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/css")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}
