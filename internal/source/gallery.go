package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Gallery defines read access to a collection of photos
type Gallery interface {
	// List returns the images in the gallery, newest first
	List() ([]GalleryEntry, error)

	// Get retrieves an image by name
	Get(name string) ([]byte, error)
}

// GalleryEntry describes one image in a gallery
type GalleryEntry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// LocalGallery implements the Gallery interface using a local directory
type LocalGallery struct {
	basePath string
}

// NewLocalGallery creates a new LocalGallery instance
func NewLocalGallery(basePath string) (*LocalGallery, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating gallery directory: %w", err)
	}

	return &LocalGallery{
		basePath: basePath,
	}, nil
}

// Path returns the gallery directory
func (l *LocalGallery) Path() string {
	return l.basePath
}

// List returns the supported images in the gallery directory
func (l *LocalGallery) List() ([]GalleryEntry, error) {
	dirEntries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("reading gallery: %w", err)
	}

	entries := make([]GalleryEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !IsImageFile(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, GalleryEntry{
			Name:    de.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// Get retrieves an image from the gallery. Names must not leave the directory.
func (l *LocalGallery) Get(name string) ([]byte, error) {
	fullPath, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

func (l *LocalGallery) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid image name: %q", name)
	}
	return filepath.Join(l.basePath, name), nil
}

// Pick selects an image by name. An empty name is a cancelled pick.
func Pick(g Gallery, name string) ImageSource {
	return &galleryPick{gallery: g, name: name}
}

type galleryPick struct {
	gallery Gallery
	name    string
}

func (p *galleryPick) Acquire(ctx context.Context) (*Image, error) {
	if strings.TrimSpace(p.name) == "" {
		return nil, ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.gallery.Get(p.name)
	if err != nil {
		return nil, fmt.Errorf("opening gallery image: %w", err)
	}
	return &Image{
		Name:        p.name,
		Data:        data,
		ContentType: ContentTypeFor(p.name),
		Origin:      OriginGallery,
	}, nil
}

func (p *galleryPick) Origin() Origin {
	return OriginGallery
}

// File is a single image on disk, used by the one-shot CLI and the watcher
type File struct {
	Path string
}

// Acquire reads the file. A missing path is a cancelled pick.
func (f File) Acquire(ctx context.Context) (*Image, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, ErrCancelled
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return &Image{
		Name:        filepath.Base(f.Path),
		Data:        data,
		ContentType: ContentTypeFor(f.Path),
		Origin:      OriginGallery,
	}, nil
}

// Origin implements ImageSource
func (f File) Origin() Origin {
	return OriginGallery
}
