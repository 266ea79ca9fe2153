// Package preview creates display handles for images in a batch. A
// handle holds a resource until it is revoked, and must be revoked
// exactly once.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// ThumbnailSize is the edge of the square preview thumbnail
const ThumbnailSize = 256

var (
	// ErrRevoked is returned when a handle is revoked twice or was never issued
	ErrRevoked = errors.New("preview already revoked")
)

// Store issues and releases preview handles
type Store interface {
	Create(ctx context.Context, path string) (string, error)
	Revoke(url string) error
}

// FileStore writes webp thumbnails into a directory and hands out
// file:// URLs for them
type FileStore struct {
	dir     string
	quality float32

	mu     sync.Mutex
	issued map[string]string
}

// NewFileStore creates a store under dir. An empty dir uses a fresh
// directory in the system temp location.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "image-quality-previews-")
		if err != nil {
			return nil, fmt.Errorf("failed to create preview dir: %w", err)
		}
		dir = tmp
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preview dir: %w", err)
	}

	return &FileStore{
		dir:     dir,
		quality: 75,
		issued:  make(map[string]string),
	}, nil
}

// Dir returns the directory holding the thumbnails
func (s *FileStore) Dir() string {
	return s.dir
}

// Create decodes the image at path and writes its thumbnail
func (s *FileStore) Create(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	thumb := imaging.Thumbnail(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos)

	f, err := os.CreateTemp(s.dir, "preview-*.webp")
	if err != nil {
		return "", fmt.Errorf("failed to create preview file: %w", err)
	}
	if err := webp.Encode(f, thumb, &webp.Options{Quality: s.quality}); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	u := (&url.URL{Scheme: "file", Path: filepath.ToSlash(f.Name())}).String()

	s.mu.Lock()
	s.issued[u] = f.Name()
	s.mu.Unlock()

	return u, nil
}

// Revoke deletes the thumbnail behind u
func (s *FileStore) Revoke(u string) error {
	s.mu.Lock()
	path, ok := s.issued[u]
	delete(s.issued, u)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRevoked, u)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Outstanding reports how many handles have not been revoked
func (s *FileStore) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issued)
}

// Close revokes every outstanding handle and removes the directory if
// it is empty
func (s *FileStore) Close() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.issued))
	for _, p := range s.issued {
		paths = append(paths, p)
	}
	s.issued = make(map[string]string)
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	os.Remove(s.dir)
	return errors.Join(errs...)
}

// NopStore hands back the source path and holds nothing
type NopStore struct{}

func (NopStore) Create(_ context.Context, path string) (string, error) {
	return path, nil
}

func (NopStore) Revoke(string) error {
	return nil
}
