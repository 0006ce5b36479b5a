// Package files stores featured images on a local (or in-memory) filesystem.
package files

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes is the largest accepted upload
	MaxImageBytes = 2 << 20

	MinWidth  = 300
	MinHeight = 200
	MaxWidth  = 2000
	MaxHeight = 2000

	postsDir = "posts"
)

var (
	// ErrNotImage is returned when the upload cannot be decoded as an image
	ErrNotImage = errors.New("file is not an image")
	// ErrUnsupportedType is returned for image formats other than jpeg, png and webp
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooLarge is returned for uploads above MaxImageBytes
	ErrTooLarge = errors.New("image too large")
	// ErrDimensions is returned when the image is outside the accepted bounds
	ErrDimensions = errors.New("image dimensions out of range")
)

var extensions = map[string]string{
	"jpeg": "jpg",
	"png":  "png",
	"webp": "webp",
}

// Image is an uploaded file
type Image struct {
	Filename string
	Data     []byte
}

// Store keeps uploaded images under a root directory
type Store struct {
	fs        afero.Fs
	publicURL string
}

// NewLocalStore creates a store rooted at dir on the OS filesystem
func NewLocalStore(dir, publicURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir), publicURL), nil
}

// NewStore creates a store over an arbitrary filesystem
func NewStore(fs afero.Fs, publicURL string) *Store {
	return &Store{fs: fs, publicURL: strings.TrimRight(publicURL, "/")}
}

// FS exposes the underlying filesystem for serving stored files
func (s *Store) FS() http.FileSystem {
	return afero.NewHttpFs(s.fs)
}

// Validate checks type, size and dimensions and returns the file extension to store under
func (s *Store) Validate(img *Image) (string, error) {
	if len(img.Data) > MaxImageBytes {
		return "", ErrTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", ErrUnsupportedType
		}
		return "", ErrNotImage
	}
	ext, ok := extensions[format]
	if !ok {
		return "", ErrUnsupportedType
	}
	if cfg.Width < MinWidth || cfg.Height < MinHeight || cfg.Width > MaxWidth || cfg.Height > MaxHeight {
		return "", ErrDimensions
	}
	return ext, nil
}

// Save validates and writes img, returning its relative path
func (s *Store) Save(img *Image) (string, error) {
	ext, err := s.Validate(img)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(postsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", postsDir, err)
	}
	name := path.Join(postsDir, uuid.NewString()+"."+ext)
	if err := afero.WriteFile(s.fs, name, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, nil
}

// Delete removes a stored file. Missing files are ignored.
func (s *Store) Delete(name string) error {
	if name == "" {
		return nil
	}
	clean := path.Clean("/" + name)[1:]
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", clean, err)
	}
	return nil
}

// URL returns the public URL of a stored file
func (s *Store) URL(name string) string {
	return s.publicURL + "/storage/" + name
}
