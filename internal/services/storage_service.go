package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/photoexchange/server/internal/models"
)

const (
	// VariantOriginal holds the uploaded file
	VariantOriginal = "original"
	// VariantThumbnail holds downscaled previews
	VariantThumbnail = "thumbnail"
	// VariantMap holds rendered location map previews
	VariantMap = "map"

	photoFileExt = ".jpg"
)

// DefaultVariants are the folders a photo's files may live in
var DefaultVariants = []string{VariantOriginal, VariantThumbnail, VariantMap}

// PhotoStorageService stores photo files as <base>/<variant>/<name>.jpg
type PhotoStorageService struct {
	basePath         string
	variants         []string
	maxFileSizeBytes int64
}

// NewPhotoStorageService creates a new PhotoStorageService
func NewPhotoStorageService(basePath string, variants []string, maxFileSizeMB int64) (*PhotoStorageService, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if len(variants) == 0 {
		variants = DefaultVariants
	}

	for _, variant := range variants {
		if !isSafeSegment(variant) {
			return nil, fmt.Errorf("invalid storage variant %q", variant)
		}
		if err := os.MkdirAll(filepath.Join(absPath, variant), 0755); err != nil {
			return nil, err
		}
	}

	return &PhotoStorageService{
		basePath:         absPath,
		variants:         variants,
		maxFileSizeBytes: maxFileSizeMB * 1024 * 1024,
	}, nil
}

// Store writes the original file for the named photo
func (s *PhotoStorageService) Store(reader io.Reader, name string) error {
	return s.StoreVariant(reader, VariantOriginal, name)
}

// StoreVariant writes one variant of the named photo. An existing file of
// the same variant is replaced.
func (s *PhotoStorageService) StoreVariant(reader io.Reader, variant, name string) error {
	fullPath, err := s.PathFor(variant, name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+name+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	limit := s.maxFileSizeBytes
	written, err := io.Copy(tmp, io.LimitReader(reader, limit+1))
	closeErr := tmp.Close()

	switch {
	case err != nil:
	case closeErr != nil:
		err = closeErr
	case written == 0:
		err = models.ErrEmptyFile
	case written > limit:
		err = models.ErrFileTooLarge
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Purge removes every variant of the named photo. Missing files are not an
// error; other failures are joined.
func (s *PhotoStorageService) Purge(name string) error {
	var errs []error
	for _, variant := range s.variants {
		fullPath, err := s.PathFor(variant, name)
		if err != nil {
			return err
		}
		if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PathFor returns the absolute path of one variant of the named photo
func (s *PhotoStorageService) PathFor(variant, name string) (string, error) {
	if !models.IsValidPhotoName(name) {
		return "", models.ErrInvalidPhotoName
	}
	if !s.hasVariant(variant) {
		return "", fmt.Errorf("unknown storage variant %q", variant)
	}
	return s.GetFullPath(variant + "/" + name + photoFileExt)
}

// GetFullPath returns the absolute path for a stored path
func (s *PhotoStorageService) GetFullPath(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", fmt.Errorf("stored path cannot be empty")
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(storedPath))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if absPath != s.basePath && !strings.HasPrefix(absPath, s.basePath+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

// Exists checks if the variant of the named photo is stored
func (s *PhotoStorageService) Exists(variant, name string) bool {
	fullPath, err := s.PathFor(variant, name)
	if err != nil {
		return false
	}

	_, err = os.Stat(fullPath)
	return err == nil
}

func (s *PhotoStorageService) hasVariant(variant string) bool {
	for _, v := range s.variants {
		if v == variant {
			return true
		}
	}
	return false
}

func isSafeSegment(segment string) bool {
	return segment != "" && segment != "." && segment != ".." &&
		!strings.ContainsAny(segment, `/\:`)
}
