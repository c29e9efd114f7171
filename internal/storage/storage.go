// Package storage persists uploaded product images.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// AllowedExtensions lists the accepted image formats.
var AllowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (domain.Image, error)
	Delete(ctx context.Context, storageID string) error
}

// Disk stores images under dir and serves them below baseURL + "/uploads/".
type Disk struct {
	dir     string
	baseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Dir() string {
	return d.dir
}

func (d *Disk) Upload(ctx context.Context, filename string, r io.Reader) (domain.Image, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !AllowedExtensions[ext] {
		return domain.Image{}, fmt.Errorf("%w: unsupported image format %q", domain.ErrValidation, ext)
	}
	if err := ctx.Err(); err != nil {
		return domain.Image{}, err
	}

	id := "ecommerce/" + uuid.NewString() + ext
	path := filepath.Join(d.dir, filepath.FromSlash(id))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.Image{}, fmt.Errorf("create image dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return domain.Image{}, fmt.Errorf("create image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return domain.Image{}, fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Image{}, fmt.Errorf("close image: %w", err)
	}

	return domain.Image{URL: d.baseURL + "/uploads/" + id, StorageID: id}, nil
}

func (d *Disk) Delete(_ context.Context, storageID string) error {
	if strings.Contains(storageID, "..") {
		return fmt.Errorf("%w: invalid storage id", domain.ErrValidation)
	}
	err := os.Remove(filepath.Join(d.dir, filepath.FromSlash(storageID)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image %s: %w", storageID, err)
	}
	return nil
}
