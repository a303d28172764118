package controller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ledgermail/internal/client/models"
	"github.com/dmitrijs2005/ledgermail/internal/filex"
)

// Handle is a downloadable copy of an extracted file.
type Handle struct {
	Name string
	Path string
	Size int64
}

// Downloads allocates handles as files in one directory. Every allocated
// handle must be revoked before it is replaced.
type Downloads struct {
	dir string
}

// NewDownloads creates dir when missing.
func NewDownloads(dir string) (*Downloads, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &Downloads{dir: abs}, nil
}

// Dir is the absolute directory handles live in.
func (d *Downloads) Dir() string { return d.dir }

// Allocate writes f under a unique name that ends with the file name.
func (d *Downloads) Allocate(f models.AttachmentFile) (Handle, error) {
	path := filepath.Join(d.dir, uuid.NewString()+"-"+f.Name)
	if err := os.WriteFile(path, f.Data, 0o600); err != nil {
		return Handle{}, fmt.Errorf("write %s: %w", f.Name, err)
	}
	return Handle{Name: f.Name, Path: path, Size: f.Size()}, nil
}

// Revoke deletes the handle's file; an already missing file is fine.
func (d *Downloads) Revoke(h Handle) error {
	return filex.RemoveIfExists(h.Path)
}
