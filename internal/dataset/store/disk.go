package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shandysiswandi/godataset/internal/dataset/entity"
)

// ErrTooLarge is returned when an upload exceeds the configured byte limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// ErrInvalidName is returned for names that do not denote a single file
// inside the uploads directory.
var ErrInvalidName = errors.New("invalid file name")

// DiskStore writes uploads into a single directory under their original name.
//
// Writes to the same name are not coordinated: the last writer wins.
type DiskStore struct {
	dir      string
	maxBytes int64
}

// NewDiskStore creates dir when missing. maxBytes <= 0 disables the size limit.
func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &DiskStore{
		dir:      dir,
		maxBytes: maxBytes,
	}, nil
}

// Dir returns the directory uploads are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save streams r into the uploads directory as name, byte for byte.
func (s *DiskStore) Save(ctx context.Context, name string, r io.Reader) (entity.StoredFile, error) {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return entity.StoredFile{}, ErrInvalidName
	}

	path := filepath.Join(s.dir, name)

	//nolint:gosec // name is a single path element checked above
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return entity.StoredFile{}, err
	}

	reader := r
	if s.maxBytes > 0 {
		reader = io.LimitReader(r, s.maxBytes+1) // +1 to detect overflow
	}

	written, err := io.Copy(f, &ctxReader{ctx: ctx, r: reader})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return entity.StoredFile{}, err
	}

	return entity.StoredFile{
		Name: name,
		Path: path,
		Size: written,
	}, nil
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
