package entity

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Upload is a file selected on the client side. Content is opened lazily and
// can be opened again, so a failed submission can be retried.
type Upload struct {
	Name string
	Size int64

	open func() (io.ReadCloser, error)
}

// NewUpload builds an Upload over an in-memory payload.
func NewUpload(name string, content []byte) Upload {
	return Upload{
		Name: name,
		Size: int64(len(content)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// NewUploadFromFile builds an Upload backed by a file on disk. The name is
// the base name of path, the way a browser file picker reports it.
func NewUploadFromFile(path string) (Upload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}

	return Upload{
		Name: filepath.Base(path),
		Size: info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Open returns a fresh reader over the upload content.
func (u Upload) Open() (io.ReadCloser, error) {
	if u.open == nil {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return u.open()
}

// Progress reports bytes of an upload sent so far.
type Progress struct {
	Sent  int64
	Total int64
}

// Percent returns Sent as a share of Total in the range 0..100.
func (p Progress) Percent() int {
	if p.Total <= 0 || p.Sent <= 0 {
		return 0
	}
	if p.Sent >= p.Total {
		return 100
	}
	return int(p.Sent * 100 / p.Total)
}

// Notification is a transient, user-facing message (a toast).
type Notification struct {
	Kind        NotificationKind
	Title       string
	Description string
}
