package blob

import (
	"context"
	"io"
	"time"

	"github.com/pitabwire/cmsadmin/model"
)

// ProgressFunc receives upload progress as a percentage between 0 and 100.
type ProgressFunc func(percent float64)

// Store is the file storage behind storage-bound properties. Paths are
// slash-separated and relative to the storage root.
type Store interface {
	// List returns the folders and files directly under dir, folders first.
	// A folder that does not exist lists as empty.
	List(ctx context.Context, dir string) ([]model.BlobItem, error)

	// Upload writes r to path, replacing any existing file. size may be zero
	// when unknown, in which case progress is only reported on completion.
	Upload(ctx context.Context, path string, r io.Reader, size int64, progress ProgressFunc) (model.BlobItem, error)

	// CreateFolder creates the folder name under parent and returns its path.
	CreateFolder(ctx context.Context, parent, name string) (string, error)

	// DeleteFile removes one file. Returns NOT_FOUND if it does not exist.
	DeleteFile(ctx context.Context, path string) error

	// DeleteFolder removes a folder and everything below it.
	DeleteFolder(ctx context.Context, path string) error

	// DownloadURL returns a link that grants read access to path until the
	// returned time.
	DownloadURL(ctx context.Context, path string) (string, time.Time, error)
}

// progressReader reports how much of an upload has been read and stops early
// when the upload is cancelled.
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 && p.total > 0 && p.progress != nil {
		pct := float64(p.read) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
		p.progress(pct)
	}
	return n, err
}
