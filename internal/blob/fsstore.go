package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/model"
)

// FSOptions configures an FSStore.
type FSOptions struct {
	// BaseURL prefixes download links, e.g. "https://cms.example.com".
	BaseURL string
	// MaxUpload caps the size of a single upload in bytes. Zero means no cap.
	MaxUpload int64
	// DeleteConcurrency bounds parallel removals in DeleteFolder.
	DeleteConcurrency int
	Logger            *zap.Logger
}

// FSStore keeps files on the local filesystem below a root directory.
type FSStore struct {
	root        string
	signer      *URLSigner
	baseURL     string
	maxUpload   int64
	concurrency int
	logger      *zap.Logger
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates the root directory if needed and returns a store on it.
func NewFSStore(root string, signer *URLSigner, opts FSOptions) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("blob: storage root is empty")
	}
	if signer == nil {
		return nil, errors.New("blob: url signer is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blob: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	if opts.DeleteConcurrency <= 0 {
		opts.DeleteConcurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &FSStore{
		root:        abs,
		signer:      signer,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		maxUpload:   opts.MaxUpload,
		concurrency: opts.DeleteConcurrency,
		logger:      opts.Logger,
	}, nil
}

// resolve maps a storage path onto the filesystem and rejects anything that
// would leave the root.
func (s *FSStore) resolve(p string) (string, string, error) {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", "", model.NewBadRequestError(fmt.Sprintf("invalid storage path %q", p))
		}
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", "", model.NewBadRequestError(fmt.Sprintf("invalid storage path %q", p))
	}
	return clean, full, nil
}

func (s *FSStore) resolveFile(p string) (string, string, error) {
	clean, full, err := s.resolve(p)
	if err != nil {
		return "", "", err
	}
	if clean == "" {
		return "", "", model.NewBadRequestError("storage path is required")
	}
	return clean, full, nil
}

// List implements Store.
func (s *FSStore) List(ctx context.Context, dir string) (items []model.BlobItem, err error) {
	_, span := observability.StartSpan(ctx, "blob.list", observability.AttrStoragePath.String(dir))
	defer func() { observability.EndSpanWithError(span, err) }()

	clean, full, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.BlobItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("blob: list %q: %w", clean, err)
	}

	var folders, files []model.BlobItem
	for _, e := range entries {
		if e.Name() == FolderPlaceholder {
			continue
		}
		item := model.BlobItem{Name: e.Name(), FullPath: JoinPath(clean, e.Name())}
		if e.IsDir() {
			item.IsFolder = true
			folders = append(folders, item)
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		size, updated := info.Size(), info.ModTime().UTC()
		item.Size, item.Updated = &size, &updated
		files = append(files, item)
	}

	col := collate.New(language.Und)
	byName := func(list []model.BlobItem) {
		sort.SliceStable(list, func(i, j int) bool {
			return col.CompareString(list[i].Name, list[j].Name) < 0
		})
	}
	byName(folders)
	byName(files)
	return append(append(make([]model.BlobItem, 0, len(folders)+len(files)), folders...), files...), nil
}

// Upload implements Store. The file only becomes visible once it has been
// completely written.
func (s *FSStore) Upload(ctx context.Context, p string, r io.Reader, size int64, progress ProgressFunc) (item model.BlobItem, err error) {
	ctx, span := observability.StartSpan(ctx, "blob.upload", observability.AttrStoragePath.String(p))
	defer func() { observability.EndSpanWithError(span, err) }()

	clean, full, err := s.resolveFile(p)
	if err != nil {
		return model.BlobItem{}, err
	}
	if path.Base(clean) == FolderPlaceholder {
		return model.BlobItem{}, model.NewBadRequestError(fmt.Sprintf("%q is a reserved name", FolderPlaceholder))
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return model.BlobItem{}, tooLarge(s.maxUpload)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return model.BlobItem{}, fmt.Errorf("blob: create folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return model.BlobItem{}, fmt.Errorf("blob: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	var src io.Reader = &progressReader{ctx: ctx, r: r, total: size, progress: progress}
	if s.maxUpload > 0 {
		src = io.LimitReader(src, s.maxUpload+1)
	}
	written, err := io.Copy(tmp, src)
	if err != nil {
		return model.BlobItem{}, fmt.Errorf("blob: write %q: %w", clean, err)
	}
	if s.maxUpload > 0 && written > s.maxUpload {
		return model.BlobItem{}, tooLarge(s.maxUpload)
	}
	if err = tmp.Close(); err != nil {
		return model.BlobItem{}, fmt.Errorf("blob: close %q: %w", clean, err)
	}
	if err = os.Rename(tmp.Name(), full); err != nil {
		return model.BlobItem{}, fmt.Errorf("blob: commit %q: %w", clean, err)
	}
	if progress != nil {
		progress(100)
	}

	s.logger.Info("file uploaded",
		zap.String("path", clean),
		zap.Int64("bytes", written),
	)
	updated := time.Now().UTC()
	return model.BlobItem{
		Name:     path.Base(clean),
		FullPath: clean,
		Size:     &written,
		Updated:  &updated,
	}, nil
}

func tooLarge(limit int64) error {
	return model.NewPayloadTooLargeError(fmt.Sprintf("file exceeds the %s upload limit", HumanFileSize(limit)))
}

// CreateFolder implements Store. The folder name is validated and sanitized
// first; the folder is kept alive by its placeholder file.
func (s *FSStore) CreateFolder(ctx context.Context, parent, name string) (folder string, err error) {
	_, span := observability.StartSpan(ctx, "blob.create_folder", observability.AttrStoragePath.String(parent))
	defer func() { observability.EndSpanWithError(span, err) }()

	if err := ValidateFolderName(name); err != nil {
		return "", err
	}
	parentClean, _, err := s.resolve(parent)
	if err != nil {
		return "", err
	}
	folder = JoinPath(parentClean, SanitizeFolderName(name))
	_, full, err := s.resolveFile(folder)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("blob: create folder %q: %w", folder, err)
	}
	if err := os.WriteFile(filepath.Join(full, FolderPlaceholder), nil, 0o644); err != nil {
		return "", fmt.Errorf("blob: create folder %q: %w", folder, err)
	}
	return folder, nil
}

// DeleteFile implements Store.
func (s *FSStore) DeleteFile(ctx context.Context, p string) (err error) {
	_, span := observability.StartSpan(ctx, "blob.delete_file", observability.AttrStoragePath.String(p))
	defer func() { observability.EndSpanWithError(span, err) }()

	clean, full, err := s.resolveFile(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return model.NewNotFoundError(fmt.Sprintf("file %q not found", clean))
	}
	if err != nil {
		return fmt.Errorf("blob: stat %q: %w", clean, err)
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("blob: delete %q: %w", clean, err)
	}
	return nil
}

// DeleteFolder implements Store. Files are removed in parallel, then the
// emptied directories. Deleting a missing folder is not an error.
func (s *FSStore) DeleteFolder(ctx context.Context, p string) (err error) {
	ctx, span := observability.StartSpan(ctx, "blob.delete_folder", observability.AttrStoragePath.String(p))
	defer func() { observability.EndSpanWithError(span, err) }()

	clean, full, err := s.resolveFile(p)
	if err != nil {
		return err
	}

	var files []string
	err = filepath.WalkDir(full, func(fp string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, fp)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("blob: walk %q: %w", clean, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, fp := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := os.Remove(fp); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("blob: delete folder %q: %w", clean, err)
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("blob: delete folder %q: %w", clean, err)
	}

	s.logger.Info("folder deleted", zap.String("path", clean), zap.Int("files", len(files)))
	return nil
}

// DownloadURL implements Store.
func (s *FSStore) DownloadURL(ctx context.Context, p string) (link string, expires time.Time, err error) {
	_, span := observability.StartSpan(ctx, "blob.download_url", observability.AttrStoragePath.String(p))
	defer func() { observability.EndSpanWithError(span, err) }()

	clean, full, err := s.resolveFile(p)
	if err != nil {
		return "", time.Time{}, err
	}
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		return "", time.Time{}, model.NewNotFoundError(fmt.Sprintf("file %q not found", clean))
	}
	token, expires, err := s.signer.Sign(clean)
	if err != nil {
		return "", time.Time{}, err
	}
	segs := strings.Split(clean, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/files/" + strings.Join(segs, "/") + "?token=" + url.QueryEscape(token), expires, nil
}

// Open returns the file at path for a request carrying a download token. The
// token must have been issued for exactly this path.
func (s *FSStore) Open(p, token string) (*os.File, error) {
	granted, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	clean, full, err := s.resolveFile(p)
	if err != nil {
		return nil, err
	}
	if granted != clean {
		return nil, model.NewForbiddenError("download link does not match the requested file")
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NewNotFoundError(fmt.Sprintf("file %q not found", clean))
	}
	if err != nil {
		return nil, fmt.Errorf("blob: open %q: %w", clean, err)
	}
	if info, err := f.Stat(); err != nil || info.IsDir() {
		_ = f.Close()
		return nil, model.NewNotFoundError(fmt.Sprintf("file %q not found", clean))
	}
	return f, nil
}

// Ping reports whether the storage root is still reachable.
func (s *FSStore) Ping(context.Context) error {
	_, err := os.Stat(s.root)
	return err
}
