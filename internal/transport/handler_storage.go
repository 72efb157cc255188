package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/blob"
	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/model"
)

// FileOpener serves files behind signed download links.
type FileOpener interface {
	Open(path, token string) (*os.File, error)
}

type storageItem struct {
	model.BlobItem
	HumanSize   string `json:"humanSize,omitempty"`
	Previewable bool   `json:"previewable"`
}

type listResponse struct {
	Path  string        `json:"path"`
	Items []storageItem `json:"items"`
}

type createFolderRequest struct {
	Parent string `json:"parent"`
	Name   string `json:"name"`
}

type downloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toStorageItem(item model.BlobItem) storageItem {
	out := storageItem{BlobItem: item}
	if !item.IsFolder {
		out.Previewable = blob.IsPreviewable(item.Name)
		if item.Size != nil {
			out.HumanSize = blob.HumanFileSize(*item.Size)
		}
	}
	return out
}

// timed runs a storage operation and records its outcome.
func timed(rec Recorder, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	rec.RecordStorageOperation(op, time.Since(start), err)
	return err
}

func handleListStorage(store blob.Store, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dir := r.URL.Query().Get("path")
		var items []model.BlobItem
		err := timed(rec, "list", func() (err error) {
			items, err = store.List(r.Context(), dir)
			return err
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		out := make([]storageItem, len(items))
		for i, item := range items {
			out[i] = toStorageItem(item)
		}
		WriteJSON(w, http.StatusOK, listResponse{Path: dir, Items: out})
	}
}

// handleUpload streams the "file" part of a multipart request into the
// folder given by ?path=. The file keeps its base name.
func handleUpload(store blob.Store, rec Recorder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			WriteError(w, model.NewBadRequestError("expected a multipart/form-data body"))
			return
		}

		var part io.ReadCloser
		var name string
		for {
			p, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				WriteError(w, model.NewBadRequestError("malformed multipart body"))
				return
			}
			if p.FormName() == "file" && p.FileName() != "" {
				part, name = p, path.Base(strings.ReplaceAll(p.FileName(), "\\", "/"))
				break
			}
			p.Close()
		}
		if part == nil {
			WriteError(w, model.NewBadRequestError(`multipart body has no "file" part`))
			return
		}
		defer part.Close()

		size, _ := strconv.ParseInt(r.Header.Get("X-Upload-Size"), 10, 64)
		target := blob.JoinPath(r.URL.Query().Get("path"), name)
		log := observability.LoggerFrom(r.Context(), logger)

		var item model.BlobItem
		err = timed(rec, "upload", func() (err error) {
			item, err = store.Upload(r.Context(), target, part, size, func(percent float64) {
				log.Debug("upload progress", zap.String("path", target), zap.Float64("percent", percent))
			})
			return err
		})
		if err != nil {
			if !isEnvelope(err) {
				log.Error("upload failed", zap.String("path", target), zap.Error(err))
			}
			WriteError(w, err)
			return
		}
		if item.Size != nil {
			rec.RecordUpload(*item.Size)
		}
		WriteJSON(w, http.StatusCreated, toStorageItem(item))
	}
}

func handleCreateFolder(store blob.Store, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createFolderRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody)).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		var folder string
		err := timed(rec, "create_folder", func() (err error) {
			folder, err = store.CreateFolder(r.Context(), req.Parent, req.Name)
			return err
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, map[string]string{"path": folder})
	}
}

// handleDeleteStorage removes a file, or a whole folder when ?folder=true.
func handleDeleteStorage(store blob.Store, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := q.Get("path")
		folder, _ := strconv.ParseBool(q.Get("folder"))

		op, del := "delete_file", store.DeleteFile
		if folder {
			op, del = "delete_folder", store.DeleteFolder
		}
		if err := timed(rec, op, func() error { return del(r.Context(), p) }); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDownloadURL(store blob.Store, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp downloadURLResponse
		err := timed(rec, "download_url", func() (err error) {
			resp.URL, resp.ExpiresAt, err = store.DownloadURL(r.Context(), r.URL.Query().Get("path"))
			return err
		})
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// handleFiles serves a file for a signed download link. It is mounted
// outside the authenticated API; the token is the credential.
func handleFiles(files FileOpener, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := chi.URLParam(r, "*")
		f, err := files.Open(p, r.URL.Query().Get("token"))
		if err != nil {
			if !isEnvelope(err) {
				logger.Error("serving file failed", zap.String("path", p), zap.Error(err))
			}
			WriteError(w, err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			WriteError(w, err)
			return
		}
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.Header().Set("Content-Disposition", `inline; filename="`+strings.ReplaceAll(info.Name(), `"`, "")+`"`)
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

func isEnvelope(err error) bool {
	var ee *model.ErrorEnvelope
	return errors.As(err, &ee)
}
