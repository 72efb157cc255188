// Package catalog keeps the assembled collection descriptors current with the
// document store, loads YAML seed documents and lints them.
package catalog

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pitabwire/cmsadmin/internal/schema"
	"github.com/pitabwire/cmsadmin/internal/store"
	"github.com/pitabwire/cmsadmin/model"
)

const defaultViewTTL = 10 * time.Minute

// snapshot is an immutable set of decoded configs indexed by document id.
type snapshot struct {
	ids      []string
	configs  map[string]model.CollectionConfig
	skipped  int
	checksum string
}

// view is the assembled descriptor list of one snapshot in one locale.
type view struct {
	list []model.CollectionDescriptor
	byID map[string]int
}

// Registry is a read-optimized, thread-safe catalog of collection configs.
// Readers never block: Replace swaps in a new snapshot atomically. Assembled
// per-locale views are cached by snapshot checksum.
type Registry struct {
	snap    atomic.Pointer[snapshot]
	loaded  atomic.Bool
	locales model.Locales
	views   *cache.Cache
}

// NewRegistry creates an empty Registry. A non-positive viewTTL selects the
// default of ten minutes.
func NewRegistry(locales model.Locales, viewTTL time.Duration) *Registry {
	if len(locales) == 0 {
		locales = model.DefaultLocales()
	}
	if viewTTL <= 0 {
		viewTTL = defaultViewTTL
	}
	r := &Registry{
		locales: locales,
		views:   cache.New(viewTTL, 2*viewTTL),
	}
	r.snap.Store(buildSnapshot(nil))
	return r
}

// Replace atomically swaps the registry contents for docs. Documents that
// are not objects are skipped; everything else is kept and decided per
// locale when a view is assembled.
func (r *Registry) Replace(docs []store.Document) {
	s := buildSnapshot(docs)
	prev := r.snap.Swap(s)
	if prev.checksum != s.checksum {
		r.views.Flush()
	}
	r.loaded.Store(true)
}

func buildSnapshot(docs []store.Document) *snapshot {
	s := &snapshot{configs: make(map[string]model.CollectionConfig, len(docs))}

	var checksumParts []string
	for _, doc := range docs {
		cfg, ok := schema.DecodeConfig(doc.Data)
		if !ok {
			s.skipped++
			continue
		}
		if _, dup := s.configs[doc.ID]; !dup {
			s.ids = append(s.ids, doc.ID)
		}
		s.configs[doc.ID] = cfg
		checksumParts = append(checksumParts, doc.ID+"="+documentChecksum(doc.Data))
	}
	sort.Strings(s.ids)
	sort.Strings(checksumParts)
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(checksumParts, ":"))))
	return s
}

// Loaded reports whether Replace has been called at least once.
func (r *Registry) Loaded() bool {
	return r.loaded.Load()
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// Collections returns every collection that assembles in locale, ordered by
// document id. An empty locale selects the default. The returned
// descriptors are shared and must not be modified.
func (r *Registry) Collections(locale string) []model.CollectionDescriptor {
	return r.view(locale).list
}

// Collection returns one assembled collection.
func (r *Registry) Collection(id, locale string) (model.CollectionDescriptor, bool) {
	v := r.view(locale)
	i, ok := v.byID[id]
	if !ok {
		return model.CollectionDescriptor{}, false
	}
	return v.list[i], true
}

// Config returns the decoded config stored under id.
func (r *Registry) Config(id string) (model.CollectionConfig, bool) {
	cfg, ok := r.current().configs[id]
	return cfg, ok
}

func (r *Registry) view(locale string) *view {
	s := r.current()
	locale = r.locales.Resolve(locale)
	key := s.checksum + "/" + locale
	if v, ok := r.views.Get(key); ok {
		return v.(*view)
	}

	v := &view{byID: make(map[string]int, len(s.ids))}
	for _, id := range s.ids {
		desc, ok := schema.Build(s.configs[id], r.locales, locale)
		if !ok {
			continue
		}
		v.byID[id] = len(v.list)
		v.list = append(v.list, desc)
	}
	r.views.SetDefault(key, v)
	return v
}

// Len returns the number of decoded documents, including ones that do not
// assemble into a collection.
func (r *Registry) Len() int {
	return len(r.current().ids)
}

// Skipped returns the number of documents the last Replace could not decode.
func (r *Registry) Skipped() int {
	return r.current().skipped
}

// Checksum returns the combined checksum of all loaded documents.
func (r *Registry) Checksum() string {
	return r.current().checksum
}

// Locales returns the supported locales, default first.
func (r *Registry) Locales() model.Locales {
	return r.locales
}

// documentChecksum hashes the canonical JSON of a document. encoding/json
// sorts map keys, so equal documents hash equally.
func documentChecksum(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "unencodable"
	}
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
