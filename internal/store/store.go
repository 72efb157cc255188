// Package store persists collection schema documents.
package store

import (
	"context"
	"time"
)

// Document is one stored collection schema, keyed by collection id.
type Document struct {
	ID        string
	Data      map[string]any
	UpdatedAt time.Time
}

// CollectionStore reads and writes collection schema documents.
type CollectionStore interface {
	// List returns every document ordered by id.
	List(ctx context.Context) ([]Document, error)

	// Get returns one document. Returns NOT_FOUND if no document has the
	// given id.
	Get(ctx context.Context, id string) (Document, error)

	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, id string, data map[string]any) error

	// Subscribe delivers the full document list once immediately and again
	// after every change. The channel is closed when ctx is done.
	Subscribe(ctx context.Context) (<-chan []Document, error)
}

// cloneData deep-copies a JSON-shaped document so callers never share
// nested maps or slices with the store.
func cloneData(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
