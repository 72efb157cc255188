package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/cmsadmin/model"
)

// MemoryStore is an in-memory CollectionStore for tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	docs        map[string]Document
	subscribers map[chan []Document]struct{}
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:        make(map[string]Document),
		subscribers: make(map[chan []Document]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns every document ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

// Get returns the document with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return Document{}, model.NewNotFoundError(fmt.Sprintf("collection %q not found", id))
	}
	return copyDocument(doc), nil
}

// Set creates or replaces a document and notifies subscribers.
func (s *MemoryStore) Set(_ context.Context, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[id] = Document{ID: id, Data: cloneData(data), UpdatedAt: s.now()}
	s.broadcastLocked()
	return nil
}

// Delete removes a document. Deleting a missing id is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return nil
	}
	delete(s.docs, id)
	s.broadcastLocked()
	return nil
}

// Subscribe registers a listener that receives the current documents and
// then a fresh list after every change. Slow listeners only see the latest
// list.
func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan []Document, error) {
	ch := make(chan []Document, 1)

	s.mu.Lock()
	ch <- s.snapshotLocked()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// Len returns the number of stored documents. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *MemoryStore) broadcastLocked() {
	for ch := range s.subscribers {
		snap := s.snapshotLocked()
		// Drop a pending, now stale, list so the newest one always fits.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *MemoryStore) snapshotLocked() []Document {
	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, copyDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyDocument(d Document) Document {
	d.Data = cloneData(d.Data)
	return d
}
