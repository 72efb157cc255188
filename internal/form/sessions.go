package form

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/pitabwire/cmsadmin/model"
)

const defaultSessionTTL = 30 * time.Minute

// Sessions keeps open form sessions in memory. Sessions belong to the
// subject that opened them and expire after ttl without access.
type Sessions struct {
	cache *cache.Cache
	codec *Codec
	store Store
	ttl   time.Duration
}

type sessionEntry struct {
	owner   string
	session *Session
}

// NewSessions creates a session registry. A non-positive ttl selects the
// default of 30 minutes.
func NewSessions(codec *Codec, st Store, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Sessions{
		cache: cache.New(ttl, 2*ttl),
		codec: codec,
		store: st,
		ttl:   ttl,
	}
}

// Open creates a new empty session owned by subjectID.
func (r *Sessions) Open(subjectID string) *Session {
	s := NewSession(uuid.NewString(), r.codec, r.store)
	r.cache.SetDefault(s.ID(), sessionEntry{owner: subjectID, session: s})
	return s
}

// Get returns the session if it exists and belongs to subjectID. Access
// extends the session's lifetime. Returns NOT_FOUND otherwise.
func (r *Sessions) Get(id, subjectID string) (*Session, error) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, notFoundSession(id)
	}
	entry := v.(sessionEntry)
	if entry.owner != subjectID {
		return nil, notFoundSession(id)
	}
	r.cache.SetDefault(id, entry)
	return entry.session, nil
}

// Close discards a session. Closing an unknown session is a no-op.
func (r *Sessions) Close(id, subjectID string) {
	if v, ok := r.cache.Get(id); ok && v.(sessionEntry).owner == subjectID {
		r.cache.Delete(id)
	}
}

// Len returns the number of open sessions, including expired ones not yet
// evicted.
func (r *Sessions) Len() int {
	return r.cache.ItemCount()
}

// Codec returns the codec sessions are created with.
func (r *Sessions) Codec() *Codec {
	return r.codec
}

func notFoundSession(id string) error {
	return model.NewNotFoundError(fmt.Sprintf("form session %q not found or expired", id))
}
